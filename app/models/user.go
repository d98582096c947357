package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// User is an account of either role. Emails are unique per role, so the same
// address may hold a student and an admin account.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	FirstName       string    `gorm:"type:varchar(100)" json:"firstName" validate:"required,min=2,max=100"`
	LastName        string    `gorm:"type:varchar(100)" json:"lastName" validate:"required,min=2,max=100"`
	Email           string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_users_email_role,priority:1" json:"email" validate:"required,email,min=5,max=200"`
	Password        string    `gorm:"type:text" json:"-" validate:"required"`
	Role            string    `gorm:"type:varchar(20);not null;default:'user';uniqueIndex:ux_users_email_role,priority:2" json:"role" validate:"oneof=user admin"`
	IsFirstPurchase bool      `gorm:"default:true" json:"isFirstPurchase"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a validated account with a hashed password. The caller
// persists it.
func CreateUser(firstName, lastName, email, password, role string) (*User, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		FirstName:       strings.TrimSpace(firstName),
		LastName:        strings.TrimSpace(lastName),
		Email:           NormalizeEmail(email),
		Password:        pw,
		Role:            role,
		IsFirstPurchase: true,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

// ValidatePassword checks the plaintext password before hashing; bcrypt
// silently truncates anything beyond 72 bytes.
func ValidatePassword(password string) error {
	v := validator.New()
	return v.Var(password, "required,min=6,max=72")
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}
