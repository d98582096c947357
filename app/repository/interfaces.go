package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/models"
)

// UserRepository defines the interface for account-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmailAndRole(ctx context.Context, email, role string) (*models.User, error)
	Count(ctx context.Context, role string) (int64, error)
}

// CourseRepository defines the interface for catalog database operations.
// Reads skip soft deleted courses unless stated otherwise.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id uint) error
	HardDelete(ctx context.Context, id uint) error
}

// CheckoutAttemptRepository defines the interface for the durable mirror of
// payment intents.
type CheckoutAttemptRepository interface {
	Create(ctx context.Context, attempt *models.CheckoutAttempt) error
	GetByIntentID(ctx context.Context, intentID string) (*models.CheckoutAttempt, error)
	FindOpen(ctx context.Context, userID, courseID uint) ([]models.CheckoutAttempt, error)
	UpdateStatus(ctx context.Context, id uint, status, reason string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User            UserRepository
	Course          CourseRepository
	CheckoutAttempt CheckoutAttemptRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		Course:          NewCourseRepository(db),
		CheckoutAttempt: NewCheckoutAttemptRepository(db),
	}
}
