package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrCredentialExpired   = errors.New("credential expired")
	ErrCredentialMalformed = errors.New("credential malformed")
)

// CredentialClaims is the payload of a signed account credential. The
// subject holds the account id and the ID (jti) identifies the token for
// revocation.
type CredentialClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccountID parses the subject back into an account id.
func (c *CredentialClaims) AccountID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrCredentialMalformed
	}
	return uint(id), nil
}

// CredentialSigner issues and parses HS256 tokens. User and admin tokens are
// signed with different secrets.
type CredentialSigner struct {
	userSecret  []byte
	adminSecret []byte
	ttl         time.Duration
	now         func() time.Time
}

func NewCredentialSigner(userSecret, adminSecret string, ttl time.Duration) (*CredentialSigner, error) {
	if userSecret == "" || adminSecret == "" {
		return nil, errors.New("user and admin secrets are required for credential signing")
	}
	if userSecret == adminSecret {
		return nil, errors.New("user and admin secrets must differ")
	}
	if ttl <= 0 {
		return nil, errors.New("credential ttl must be positive")
	}
	return &CredentialSigner{
		userSecret:  []byte(userSecret),
		adminSecret: []byte(adminSecret),
		ttl:         ttl,
		now:         time.Now,
	}, nil
}

func (s *CredentialSigner) TTL() time.Duration {
	return s.ttl
}

func (s *CredentialSigner) secretFor(role string) ([]byte, error) {
	switch role {
	case RoleUser:
		return s.userSecret, nil
	case RoleAdmin:
		return s.adminSecret, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// Issue signs a fresh credential for the account.
func (s *CredentialSigner) Issue(accountID uint, role, email string) (string, *CredentialClaims, error) {
	secret, err := s.secretFor(role)
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	claims := &CredentialClaims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(accountID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Parse verifies the signature with the secret of the claimed role and
// checks expiry. Failures are reported as ErrCredentialExpired or
// ErrCredentialMalformed.
func (s *CredentialSigner) Parse(token string) (*CredentialClaims, error) {
	if token == "" {
		return nil, ErrCredentialMalformed
	}

	claims := &CredentialClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		c, ok := t.Claims.(*CredentialClaims)
		if !ok {
			return nil, ErrCredentialMalformed
		}
		return s.secretFor(c.Role)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialMalformed, err)
	}

	if claims.ID == "" {
		return nil, ErrCredentialMalformed
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	return claims, nil
}
