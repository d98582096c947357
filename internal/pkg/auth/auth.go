// Package auth registers and authenticates accounts and verifies the bearer
// credentials presented on every request.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/app/repository"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/security"
)

var (
	ErrDuplicateIdentity  = apperror.New(apperror.KindDuplicateIdentity, "An account with this email already exists")
	ErrInvalidCredentials = apperror.New(apperror.KindInvalidCredentials, "Invalid email or password")
	ErrExpired            = apperror.New(apperror.KindExpired, "Session expired, please log in again")
	ErrMalformed          = apperror.New(apperror.KindMalformed, "Invalid credential")
	ErrRevoked            = apperror.New(apperror.KindRevoked, "Credential has been revoked")
	ErrAdminSignupClosed  = apperror.Forbidden("Admin signup is closed")
)

// RevocationStore keeps revoked credential ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AccountContext is the verified identity behind a credential.
type AccountContext struct {
	AccountID uint
	Role      string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

func (a *AccountContext) IsAdmin() bool {
	return a != nil && a.Role == models.ROLE_ADMIN
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type Service struct {
	users       repository.UserRepository
	signer      *security.CredentialSigner
	revocations RevocationStore
	dummyHash   string
	// openAdminSignup lets anyone create admin accounts. When false only the
	// first admin can sign up.
	openAdminSignup bool
}

func NewService(users repository.UserRepository, signer *security.CredentialSigner, revocations RevocationStore) *Service {
	// unknown emails are still compared against a hash so both branches cost one bcrypt run
	dummy, err := bcrypt.GenerateFromPassword([]byte("coursehaven-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return &Service{
		users:       users,
		signer:      signer,
		revocations: revocations,
		dummyHash:   string(dummy),
	}
}

// CredentialTTL is the lifetime of issued credentials, used for cookie expiry.
func (s *Service) CredentialTTL() time.Duration {
	return s.signer.TTL()
}

// WithOpenAdminSignup toggles self-service admin signup.
func (s *Service) WithOpenAdminSignup(open bool) *Service {
	s.openAdminSignup = open
	return s
}

// Register creates an account of the given role.
func (s *Service) Register(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	if role != models.ROLE_USER && role != models.ROLE_ADMIN {
		return nil, apperror.Validation("Unknown account role")
	}

	if role == models.ROLE_ADMIN && !s.openAdminSignup {
		admins, err := s.users.Count(ctx, models.ROLE_ADMIN)
		if err != nil {
			return nil, apperror.Internal("failed to count admins", err)
		}
		if admins > 0 {
			return nil, ErrAdminSignupClosed
		}
	}

	user, err := models.CreateUser(in.FirstName, in.LastName, in.Email, in.Password, role)
	if err != nil {
		return nil, apperror.FromValidator(err)
	}

	if _, err := s.users.GetByEmailAndRole(ctx, user.Email, role); err == nil {
		return nil, ErrDuplicateIdentity
	} else if !database.IsNotFound(err) {
		return nil, apperror.Internal("failed to look up account", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		// lost a race against a concurrent signup with the same email
		if database.IsDuplicateKey(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, apperror.Internal("failed to create account", err)
	}

	log.Infof("[Auth] registered %s account %d", role, user.ID)
	return user, nil
}

// Authenticate checks the password and issues a signed credential. The error
// never tells whether the email or the password was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password, role string) (string, *AccountContext, error) {
	user, err := s.users.GetByEmailAndRole(ctx, email, role)
	if err != nil {
		if !database.IsNotFound(err) {
			return "", nil, apperror.Internal("failed to look up account", err)
		}
		models.CheckPasswordHash(password, s.dummyHash)
		return "", nil, ErrInvalidCredentials
	}

	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	token, claims, err := s.signer.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		return "", nil, apperror.Internal("failed to issue credential", err)
	}

	return token, &AccountContext{
		AccountID: user.ID,
		Role:      user.Role,
		Email:     user.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature, expiry and revocation of a presented credential.
func (s *Service) Verify(ctx context.Context, token string) (*AccountContext, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, security.ErrCredentialExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperror.Internal("failed to check credential revocation", err)
	}
	if revoked {
		return nil, ErrRevoked
	}

	id, _ := claims.AccountID()
	return &AccountContext{
		AccountID: id,
		Role:      claims.Role,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the credential behind acc until it expires.
func (s *Service) Revoke(ctx context.Context, acc *AccountContext) error {
	if acc == nil || acc.TokenID == "" {
		return ErrMalformed
	}
	if err := s.revocations.Revoke(ctx, acc.TokenID, acc.ExpiresAt); err != nil {
		return apperror.Internal("failed to revoke credential", err)
	}
	return nil
}

// Profile loads the account record behind a verified credential.
func (s *Service) Profile(ctx context.Context, acc *AccountContext) (*models.User, error) {
	if acc == nil {
		return nil, apperror.New(apperror.KindUnauthorized, "login required")
	}
	user, err := s.users.GetByID(ctx, acc.AccountID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Account not found")
		}
		return nil, apperror.Internal("failed to load account", err)
	}
	return user, nil
}
