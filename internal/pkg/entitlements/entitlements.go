// Package entitlements is the ledger of course ownership. The unique index on
// (user_id, course_id) is the only guard against double grants.
package entitlements

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database"
)

var (
	ErrAlreadyEntitled    = apperror.New(apperror.KindAlreadyEntitled, "Course already owned")
	ErrConflictingPayment = apperror.New(apperror.KindConflictingPayment, "Payment is already bound to a different purchase")
)

// Grant describes a successful payment to be recorded.
type Grant struct {
	UserID      uint
	CourseID    uint
	PaymentID   string
	Amount      int64
	Currency    string
	CourseTitle string
}

// Purchase pairs an entitlement with its course, which may be soft deleted.
type Purchase struct {
	Course      models.Course
	Entitlement models.Entitlement
}

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) HasEntitlement(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, apperror.Internal("failed to check entitlement", err)
	}
	return count > 0, nil
}

// Grant inserts the entitlement. On a duplicate pair the stored entitlement
// is returned together with ErrAlreadyEntitled. A payment id already used
// for another pair yields ErrConflictingPayment.
func (l *Ledger) Grant(ctx context.Context, g Grant) (*models.Entitlement, error) {
	paymentID := strings.TrimSpace(g.PaymentID)
	if g.UserID == 0 || g.CourseID == 0 || paymentID == "" {
		return nil, apperror.Validation("user, course and payment id are required")
	}
	if g.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}

	ent := &models.Entitlement{
		UserID:      g.UserID,
		CourseID:    g.CourseID,
		PaymentID:   paymentID,
		Amount:      g.Amount,
		Currency:    strings.ToLower(g.Currency),
		CourseTitle: g.CourseTitle,
	}
	err := l.db.WithContext(ctx).Omit("Course").Create(ent).Error
	if err == nil {
		return ent, nil
	}
	if !database.IsDuplicateKey(err) {
		return nil, apperror.Internal("failed to record entitlement", err)
	}

	existing, lookupErr := l.findByPair(ctx, g.UserID, g.CourseID)
	if lookupErr == nil {
		return existing, ErrAlreadyEntitled
	}
	if !database.IsNotFound(lookupErr) {
		return nil, apperror.Internal("failed to load entitlement", lookupErr)
	}

	// the pair is free, so the payment id collided with another purchase
	return nil, ErrConflictingPayment
}

func (l *Ledger) GetByPaymentID(ctx context.Context, paymentID string) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := l.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&ent).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Entitlement not found")
		}
		return nil, apperror.Internal("failed to load entitlement", err)
	}
	return &ent, nil
}

// ListForUser returns the user's purchases newest first, including courses
// that were removed from the catalog afterwards.
func (l *Ledger) ListForUser(ctx context.Context, userID uint) ([]Purchase, error) {
	var ents []models.Entitlement
	err := l.db.WithContext(ctx).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&ents).Error
	if err != nil {
		return nil, apperror.Internal("failed to list purchases", err)
	}

	out := make([]Purchase, 0, len(ents))
	for _, e := range ents {
		course := e.Course
		if course.ID == 0 {
			// hard deleted rows never have entitlements, keep the snapshot anyway
			course = models.Course{ID: e.CourseID, Title: e.CourseTitle, Price: e.Amount}
		}
		e.Course = models.Course{}
		out = append(out, Purchase{Course: course, Entitlement: e})
	}
	return out, nil
}

func (l *Ledger) CountForCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Entitlement{}).Where("course_id = ?", courseID).Count(&count).Error
	if err != nil {
		return 0, apperror.Internal("failed to count entitlements", err)
	}
	return count, nil
}

func (l *Ledger) findByPair(ctx context.Context, userID, courseID uint) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := l.db.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&ent).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}
