package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/models"
)

type checkoutAttemptRepository struct {
	db *gorm.DB
}

// NewCheckoutAttemptRepository creates a new checkout attempt repository instance
func NewCheckoutAttemptRepository(db *gorm.DB) CheckoutAttemptRepository {
	return &checkoutAttemptRepository{db: db}
}

func (r *checkoutAttemptRepository) Create(ctx context.Context, attempt *models.CheckoutAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *checkoutAttemptRepository) GetByIntentID(ctx context.Context, intentID string) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	err := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID).First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindOpen lists attempts for the pair whose intent may still be paid, newest
// first. A declined intent stays payable at the processor, so payment_failed
// attempts are open too.
func (r *checkoutAttemptRepository) FindOpen(ctx context.Context, userID, courseID uint) ([]models.CheckoutAttempt, error) {
	var attempts []models.CheckoutAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND status IN ?", userID, courseID,
			[]string{models.CheckoutStatusAwaitingPayment, models.CheckoutStatusPaymentFailed}).
		Order("id DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *checkoutAttemptRepository) UpdateStatus(ctx context.Context, id uint, status, reason string) error {
	updates := map[string]interface{}{
		"status":         status,
		"failure_reason": reason,
	}
	return r.db.WithContext(ctx).Model(&models.CheckoutAttempt{}).Where("id = ?", id).Updates(updates).Error
}
