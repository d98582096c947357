package models

import "time"

const (
	CheckoutStatusAwaitingPayment     = "awaiting_payment"
	CheckoutStatusEntitled            = "entitled"
	CheckoutStatusPaymentFailed       = "payment_failed"
	CheckoutStatusCanceled            = "canceled"
	CheckoutStatusNeedsReconciliation = "needs_reconciliation"
)

// CheckoutAttempt mirrors one payment intent created for a (user, course)
// pair. Amount and Currency are the price snapshot taken when the checkout
// began; confirmation is checked against them, not the live catalog price.
type CheckoutAttempt struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index:idx_checkout_attempts_pair,priority:1" json:"userId"`
	CourseID        uint      `gorm:"not null;index:idx_checkout_attempts_pair,priority:2" json:"courseId"`
	PaymentIntentID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_checkout_attempts_intent" json:"paymentIntentId"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Currency        string    `gorm:"type:varchar(3);not null" json:"currency"`
	CourseTitle     string    `gorm:"type:varchar(255)" json:"courseTitle"`
	Status          string    `gorm:"type:varchar(32);not null;default:'awaiting_payment';index" json:"status"`
	FailureReason   string    `gorm:"type:text" json:"failureReason,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *CheckoutAttempt) IsAwaitingPayment() bool {
	return a.Status == CheckoutStatusAwaitingPayment
}
