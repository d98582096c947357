package models

import "time"

// Entitlement is the ledger record proving that a user owns a course. The
// (user_id, course_id) pair and the payment id are both unique; rows are
// never updated.
type Entitlement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:ux_entitlements_user_course,priority:1" json:"userId"`
	CourseID    uint      `gorm:"not null;uniqueIndex:ux_entitlements_user_course,priority:2;index" json:"courseId"`
	PaymentID   string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_entitlements_payment" json:"paymentId"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	CourseTitle string    `gorm:"type:varchar(255)" json:"courseTitle"`
	Course      Course    `gorm:"foreignKey:CourseID" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
