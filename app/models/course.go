package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CourseImage references the cover image in object storage.
type CourseImage struct {
	URL string `gorm:"type:varchar(512)" json:"url"`
	Key string `gorm:"type:varchar(255)" json:"public_id"`
}

// Course is a purchasable catalog entry. Price is an integer amount in the
// smallest unit of the configured payment currency and is charged verbatim.
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Description string         `gorm:"type:text;not null" json:"description" validate:"required,max=5000"`
	Price       int64          `gorm:"not null" json:"price" validate:"gt=0"`
	Image       CourseImage    `gorm:"embedded;embeddedPrefix:image_" json:"image"`
	CreatorID   uint           `gorm:"index" json:"creatorId"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Course) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// IsDeleted reports whether the course was soft deleted and is hidden from
// the catalog.
func (c *Course) IsDeleted() bool {
	return c.DeletedAt.Valid
}
