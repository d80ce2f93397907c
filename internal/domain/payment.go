package domain

import (
	"time"

	"github.com/google/uuid"
)

type Plan struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name                string    `gorm:"unique" json:"name"`
	Price               int       `json:"price"`
	Description         string    `json:"description"`
	CourseLimit         int       `json:"course_limit"` // -1 is unlimited
	SnowflakePrice      int       `json:"snowflake_price"`
	DeviceLimit         int       `json:"device_limit"`
	IsTgAccess          bool      `json:"tg_access"`
	DefaultDurationDays int       `json:"duration_days"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

const (
	PromoOneCourse    = "ONE_COURSE"
	PromoSubscription = "SUBSCRIPTION"
)

type PromoCode struct {
	Code string `gorm:"primaryKey"`

	PlanID *uuid.UUID `gorm:"type:uuid"`
	Plan   Plan       `gorm:"foreignKey:PlanID"`

	Type string
	// Course slots granted by ONE_COURSE codes.
	ValueInt int

	OverrideDuration int
	MaxUses          int
	UsedCount        int
	ExpiresAt        *time.Time
}

type PromoActivation struct {
	UserID    string `gorm:"primaryKey;index"`
	Code      string `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

const (
	ItemCourse = "COURSE"
	ItemAvatar = "AVATAR"

	CoursePurchasePrice = 1000
	AvatarPurchasePrice = 250
)
