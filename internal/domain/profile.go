package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusAdmin   = "admin"
	StatusRegular = "regular"

	UnlimitedCourses = -1
)

type Profile struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email    string    `gorm:"uniqueIndex"`
	Username string
	AvatarID int `gorm:"default:1"`

	SubscriptionStatus string `gorm:"default:'regular'"`
	CourseLimit        int    `gorm:"default:0"`
	DeviceLimit        int    `gorm:"default:1"`
	HasTgAccess        bool   `gorm:"default:false"`
	SubscriptionEndsAt time.Time

	// Set by an administrator: admit new devices by evicting the least
	// recently used one instead of rejecting them.
	EvictOldestDevice bool `gorm:"default:false"`

	Balance        int `gorm:"default:0"`
	CompletedCount int `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Profile) IsAdmin() bool {
	return p.SubscriptionStatus == StatusAdmin
}

// SubscriptionExpired reports whether a paid plan has run out. Regular
// and admin profiles never expire.
func (p *Profile) SubscriptionExpired(now time.Time) bool {
	if p.SubscriptionStatus == StatusAdmin || p.SubscriptionStatus == StatusRegular || p.SubscriptionStatus == "" {
		return false
	}
	return !p.SubscriptionEndsAt.IsZero() && now.After(p.SubscriptionEndsAt)
}

type UserCourse struct {
	UserID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseID        string    `gorm:"primaryKey"`
	Title           string
	CoverURL        string
	ProgressPercent int32  `gorm:"default:0"`
	Status          string `gorm:"default:'active'"` // "active", "completed"
	LastAccessedAt  time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const (
	CourseActive    = "active"
	CourseCompleted = "completed"
)

type CompletedLesson struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CourseID  string    `gorm:"primaryKey;index"`
	LessonID  string    `gorm:"primaryKey"`
	CreatedAt time.Time
}

type UnlockedAvatar struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	AvatarID int       `gorm:"primaryKey"`
}
