package domain

import (
	"time"

	"github.com/google/uuid"
)

// Device is a browser or app installation a user signed in from.
// Fingerprint is computed on the client and is unique per user.
type Device struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_devices_user_fingerprint,priority:1" json:"user_id"`
	Fingerprint string    `gorm:"size:128;not null;uniqueIndex:idx_devices_user_fingerprint,priority:2" json:"fingerprint"`
	Label       string    `gorm:"size:255" json:"label"`
	LastUsedAt  time.Time `gorm:"index" json:"last_used_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeviceInfo is what the client reports alongside a fingerprint.
type DeviceInfo struct {
	Label     string `json:"device_name"`
	UserAgent string `json:"user_agent"`
	Platform  string `json:"platform"`
}

// DisplayLabel picks the most specific non-empty description.
func (i DeviceInfo) DisplayLabel() string {
	switch {
	case i.Label != "":
		return i.Label
	case i.Platform != "" && i.UserAgent != "":
		return i.Platform + " / " + i.UserAgent
	case i.Platform != "":
		return i.Platform
	default:
		return i.UserAgent
	}
}
