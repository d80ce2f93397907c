package domain

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title       string    `gorm:"index" json:"title"`
	Description string    `json:"description"`
	Category    string    `gorm:"index" json:"category"`
	Duration    string    `json:"duration"`
	CoverURL    string    `json:"cover_url"`
	CloudLink   string    `json:"cloud_link,omitempty"`

	Lessons []Lesson `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE;" json:"lessons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Lesson struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;index" json:"course_id"`
	Title    string    `json:"title"`
	FileLink string    `json:"file_link,omitempty"`
	// Key of the video in the object storage bucket. Takes precedence
	// over FileLink when set.
	VideoKey string `json:"-"`
	Order    int    `json:"order"`

	CreatedAt time.Time `json:"created_at"`
}
