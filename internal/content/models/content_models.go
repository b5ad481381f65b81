package models

import (
	"time"

	"gorm.io/datatypes"
)

// Section groups subjects; learners only see published sections.
type Section struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Order       int        `gorm:"column:sort_order;not null;default:0;index" json:"order"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *Section) Published() bool { return s.PublishedAt != nil }

// Subject is a lesson: an ordered list of content items behind a point gate.
type Subject struct {
	ID                string     `gorm:"primaryKey;size:64" json:"id"`
	SectionID         string     `gorm:"size:64;not null;index" json:"section_id"`
	Title             string     `gorm:"not null" json:"title"`
	Description       string     `json:"description"`
	Order             int        `gorm:"column:sort_order;not null;default:0" json:"order"`
	MinPointsRequired int        `gorm:"not null;default:0" json:"min_points_required"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (s *Subject) Published() bool { return s.PublishedAt != nil }

// Content is the stored form of an Item. Variant-specific fields live in Payload;
// MaxPoints and TimeLimitSeconds are columns because scoring reads them.
type Content struct {
	ID               string         `gorm:"primaryKey;size:64" json:"id"`
	SectionID        string         `gorm:"size:64;not null;index" json:"section_id"`
	SubjectID        string         `gorm:"size:64;not null;index" json:"subject_id"`
	Type             ItemType       `gorm:"size:16;not null;index" json:"type"`
	Order            int            `gorm:"column:sort_order;not null;default:0" json:"order"`
	Title            string         `json:"title"`
	MaxPoints        int            `gorm:"not null;default:0" json:"max_points"`
	TimeLimitSeconds int            `gorm:"not null;default:0" json:"time_limit_seconds"`
	Payload          datatypes.JSON `json:"payload"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CreateSectionRequest is the request body for creating or updating a section
type CreateSectionRequest struct {
	ID          string `json:"id" binding:"omitempty,max=64"`
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Description string `json:"description"`
}

// CreateSubjectRequest is the request body for creating or updating a subject
type CreateSubjectRequest struct {
	ID                string `json:"id" binding:"omitempty,max=64"`
	Title             string `json:"title" binding:"required,min=1,max=255"`
	Description       string `json:"description"`
	MinPointsRequired int    `json:"min_points_required" binding:"min=0"`
}

// ReorderRequest lists ids in their new order.
type ReorderRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,required"`
}

// SectionResponse is a section with its subjects.
type SectionResponse struct {
	Section
	Subjects []Subject `json:"subjects"`
}

// SubjectResponse is a subject with the items a learner works through.
type SubjectResponse struct {
	Subject
	Items []ItemView `json:"items"`
}
