package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ElectionStatus string

const (
	StatusDraft     ElectionStatus = "DRAFT"
	StatusOngoing   ElectionStatus = "ONGOING"
	StatusPaused    ElectionStatus = "PAUSED"
	StatusCompleted ElectionStatus = "COMPLETED"
)

func (s ElectionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOngoing, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// Election owns its positions. StartDate is stamped on the first move into
// ONGOING and EndDate on the move into COMPLETED.
type Election struct {
	ID            uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string                        `gorm:"size:255;not null" json:"title"`
	Status        ElectionStatus                `gorm:"size:20;not null;default:'DRAFT';index" json:"status"`
	EligibleTypes datatypes.JSONSlice[UserType] `gorm:"not null" json:"eligible_types"`
	StartDate     *time.Time                    `json:"start_date"`
	EndDate       *time.Time                    `json:"end_date"`
	Positions     []Position                    `gorm:"foreignKey:ElectionID;constraint:OnDelete:CASCADE" json:"positions,omitempty"`
	CreatedAt     time.Time                     `json:"created_at"`
	UpdatedAt     time.Time                     `json:"updated_at"`
}

func (e *Election) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsEligible reports whether users of type t may vote in e.
func (e *Election) IsEligible(t UserType) bool {
	return slices.Contains(e.EligibleTypes, t)
}

// SharesEligibleType reports whether e and other admit a common user type.
func (e *Election) SharesEligibleType(other *Election) bool {
	for _, t := range e.EligibleTypes {
		if other.IsEligible(t) {
			return true
		}
	}
	return false
}

type Position struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ElectionID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_positions_election_name" json:"election_id"`
	Name       string      `gorm:"size:255;not null;uniqueIndex:idx_positions_election_name" json:"name"`
	Candidates []Candidate `gorm:"foreignKey:PositionID" json:"candidates"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (p *Position) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Candidate carries ElectionID alongside PositionID so that ballot
// validation and status checks need no join.
type Candidate struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ElectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"election_id"`
	PositionID uuid.UUID `gorm:"type:uuid;not null;index" json:"position_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Manifesto  string    `gorm:"type:text" json:"manifesto"`
	ImageURL   string    `gorm:"size:1024" json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
