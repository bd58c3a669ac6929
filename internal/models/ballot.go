package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoterRecord proves that a user voted in an election. It never carries
// selection data; the unique index is what prevents double voting.
type VoterRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_voter_records_user_election" json:"user_id"`
	ElectionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_voter_records_user_election;index" json:"election_id"`
	VotedAt    time.Time `gorm:"not null" json:"voted_at"`
}

func (r *VoterRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Ballot is one anonymous selection. It has no voter column and no
// timestamp, so it cannot be joined or time-correlated to a VoterRecord.
type Ballot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ElectionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"election_id"`
	PositionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"position_id"`
	CandidateID uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
}

func (b *Ballot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
