package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Authenticator is an enrolled WebAuthn credential. SignCount is the
// authenticator's signature counter and only ever moves forward.
type Authenticator struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID                   `gorm:"type:uuid;not null;index" json:"user_id"`
	CredentialID    []byte                      `gorm:"not null;uniqueIndex" json:"-"`
	PublicKey       []byte                      `gorm:"not null" json:"-"`
	AttestationType string                      `gorm:"size:50" json:"attestation_type"`
	AAGUID          []byte                      `json:"-"`
	SignCount       uint32                      `gorm:"not null;default:0" json:"sign_count"`
	Transports      datatypes.JSONSlice[string] `json:"transports"`
	BackupEligible  bool                        `gorm:"not null;default:false" json:"backup_eligible"`
	BackupState     bool                        `gorm:"not null;default:false" json:"backup_state"`
	DeviceLabel     string                      `gorm:"size:255" json:"device_label"`
	LastUsedAt      *time.Time                  `json:"last_used_at"`
	CreatedAt       time.Time                   `json:"created_at"`
}

func (a *Authenticator) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
