package dto

import (
	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/models"
)

type CreateCandidateRequest struct {
	ElectionID uuid.UUID `json:"election_id"`
	PositionID uuid.UUID `json:"position_id"`
	Name       string    `json:"name"`
	Manifesto  string    `json:"manifesto"`
	ImageURL   string    `json:"image_url"`
}

type VoterImportItem struct {
	IDNumber string          `json:"id_num"`
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	UserType models.UserType `json:"user_type,omitempty"`
	PIN      string          `json:"pin,omitempty"`
}

type ImportVotersRequest struct {
	Voters []VoterImportItem `json:"voters"`
}

type ImportVotersResponse struct {
	Imported int64 `json:"imported"`
	Skipped  int64 `json:"skipped"`
}

type VoterFilter struct {
	UserType models.UserType
	Limit    int
	Offset   int
}

type VoterSummary struct {
	ID                   uuid.UUID       `json:"id"`
	IdentificationNumber string          `json:"identification_number"`
	Email                string          `json:"email"`
	Name                 string          `json:"name"`
	UserType             models.UserType `json:"user_type"`
	Role                 models.Role     `json:"role"`
	HasPIN               bool            `json:"has_pin"`
	BiometricEnrolled    bool            `json:"biometric_enrolled"`
	Authenticators       int             `json:"authenticators"`
}

type VoterList struct {
	Voters []VoterSummary `json:"voters"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
