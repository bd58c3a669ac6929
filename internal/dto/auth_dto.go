package dto

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/models"
)

type PINLoginRequest struct {
	IdentificationNumber string `json:"identification_number"`
	PIN                  string `json:"pin"`
}

type SetPINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

type BiometricOptionsRequest struct {
	IdentificationNumber string `json:"identification_number"`
}

// BiometricVerifyRequest carries the browser's assertion untouched so it can
// be handed to the WebAuthn parser as-is.
type BiometricVerifyRequest struct {
	IdentificationNumber string          `json:"identification_number"`
	Credential           json.RawMessage `json:"credential"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

type UserResponse struct {
	ID                   uuid.UUID       `json:"id"`
	IdentificationNumber string          `json:"identification_number"`
	Email                string          `json:"email"`
	Name                 string          `json:"name"`
	UserType             models.UserType `json:"user_type"`
	Role                 models.Role     `json:"role"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:                   u.ID,
		IdentificationNumber: u.IdentificationNumber,
		Email:                u.Email,
		Name:                 u.Name,
		UserType:             u.UserType,
		Role:                 u.Role,
	}
}
