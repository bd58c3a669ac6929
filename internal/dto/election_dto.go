package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/models"
)

type CreateElectionRequest struct {
	Title         string            `json:"title"`
	EligibleTypes []models.UserType `json:"eligible_types"`
	Positions     []string          `json:"positions"`
}

type UpdateElectionStatusRequest struct {
	Status models.ElectionStatus `json:"status"`
}

type Selection struct {
	PositionID  uuid.UUID `json:"position_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
}

type SubmitVoteRequest struct {
	ElectionID uuid.UUID   `json:"election_id"`
	Selections []Selection `json:"selections"`
}

type VoteReceipt struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type CandidateResult struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Name        string    `json:"name"`
	Votes       int64     `json:"votes"`
}

type PositionResult struct {
	PositionID uuid.UUID         `json:"position_id"`
	Name       string            `json:"name"`
	TotalVotes int64             `json:"total_votes"`
	Candidates []CandidateResult `json:"candidates"`
}

type ElectionResults struct {
	ElectionID uuid.UUID             `json:"election_id"`
	Title      string                `json:"title"`
	Status     models.ElectionStatus `json:"status"`
	Turnout    int64                 `json:"turnout"`
	Positions  []PositionResult      `json:"positions"`
}
