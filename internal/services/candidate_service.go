package services

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/models"
	"gorm.io/gorm"
)

type CandidateService struct {
	db *gorm.DB
}

func NewCandidateService(db *gorm.DB) *CandidateService {
	return &CandidateService{db: db}
}

// CandidateInput is the descriptive part of a new candidate.
type CandidateInput struct {
	Name      string
	Manifesto string
	ImageURL  string
}

// AddCandidate registers a candidate for a position. Candidates can only be
// added while the election is still a DRAFT.
func (s *CandidateService) AddCandidate(ctx context.Context, electionID, positionID uuid.UUID, in CandidateInput) (*models.Candidate, error) {
	candidate := models.Candidate{
		ElectionID: electionID,
		PositionID: positionID,
		Name:       strings.TrimSpace(in.Name),
		Manifesto:  strings.TrimSpace(in.Manifesto),
		ImageURL:   strings.TrimSpace(in.ImageURL),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var election models.Election
		if err := tx.Scopes(database.ForShare).First(&election, "id = ?", electionID).Error; err != nil {
			if database.IsNotFound(err) {
				return notFound("election not found")
			}
			return storeError("load election", err)
		}
		if election.Status != models.StatusDraft {
			return invalidState("candidates can only be added while the election is a draft (status %s)", election.Status)
		}

		var count int64
		if err := tx.Model(&models.Position{}).
			Where("id = ? AND election_id = ?", positionID, electionID).
			Count(&count).Error; err != nil {
			return storeError("load position", err)
		}
		if count == 0 {
			return invalidState("position does not belong to this election")
		}

		if candidate.Name == "" {
			return badRequest("candidate name is required")
		}
		if candidate.ImageURL != "" && !validImageURL(candidate.ImageURL) {
			return badRequest("image_url must be an absolute http(s) URL")
		}

		if err := tx.Create(&candidate).Error; err != nil {
			return storeError("create candidate", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("candidate added", "election_id", candidate.ElectionID.String(), "candidate_id", candidate.ID.String())
	return &candidate, nil
}

// RemoveCandidate deletes a candidate that has received no votes. The
// election row is locked so no vote can land between the check and the
// delete.
func (s *CandidateService) RemoveCandidate(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	var candidate models.Candidate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&candidate, "id = ?", id).Error; err != nil {
			if database.IsNotFound(err) {
				return notFound("candidate not found")
			}
			return storeError("load candidate", err)
		}

		var election models.Election
		if err := tx.Scopes(database.ForUpdate).First(&election, "id = ?", candidate.ElectionID).Error; err != nil {
			if database.IsNotFound(err) {
				return notFound("election not found")
			}
			return storeError("load election", err)
		}

		var votes int64
		if err := tx.Model(&models.Ballot{}).Where("candidate_id = ?", candidate.ID).Count(&votes).Error; err != nil {
			return storeError("count ballots", err)
		}
		if votes > 0 {
			return conflict("candidate has already received votes and cannot be removed")
		}
		if election.Status == models.StatusOngoing {
			return invalidState("candidates cannot be removed while the election is ongoing")
		}

		if err := tx.Delete(&candidate).Error; err != nil {
			return storeError("delete candidate", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("candidate removed", "election_id", candidate.ElectionID.String(), "candidate_id", candidate.ID.String())
	return &candidate, nil
}

func validImageURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
