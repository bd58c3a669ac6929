package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unibvs/bvs-backend/internal/models"
	"github.com/unibvs/bvs-backend/internal/testutil"
)

func TestAddCandidate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewCandidateService(db)

	draft := testutil.CreateTestElection(t, db, models.StatusDraft, studentsOnly, "President")
	other := testutil.CreateTestElection(t, db, models.StatusDraft, studentsOnly, "President")
	ongoing := testutil.CreateTestElection(t, db, models.StatusOngoing, []models.UserType{models.UserTypeStaff}, "Dean")
	president := draft.Positions[0]

	t.Run("adds to a draft election", func(t *testing.T) {
		c, err := svc.AddCandidate(ctx, draft.ID, president.ID, CandidateInput{
			Name:      " Ada Obi ",
			Manifesto: "Better hostels",
			ImageURL:  "https://cdn.university.edu/ada.png",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada Obi", c.Name)
		assert.Equal(t, draft.ID, c.ElectionID)
		assert.Equal(t, president.ID, c.PositionID)
		assert.NotEqual(t, uuid.Nil, c.ID)
	})

	t.Run("missing election", func(t *testing.T) {
		_, err := svc.AddCandidate(ctx, uuid.New(), president.ID, CandidateInput{Name: "X"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("election not in draft", func(t *testing.T) {
		_, err := svc.AddCandidate(ctx, ongoing.ID, ongoing.Positions[0].ID, CandidateInput{Name: "X"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("position of another election", func(t *testing.T) {
		_, err := svc.AddCandidate(ctx, draft.ID, other.Positions[0].ID, CandidateInput{Name: "X"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := svc.AddCandidate(ctx, draft.ID, president.ID, CandidateInput{Name: "  "})
		assert.ErrorIs(t, err, ErrBadRequest)
	})

	t.Run("bad image url", func(t *testing.T) {
		_, err := svc.AddCandidate(ctx, draft.ID, president.ID, CandidateInput{Name: "X", ImageURL: "ftp:/nope"})
		assert.ErrorIs(t, err, ErrBadRequest)
	})
}

func TestRemoveCandidate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewCandidateService(db)
	elections := NewElectionService(db, nil)

	t.Run("removes from a draft election", func(t *testing.T) {
		e := testutil.CreateTestElection(t, db, models.StatusDraft, studentsOnly, "President")
		c := testutil.AddTestCandidate(t, db, e.Positions[0], "Ada")

		removed, err := svc.RemoveCandidate(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, removed.ID)

		var count int64
		require.NoError(t, db.Model(&models.Candidate{}).Where("id = ?", c.ID).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("missing candidate", func(t *testing.T) {
		_, err := svc.RemoveCandidate(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ongoing election", func(t *testing.T) {
		e := testutil.CreateTestElection(t, db, models.StatusOngoing, []models.UserType{models.UserTypeStaff}, "Dean")
		c := testutil.AddTestCandidate(t, db, e.Positions[0], "Prof")

		_, err := svc.RemoveCandidate(ctx, c.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("removes from a paused election when unvoted", func(t *testing.T) {
		e := testutil.CreateTestElection(t, db, models.StatusOngoing, []models.UserType{models.UserTypeStaff}, "Treasurer")
		c := testutil.AddTestCandidate(t, db, e.Positions[0], "Grace")

		_, err := elections.TransitionStatus(ctx, e.ID, models.StatusPaused)
		require.NoError(t, err)

		removed, err := svc.RemoveCandidate(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, removed.ID)

		var count int64
		require.NoError(t, db.Model(&models.Candidate{}).Where("id = ?", c.ID).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("candidate with votes", func(t *testing.T) {
		e := testutil.CreateTestElection(t, db, models.StatusOngoing, studentsOnly, "President")
		c := testutil.AddTestCandidate(t, db, e.Positions[0], "Ada")
		voter := testutil.CreateTestUser(t, db, "22/0500", models.UserTypeStudent, models.RoleVoter)
		require.NoError(t, db.Create(&models.Ballot{ElectionID: e.ID, PositionID: c.PositionID, CandidateID: c.ID}).Error)
		require.NoError(t, db.Create(&models.VoterRecord{UserID: voter.ID, ElectionID: e.ID}).Error)

		_, err := elections.TransitionStatus(ctx, e.ID, models.StatusPaused)
		require.NoError(t, err)

		_, err = svc.RemoveCandidate(ctx, c.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})
}
