package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/events"
	"github.com/unibvs/bvs-backend/internal/models"
	"github.com/unibvs/bvs-backend/internal/testutil"
	"gorm.io/gorm"
)

var studentsOnly = []models.UserType{models.UserTypeStudent}

type ElectionServiceSuite struct {
	suite.Suite
	ctx      context.Context
	db       *gorm.DB
	recorder *events.Recorder
	svc      *ElectionService
}

func TestElectionServiceSuite(t *testing.T) {
	suite.Run(t, new(ElectionServiceSuite))
}

func (s *ElectionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.SetupTestDB(s.T())
	s.recorder = &events.Recorder{}
	s.svc = NewElectionService(s.db, s.recorder)
}

// openBallot creates an ONGOING election with two positions and two
// candidates each, and returns it fully loaded.
func (s *ElectionServiceSuite) openBallot(types []models.UserType) *models.Election {
	e := testutil.CreateTestElection(s.T(), s.db, models.StatusOngoing, types, "President", "Treasurer")
	for _, p := range e.Positions {
		testutil.AddTestCandidate(s.T(), s.db, p, p.Name+" A")
		testutil.AddTestCandidate(s.T(), s.db, p, p.Name+" B")
	}
	loaded, err := s.svc.GetElection(s.ctx, e.ID)
	s.Require().NoError(err)
	return loaded
}

func fullSelection(e *models.Election) []dto.Selection {
	sel := make([]dto.Selection, 0, len(e.Positions))
	for _, p := range e.Positions {
		sel = append(sel, dto.Selection{PositionID: p.ID, CandidateID: p.Candidates[0].ID})
	}
	return sel
}

func (s *ElectionServiceSuite) countRows(model any, where string, args ...any) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func (s *ElectionServiceSuite) TestCreateElection() {
	s.Run("creates a draft with positions", func() {
		e, err := s.svc.CreateElection(s.ctx, &dto.CreateElectionRequest{
			Title:         "  SRC General Election ",
			EligibleTypes: []models.UserType{models.UserTypeStudent, models.UserTypeStudent},
			Positions:     []string{"President", "Secretary"},
		})
		s.Require().NoError(err)
		s.Equal("SRC General Election", e.Title)
		s.Equal(models.StatusDraft, e.Status)
		s.Equal(studentsOnly, []models.UserType(e.EligibleTypes))
		s.Len(e.Positions, 2)
		s.Nil(e.StartDate)
		s.Contains(s.recorder.Types(), events.TypeElectionCreated)
	})

	cases := []struct {
		name string
		req  dto.CreateElectionRequest
	}{
		{"missing title", dto.CreateElectionRequest{EligibleTypes: studentsOnly, Positions: []string{"P"}}},
		{"no eligible types", dto.CreateElectionRequest{Title: "T", Positions: []string{"P"}}},
		{"unknown user type", dto.CreateElectionRequest{Title: "T", EligibleTypes: []models.UserType{"ALUMNI"}, Positions: []string{"P"}}},
		{"no positions", dto.CreateElectionRequest{Title: "T", EligibleTypes: studentsOnly}},
		{"blank position", dto.CreateElectionRequest{Title: "T", EligibleTypes: studentsOnly, Positions: []string{" "}}},
		{"duplicate position", dto.CreateElectionRequest{Title: "T", EligibleTypes: studentsOnly, Positions: []string{"President", "president"}}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.CreateElection(s.ctx, &tc.req)
			s.ErrorIs(err, ErrBadRequest)
		})
	}
}

func (s *ElectionServiceSuite) TestTransitionStatus_Lifecycle() {
	e := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft, studentsOnly, "President")

	opened, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusOngoing)
	s.Require().NoError(err)
	s.Equal(models.StatusOngoing, opened.Status)
	s.Require().NotNil(opened.StartDate)
	firstStart := *opened.StartDate

	paused, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusPaused)
	s.Require().NoError(err)
	s.Equal(models.StatusPaused, paused.Status)

	resumed, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusOngoing)
	s.Require().NoError(err)
	s.Require().NotNil(resumed.StartDate)
	s.WithinDuration(firstStart, *resumed.StartDate, time.Millisecond, "start date is stamped once")

	completed, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusCompleted)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, completed.Status)
	s.NotNil(completed.EndDate)

	for _, next := range []models.ElectionStatus{models.StatusDraft, models.StatusOngoing, models.StatusPaused, models.StatusCompleted} {
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, next)
		s.ErrorIs(err, ErrInvalidState, "COMPLETED -> %s", next)
	}

	var stored models.Election
	s.Require().NoError(s.db.First(&stored, "id = ?", e.ID).Error)
	s.Equal(models.StatusCompleted, stored.Status)
	s.Equal([]string{
		events.TypeElectionStatusChanged,
		events.TypeElectionStatusChanged,
		events.TypeElectionStatusChanged,
		events.TypeElectionStatusChanged,
	}, s.recorder.Types())
}

func (s *ElectionServiceSuite) TestTransitionStatus_Rules() {
	s.Run("draft cannot be paused", func() {
		e := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft, studentsOnly, "P")
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusPaused)
		s.ErrorIs(err, ErrInvalidState)
	})

	s.Run("paused cannot be paused again", func() {
		e := testutil.CreateTestElection(s.T(), s.db, models.StatusPaused, []models.UserType{models.UserTypeStaff}, "P")
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusPaused)
		s.ErrorIs(err, ErrInvalidState)
	})

	s.Run("draft cannot be completed", func() {
		e := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft, studentsOnly, "P")
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusCompleted)
		s.ErrorIs(err, ErrInvalidState)
	})

	s.Run("ongoing cannot return to draft", func() {
		e := testutil.CreateTestElection(s.T(), s.db, models.StatusOngoing, []models.UserType{models.UserTypeStaff}, "P")
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusDraft)
		s.ErrorIs(err, ErrInvalidState)
	})

	s.Run("draft to draft is a no-op", func() {
		e := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft, studentsOnly, "P")
		got, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusDraft)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, got.Status)
	})

	s.Run("unknown status", func() {
		e := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft, studentsOnly, "P")
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, "ARCHIVED")
		s.ErrorIs(err, ErrBadRequest)
	})

	s.Run("missing election", func() {
		_, err := s.svc.TransitionStatus(s.ctx, uuid.New(), models.StatusOngoing)
		s.ErrorIs(err, ErrNotFound)
	})
}

func (s *ElectionServiceSuite) TestTransitionStatus_OngoingIsIdempotent() {
	e := testutil.CreateTestElection(s.T(), s.db, models.StatusOngoing, studentsOnly, "P")
	before := *e.StartDate

	got, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusOngoing)
	s.Require().NoError(err)
	s.Equal(models.StatusOngoing, got.Status)
	s.Require().NotNil(got.StartDate)
	s.WithinDuration(before, *got.StartDate, time.Millisecond)
	s.Empty(s.recorder.Types(), "a no-op publishes nothing")
}

func (s *ElectionServiceSuite) TestTransitionStatus_OverlappingOngoing() {
	testutil.CreateTestElection(s.T(), s.db, models.StatusOngoing, studentsOnly, "P")

	mixed := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft,
		[]models.UserType{models.UserTypeStaff, models.UserTypeStudent}, "P")
	_, err := s.svc.TransitionStatus(s.ctx, mixed.ID, models.StatusOngoing)
	s.ErrorIs(err, ErrConflict)

	staff := testutil.CreateTestElection(s.T(), s.db, models.StatusDraft, []models.UserType{models.UserTypeStaff}, "P")
	_, err = s.svc.TransitionStatus(s.ctx, staff.ID, models.StatusOngoing)
	s.NoError(err)
}

func (s *ElectionServiceSuite) TestGetActiveBallot() {
	student := testutil.CreateTestUser(s.T(), s.db, "22/1001", models.UserTypeStudent, models.RoleVoter)
	staff := testutil.CreateTestUser(s.T(), s.db, "ST-01", models.UserTypeStaff, models.RoleVoter)
	admin := testutil.CreateTestUser(s.T(), s.db, "ADMIN-001", models.UserTypeStaff, models.RoleAdmin)

	s.Run("no ongoing election", func() {
		_, err := s.svc.GetActiveBallot(s.ctx, student.ID, false)
		s.ErrorIs(err, ErrNotFound)
	})

	s.Run("unknown user", func() {
		_, err := s.svc.GetActiveBallot(s.ctx, uuid.New(), false)
		s.ErrorIs(err, ErrNotFound)
	})

	e := s.openBallot(studentsOnly)

	s.Run("eligible voter sees the full ballot", func() {
		ballot, err := s.svc.GetActiveBallot(s.ctx, student.ID, false)
		s.Require().NoError(err)
		s.Equal(e.ID, ballot.ID)
		s.Require().Len(ballot.Positions, 2)
		s.Len(ballot.Positions[0].Candidates, 2)
	})

	s.Run("ineligible user type", func() {
		_, err := s.svc.GetActiveBallot(s.ctx, staff.ID, false)
		s.ErrorIs(err, ErrNotFound)
	})

	s.Run("admin previews any ongoing election", func() {
		ballot, err := s.svc.GetActiveBallot(s.ctx, admin.ID, true)
		s.Require().NoError(err)
		s.Equal(e.ID, ballot.ID)
	})

	s.Run("voter flag without admin rights", func() {
		_, err := s.svc.GetActiveBallot(s.ctx, admin.ID, false)
		s.ErrorIs(err, ErrNotFound, "staff admin sees only staff ballots when not acting as admin")
	})

	s.Run("allowlisted admin previews with a voter role", func() {
		ballot, err := s.svc.GetActiveBallot(s.ctx, staff.ID, true)
		s.Require().NoError(err)
		s.Equal(e.ID, ballot.ID)
	})

	s.Run("already voted", func() {
		_, err := s.svc.SubmitVote(s.ctx, student.ID, &dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)})
		s.Require().NoError(err)

		_, err = s.svc.GetActiveBallot(s.ctx, student.ID, false)
		s.ErrorIs(err, ErrForbidden)
	})

	s.Run("paused election is not offered", func() {
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusPaused)
		s.Require().NoError(err)
		_, err = s.svc.GetActiveBallot(s.ctx, admin.ID, true)
		s.ErrorIs(err, ErrNotFound)
	})
}

func (s *ElectionServiceSuite) TestSubmitVote_Success() {
	student := testutil.CreateTestUser(s.T(), s.db, "22/0001", models.UserTypeStudent, models.RoleVoter)
	e := s.openBallot(studentsOnly)

	receipt, err := s.svc.SubmitVote(s.ctx, student.ID, &dto.SubmitVoteRequest{
		ElectionID: e.ID,
		Selections: fullSelection(e),
	})
	s.Require().NoError(err)
	s.True(receipt.Success)
	s.False(receipt.Timestamp.IsZero())

	s.Equal(int64(1), s.countRows(&models.VoterRecord{}, "user_id = ? AND election_id = ?", student.ID, e.ID))
	s.Equal(int64(2), s.countRows(&models.Ballot{}, "election_id = ?", e.ID))
	s.Contains(s.recorder.Types(), events.TypeVoteRecorded)

	_, err = s.svc.SubmitVote(s.ctx, student.ID, &dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)})
	s.ErrorIs(err, ErrForbidden)
	s.Equal(int64(2), s.countRows(&models.Ballot{}, "election_id = ?", e.ID))
}

func (s *ElectionServiceSuite) TestSubmitVote_Rejections() {
	student := testutil.CreateTestUser(s.T(), s.db, "22/0002", models.UserTypeStudent, models.RoleVoter)
	staff := testutil.CreateTestUser(s.T(), s.db, "ST-02", models.UserTypeStaff, models.RoleVoter)
	admin := testutil.CreateTestUser(s.T(), s.db, "ADMIN-002", models.UserTypeStaff, models.RoleAdmin)
	e := s.openBallot(studentsOnly)
	other := s.openBallot([]models.UserType{models.UserTypeStaff})

	president, treasurer := e.Positions[0], e.Positions[1]

	cases := []struct {
		name   string
		userID uuid.UUID
		req    dto.SubmitVoteRequest
		kind   error
	}{
		{"missing election id", student.ID, dto.SubmitVoteRequest{Selections: fullSelection(e)}, ErrBadRequest},
		{"no selections", student.ID, dto.SubmitVoteRequest{ElectionID: e.ID}, ErrBadRequest},
		{"unknown election", student.ID, dto.SubmitVoteRequest{ElectionID: uuid.New(), Selections: fullSelection(e)}, ErrBadRequest},
		{"ineligible user type", staff.ID, dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)}, ErrForbidden},
		{"admin gets no bypass", admin.ID, dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)}, ErrForbidden},
		{"unknown user", uuid.New(), dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)}, ErrNotFound},
		{"position from another election", student.ID, dto.SubmitVoteRequest{ElectionID: e.ID, Selections: []dto.Selection{
			{PositionID: other.Positions[0].ID, CandidateID: other.Positions[0].Candidates[0].ID},
		}}, ErrBadRequest},
		{"candidate of another position", student.ID, dto.SubmitVoteRequest{ElectionID: e.ID, Selections: []dto.Selection{
			{PositionID: president.ID, CandidateID: treasurer.Candidates[0].ID},
		}}, ErrBadRequest},
		{"two selections for one position", student.ID, dto.SubmitVoteRequest{ElectionID: e.ID, Selections: []dto.Selection{
			{PositionID: president.ID, CandidateID: president.Candidates[0].ID},
			{PositionID: president.ID, CandidateID: president.Candidates[1].ID},
		}}, ErrBadRequest},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.SubmitVote(s.ctx, tc.userID, &tc.req)
			s.ErrorIs(err, tc.kind)
		})
	}

	s.Equal(int64(0), s.countRows(&models.VoterRecord{}, "election_id = ?", e.ID), "rejected votes leave no trace")
	s.Equal(int64(0), s.countRows(&models.Ballot{}, "election_id = ?", e.ID))

	s.Run("paused election", func() {
		_, err := s.svc.TransitionStatus(s.ctx, e.ID, models.StatusPaused)
		s.Require().NoError(err)
		_, err = s.svc.SubmitVote(s.ctx, student.ID, &dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)})
		s.ErrorIs(err, ErrBadRequest)
	})
}

func (s *ElectionServiceSuite) TestSubmitVote_PartialBallot() {
	student := testutil.CreateTestUser(s.T(), s.db, "22/0003", models.UserTypeStudent, models.RoleVoter)
	e := s.openBallot(studentsOnly)

	_, err := s.svc.SubmitVote(s.ctx, student.ID, &dto.SubmitVoteRequest{
		ElectionID: e.ID,
		Selections: fullSelection(e)[:1],
	})
	s.Require().NoError(err)
	s.Equal(int64(1), s.countRows(&models.Ballot{}, "election_id = ?", e.ID))
}

// TestSubmitVote_ConcurrentSingleVoter fires many submissions for the same
// voter at once; exactly one may commit.
func (s *ElectionServiceSuite) TestSubmitVote_ConcurrentSingleVoter() {
	student := testutil.CreateTestUser(s.T(), s.db, "22/0004", models.UserTypeStudent, models.RoleVoter)
	e := s.openBallot(studentsOnly)
	const attempts = 10

	var wg sync.WaitGroup
	var successes, forbidden, other atomic.Int32
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.SubmitVote(s.ctx, student.ID, &dto.SubmitVoteRequest{ElectionID: e.ID, Selections: fullSelection(e)})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrForbidden):
				forbidden.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(attempts-1), forbidden.Load())
	s.Equal(int32(0), other.Load())
	s.Equal(int64(1), s.countRows(&models.VoterRecord{}, "election_id = ?", e.ID))
	s.Equal(int64(len(e.Positions)), s.countRows(&models.Ballot{}, "election_id = ?", e.ID))
}

func (s *ElectionServiceSuite) TestGetResults() {
	voters := []*models.User{
		testutil.CreateTestUser(s.T(), s.db, "22/0101", models.UserTypeStudent, models.RoleVoter),
		testutil.CreateTestUser(s.T(), s.db, "22/0102", models.UserTypeStudent, models.RoleVoter),
		testutil.CreateTestUser(s.T(), s.db, "22/0103", models.UserTypeStudent, models.RoleVoter),
	}
	e := s.openBallot(studentsOnly)
	president := e.Positions[0]

	for i, v := range voters {
		pick := president.Candidates[0].ID
		if i == 2 {
			pick = president.Candidates[1].ID
		}
		_, err := s.svc.SubmitVote(s.ctx, v.ID, &dto.SubmitVoteRequest{
			ElectionID: e.ID,
			Selections: []dto.Selection{{PositionID: president.ID, CandidateID: pick}},
		})
		s.Require().NoError(err)
	}

	_, err := s.svc.GetResults(s.ctx, e.ID, false)
	s.ErrorIs(err, ErrForbidden, "voters wait for completion")

	results, err := s.svc.GetResults(s.ctx, e.ID, true)
	s.Require().NoError(err)
	s.Equal(int64(3), results.Turnout)
	s.Require().Len(results.Positions, 2)
	s.Equal(int64(3), results.Positions[0].TotalVotes)
	s.Equal(int64(2), results.Positions[0].Candidates[0].Votes)
	s.Equal(int64(1), results.Positions[0].Candidates[1].Votes)
	s.Equal(int64(0), results.Positions[1].TotalVotes)
	s.Len(results.Positions[1].Candidates, 2, "candidates without votes are listed")

	_, err = s.svc.TransitionStatus(s.ctx, e.ID, models.StatusCompleted)
	s.Require().NoError(err)
	results, err = s.svc.GetResults(s.ctx, e.ID, false)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, results.Status)

	_, err = s.svc.GetResults(s.ctx, uuid.New(), true)
	s.ErrorIs(err, ErrNotFound)
}

// Ballots must never be traceable to a voter, directly or by time.
func TestBallotCarriesNoVoterIdentity(t *testing.T) {
	typ := reflect.TypeOf(models.Ballot{})
	timeType := reflect.TypeOf(time.Time{})
	for i := range typ.NumField() {
		f := typ.Field(i)
		name := strings.ToLower(f.Name)
		if strings.Contains(name, "user") || strings.Contains(name, "voter") {
			t.Errorf("Ballot has identity field %s", f.Name)
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft == timeType {
			t.Errorf("Ballot has timestamp field %s", f.Name)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	all := []models.ElectionStatus{models.StatusDraft, models.StatusOngoing, models.StatusPaused, models.StatusCompleted}
	allowed := map[[2]models.ElectionStatus]bool{
		{models.StatusDraft, models.StatusOngoing}:     true,
		{models.StatusOngoing, models.StatusPaused}:    true,
		{models.StatusOngoing, models.StatusCompleted}: true,
		{models.StatusPaused, models.StatusOngoing}:    true,
		{models.StatusPaused, models.StatusCompleted}:  true,
	}
	noops := map[[2]models.ElectionStatus]bool{
		{models.StatusDraft, models.StatusDraft}:     true,
		{models.StatusOngoing, models.StatusOngoing}: true,
	}

	for _, from := range all {
		for _, to := range all {
			err := checkTransition(from, to)
			key := [2]models.ElectionStatus{from, to}
			switch {
			case allowed[key]:
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
			case noops[key]:
				if !errors.Is(err, errNoop) {
					t.Errorf("%s -> %s: expected no-op, got %v", from, to, err)
				}
			default:
				if !errors.Is(err, ErrInvalidState) {
					t.Errorf("%s -> %s: expected invalid state, got %v", from, to, err)
				}
			}
		}
	}
}
