package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/events"
	"github.com/unibvs/bvs-backend/internal/metrics"
	"github.com/unibvs/bvs-backend/internal/models"
	"gorm.io/gorm"
)

// errNoop marks a transition request that leaves the election unchanged.
var errNoop = errors.New("no-op transition")

type ElectionService struct {
	db        *gorm.DB
	publisher events.Publisher
	now       func() time.Time
}

func NewElectionService(db *gorm.DB, publisher events.Publisher) *ElectionService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &ElectionService{
		db:        db,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateElection creates a DRAFT election together with its positions.
func (s *ElectionService) CreateElection(ctx context.Context, req *dto.CreateElectionRequest) (*models.Election, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, badRequest("title is required")
	}

	if len(req.EligibleTypes) == 0 {
		return nil, badRequest("at least one eligible user type is required")
	}
	types := make([]models.UserType, 0, len(req.EligibleTypes))
	for _, t := range req.EligibleTypes {
		if !t.Valid() {
			return nil, badRequest("invalid user type %q", t)
		}
		if !containsType(types, t) {
			types = append(types, t)
		}
	}

	if len(req.Positions) == 0 {
		return nil, badRequest("at least one position is required")
	}
	seen := make(map[string]bool, len(req.Positions))
	positions := make([]models.Position, 0, len(req.Positions))
	for _, p := range req.Positions {
		name := strings.TrimSpace(p)
		if name == "" {
			return nil, badRequest("position names must not be empty")
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, badRequest("duplicate position %q", name)
		}
		seen[key] = true
		positions = append(positions, models.Position{Name: name})
	}

	election := models.Election{
		Title:         title,
		Status:        models.StatusDraft,
		EligibleTypes: types,
		Positions:     positions,
	}
	if err := s.db.WithContext(ctx).Create(&election).Error; err != nil {
		return nil, storeError("create election", err)
	}

	slog.Info("election created", "election_id", election.ID.String(), "positions", len(positions))
	s.publisher.Publish(ctx, events.New(events.TypeElectionCreated, election.ID, nil))
	return &election, nil
}

func (s *ElectionService) ListElections(ctx context.Context) ([]models.Election, error) {
	var elections []models.Election
	if err := s.db.WithContext(ctx).Scopes(database.WithBallotTree).Order("created_at DESC").Find(&elections).Error; err != nil {
		return nil, storeError("list elections", err)
	}
	return elections, nil
}

func (s *ElectionService) GetElection(ctx context.Context, id uuid.UUID) (*models.Election, error) {
	var election models.Election
	if err := s.db.WithContext(ctx).Scopes(database.WithBallotTree).First(&election, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("election not found")
		}
		return nil, storeError("get election", err)
	}
	return &election, nil
}

// TransitionStatus moves an election through its lifecycle:
//
//	DRAFT -> ONGOING <-> PAUSED, ONGOING|PAUSED -> COMPLETED (terminal)
//
// The row is locked for the duration and the write is conditional on the
// status that was read, so two racing transitions cannot both apply.
func (s *ElectionService) TransitionStatus(ctx context.Context, id uuid.UUID, next models.ElectionStatus) (*models.Election, error) {
	if !next.Valid() {
		return nil, badRequest("invalid status %q", next)
	}

	var (
		result  models.Election
		from    models.ElectionStatus
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var election models.Election
		if err := tx.Scopes(database.ForUpdate).First(&election, "id = ?", id).Error; err != nil {
			if database.IsNotFound(err) {
				return notFound("election not found")
			}
			return storeError("load election", err)
		}
		from = election.Status

		if err := checkTransition(election.Status, next); err != nil {
			if errors.Is(err, errNoop) {
				result = election
				return nil
			}
			return err
		}

		if next == models.StatusOngoing {
			if err := ensureNoOverlap(tx, &election); err != nil {
				return err
			}
		}

		now := s.now()
		updates := map[string]any{"status": next, "updated_at": now}
		if next == models.StatusOngoing && election.StartDate == nil {
			updates["start_date"] = now
			election.StartDate = &now
		}
		if next == models.StatusCompleted {
			updates["end_date"] = now
			election.EndDate = &now
		}

		res := tx.Model(&models.Election{}).
			Where("id = ? AND status = ?", election.ID, election.Status).
			Updates(updates)
		if res.Error != nil {
			return storeError("update election status", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("election status changed concurrently; reload and retry")
		}

		election.Status = next
		election.UpdatedAt = now
		result = election
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.ElectionTransitions.WithLabelValues(string(from), string(next)).Inc()
		slog.Info("election status changed", "election_id", id.String(), "from", from, "to", next)
		s.publisher.Publish(ctx, events.New(events.TypeElectionStatusChanged, id, map[string]string{
			"from": string(from),
			"to":   string(next),
		}))
	}
	return &result, nil
}

// checkTransition applies the lifecycle rules in order. errNoop means the
// request is accepted but nothing changes.
func checkTransition(current, next models.ElectionStatus) error {
	switch {
	case current == models.StatusCompleted:
		return invalidState("election is completed; no further status changes are allowed")
	case next == models.StatusPaused && current != models.StatusOngoing:
		return invalidState("only an ongoing election can be paused")
	case next == models.StatusOngoing && current == models.StatusOngoing:
		return errNoop
	case next == models.StatusDraft && current == models.StatusDraft:
		return errNoop
	case next == models.StatusDraft:
		return invalidState("an election cannot return to draft once it has opened")
	case next == models.StatusCompleted && current == models.StatusDraft:
		return invalidState("a draft election cannot be completed; it never opened")
	}
	return nil
}

// ensureNoOverlap keeps at most one ONGOING election per eligible user type.
// Concurrent openings serialize on the schedule lock so each scan sees the
// others' committed status.
func ensureNoOverlap(tx *gorm.DB, election *models.Election) error {
	if err := database.LockSchedule(tx); err != nil {
		return storeError("lock election schedule", err)
	}
	var ongoing []models.Election
	if err := tx.Where("status = ? AND id <> ?", models.StatusOngoing, election.ID).Find(&ongoing).Error; err != nil {
		return storeError("load ongoing elections", err)
	}
	for i := range ongoing {
		if election.SharesEligibleType(&ongoing[i]) {
			return conflict("election %q is already ongoing for an overlapping set of user types", ongoing[i].Title)
		}
	}
	return nil
}

// GetActiveBallot returns the ONGOING election the user may vote in, with
// its positions and candidates. Admins see the earliest ONGOING election of
// any type and are not blocked by having voted.
func (s *ElectionService) GetActiveBallot(ctx context.Context, userID uuid.UUID, asAdmin bool) (*models.Election, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storeError("load user", err)
	}

	var ongoing []models.Election
	if err := db.Where("status = ?", models.StatusOngoing).
		Order("start_date ASC").Order("created_at ASC").
		Find(&ongoing).Error; err != nil {
		return nil, storeError("load ongoing elections", err)
	}

	var match *models.Election
	for i := range ongoing {
		if asAdmin || ongoing[i].IsEligible(user.UserType) {
			match = &ongoing[i]
			break
		}
	}
	if match == nil {
		return nil, notFound("no active election found for your user type")
	}

	if !asAdmin {
		voted, err := hasVoted(db, user.ID, match.ID)
		if err != nil {
			return nil, err
		}
		if voted {
			return nil, forbidden("you have already voted in this election")
		}
	}

	var election models.Election
	if err := db.Scopes(database.WithBallotTree).First(&election, "id = ?", match.ID).Error; err != nil {
		return nil, storeError("load ballot", err)
	}
	return &election, nil
}

// SubmitVote records that the user voted and writes one anonymous ballot
// per selection, all in one transaction. The unique index on
// (user_id, election_id) is what finally rejects a concurrent double vote.
func (s *ElectionService) SubmitVote(ctx context.Context, userID uuid.UUID, req *dto.SubmitVoteRequest) (receipt *dto.VoteReceipt, err error) {
	start := time.Now()
	defer func() {
		metrics.VoteDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		if err != nil {
			metrics.VoteRejections.WithLabelValues(rejectReason(err)).Inc()
		}
	}()

	if req.ElectionID == uuid.Nil {
		return nil, badRequest("election_id is required")
	}
	if len(req.Selections) == 0 {
		return nil, badRequest("at least one selection is required")
	}

	now := s.now()
	var ballots []models.Ballot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voted, err := hasVoted(tx, userID, req.ElectionID)
		if err != nil {
			return err
		}
		if voted {
			return forbidden("you have already voted in this election")
		}

		var election models.Election
		if err := tx.Scopes(database.ForShare).First(&election, "id = ?", req.ElectionID).Error; err != nil {
			if database.IsNotFound(err) {
				return badRequest("no ongoing election exists with this id")
			}
			return storeError("load election", err)
		}
		if election.Status != models.StatusOngoing {
			return badRequest("election is not open for voting (status %s)", election.Status)
		}

		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if database.IsNotFound(err) {
				return notFound("user not found")
			}
			return storeError("load user", err)
		}
		if !election.IsEligible(user.UserType) {
			return forbidden("user type %s is not eligible for this election", user.UserType)
		}

		ballots, err = buildBallots(tx, &election, req.Selections)
		if err != nil {
			return err
		}

		record := models.VoterRecord{UserID: userID, ElectionID: election.ID, VotedAt: now}
		if err := tx.Create(&record).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return forbidden("you have already voted in this election")
			}
			return storeError("create voter record", err)
		}

		if err := tx.CreateInBatches(&ballots, 100).Error; err != nil {
			return storeError("create ballots", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VotesRecorded.Inc()
	metrics.BallotsRecorded.Add(float64(len(ballots)))
	slog.Info("vote recorded", "election_id", req.ElectionID.String(), "selections", len(ballots))
	s.publisher.Publish(ctx, events.New(events.TypeVoteRecorded, req.ElectionID, nil))

	return &dto.VoteReceipt{
		Success:   true,
		Message:   "your vote has been cast anonymously and recorded",
		Timestamp: now,
	}, nil
}

// buildBallots validates selections against the election's positions and
// candidates: every position and candidate must belong to the election, the
// candidate must stand for the named position, and each position may be
// chosen at most once.
func buildBallots(tx *gorm.DB, election *models.Election, selections []dto.Selection) ([]models.Ballot, error) {
	var positions []models.Position
	if err := tx.Preload("Candidates").Where("election_id = ?", election.ID).Find(&positions).Error; err != nil {
		return nil, storeError("load positions", err)
	}

	candidatesByPosition := make(map[uuid.UUID]map[uuid.UUID]bool, len(positions))
	for _, p := range positions {
		set := make(map[uuid.UUID]bool, len(p.Candidates))
		for _, c := range p.Candidates {
			set[c.ID] = true
		}
		candidatesByPosition[p.ID] = set
	}

	chosen := make(map[uuid.UUID]bool, len(selections))
	ballots := make([]models.Ballot, 0, len(selections))
	for i, sel := range selections {
		candidates, ok := candidatesByPosition[sel.PositionID]
		if !ok {
			return nil, badRequest("selection %d: position does not belong to this election", i)
		}
		if !candidates[sel.CandidateID] {
			return nil, badRequest("selection %d: candidate is not standing for this position", i)
		}
		if chosen[sel.PositionID] {
			return nil, badRequest("selection %d: position already has a selection", i)
		}
		chosen[sel.PositionID] = true
		ballots = append(ballots, models.Ballot{
			ElectionID:  election.ID,
			PositionID:  sel.PositionID,
			CandidateID: sel.CandidateID,
		})
	}
	return ballots, nil
}

// GetResults tallies ballots per candidate. Voters can only see results of
// completed elections; admins can watch them live.
func (s *ElectionService) GetResults(ctx context.Context, id uuid.UUID, asAdmin bool) (*dto.ElectionResults, error) {
	election, err := s.GetElection(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asAdmin && election.Status != models.StatusCompleted {
		return nil, forbidden("results are available once the election is completed")
	}

	db := s.db.WithContext(ctx)

	var rows []struct {
		CandidateID uuid.UUID
		Votes       int64
	}
	if err := db.Model(&models.Ballot{}).
		Select("candidate_id, COUNT(*) AS votes").
		Where("election_id = ?", id).
		Group("candidate_id").
		Scan(&rows).Error; err != nil {
		return nil, storeError("tally ballots", err)
	}
	votes := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		votes[r.CandidateID] = r.Votes
	}

	var turnout int64
	if err := db.Model(&models.VoterRecord{}).Where("election_id = ?", id).Count(&turnout).Error; err != nil {
		return nil, storeError("count voter records", err)
	}

	results := &dto.ElectionResults{
		ElectionID: election.ID,
		Title:      election.Title,
		Status:     election.Status,
		Turnout:    turnout,
		Positions:  make([]dto.PositionResult, 0, len(election.Positions)),
	}
	for _, p := range election.Positions {
		pr := dto.PositionResult{
			PositionID: p.ID,
			Name:       p.Name,
			Candidates: make([]dto.CandidateResult, 0, len(p.Candidates)),
		}
		for _, c := range p.Candidates {
			n := votes[c.ID]
			pr.TotalVotes += n
			pr.Candidates = append(pr.Candidates, dto.CandidateResult{CandidateID: c.ID, Name: c.Name, Votes: n})
		}
		results.Positions = append(results.Positions, pr)
	}
	return results, nil
}

func hasVoted(db *gorm.DB, userID, electionID uuid.UUID) (bool, error) {
	var count int64
	if err := db.Model(&models.VoterRecord{}).
		Where("user_id = ? AND election_id = ?", userID, electionID).
		Count(&count).Error; err != nil {
		return false, storeError("check voter record", err)
	}
	return count > 0, nil
}

func containsType(types []models.UserType, t models.UserType) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return "error"
}
