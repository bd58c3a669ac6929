// Package events publishes election lifecycle facts to downstream consumers
// (notification service, results board). Events never carry voter identity.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeElectionCreated       = "election.created"
	TypeElectionStatusChanged = "election.status_changed"
	TypeVoteRecorded          = "election.vote_recorded"
)

type Event struct {
	Type       string            `json:"type"`
	ElectionID uuid.UUID         `json:"election_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func New(eventType string, electionID uuid.UUID, attrs map[string]string) Event {
	return Event{
		Type:       eventType,
		ElectionID: electionID,
		OccurredAt: time.Now().UTC(),
		Attributes: attrs,
	}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Publish must not block the caller on broker
// availability; delivery failures are logged, not returned.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// LogPublisher writes events to the structured log. It is the fallback when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) {
	slog.Info("event", "type", event.Type, "election_id", event.ElectionID.String(), "attributes", event.Attributes)
}

func (LogPublisher) Close() {}

// Recorder keeps published events in memory; used by tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

func (r *Recorder) Close() {}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}
