package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bvs_votes_recorded_total",
		Help: "Total number of vote submissions committed",
	})

	BallotsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bvs_ballots_recorded_total",
		Help: "Total number of anonymous ballot rows written",
	})

	VoteRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bvs_vote_rejections_total",
		Help: "Vote submissions rejected, by reason",
	}, []string{"reason"})

	VoteDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bvs_vote_transaction_duration_ms",
		Help:    "Latency of the vote submission transaction in milliseconds",
		Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	ElectionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bvs_election_transitions_total",
		Help: "Election status transitions applied, by source and target status",
	}, []string{"from", "to"})

	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bvs_auth_attempts_total",
		Help: "Authentication attempts, by method and outcome",
	}, []string{"method", "outcome"})
)
