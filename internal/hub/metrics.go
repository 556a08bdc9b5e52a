package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuebot_queue_joins_total",
		Help: "Players added to a lobby queue",
	}, []string{"lobby"})

	queueSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queuebot_queue_size",
		Help: "Players currently waiting in a lobby queue",
	}, []string{"lobby"})

	queueTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuebot_queue_timeouts_total",
		Help: "Players removed from a queue by the expiry sweep",
	}, []string{"lobby"})

	matchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuebot_matches_started_total",
		Help: "Games created from a drained queue",
	}, []string{"lobby"})

	gamesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuebot_games_scored_total",
		Help: "Game results recorded, by outcome",
	}, []string{"lobby", "outcome"})

	replayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queuebot_rating_replay_duration_seconds",
		Help:    "Time spent replaying a lobby's game log",
		Buckets: prometheus.DefBuckets,
	})
)
