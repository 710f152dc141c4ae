package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuctionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auctions_created_total",
		Help: "Total number of auctions created",
	})

	AuctionsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auctions_finalized_total",
		Help: "Total number of auctions finalized",
	}, []string{"outcome"}) // winner, no_bids, already_finalized

	FinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auction_finalize_latency_seconds",
		Help:    "Latency of auction finalization",
		Buckets: prometheus.DefBuckets,
	})

	BidsPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bids_placed_total",
		Help: "Total number of bids accepted",
	})

	BidsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_rejected_total",
		Help: "Total number of bids rejected",
	}, []string{"reason"})

	NotificationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Total number of notifications persisted",
	})

	NotificationFanoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_fanout_failures_total",
		Help: "Total number of per-recipient notification failures",
	})

	LiveEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_events_published_total",
		Help: "Total number of live events pushed to connected sessions",
	}, []string{"event"})

	SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_sessions_connected",
		Help: "Number of currently connected live event sessions",
	})

	DeliveriesConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_confirmed_total",
		Help: "Total number of confirmed deliveries",
	}, []string{"on_time"})

	SchedulerJobsArmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_jobs_armed_total",
		Help: "Total number of one-shot lifecycle jobs scheduled",
	}, []string{"kind"}) // activate, finalize

	ReconcileSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweeps_total",
		Help: "Total number of reconciliation sweeps run",
	})

	ReconciledAuctionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciled_auctions_total",
		Help: "Total number of auctions repaired by the reconciliation sweep",
	}, []string{"kind"}) // activated, finalized

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
