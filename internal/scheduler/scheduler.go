package scheduler

import (
	"context"
	"errors"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
	"auction-service/internal/service"
	"auction-service/internal/util"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StatusRecomputer reconciles an auction's status with the clock
type StatusRecomputer interface {
	RecomputeStatus(ctx context.Context, auctionID string) (*models.Auction, error)
}

// Finalizer closes an auction and selects its winner
type Finalizer interface {
	Finalize(ctx context.Context, auctionID string) (*service.FinalizeResult, error)
}

// Store is the persistence surface the scheduler depends on
type Store interface {
	ListAuctionsPastEnd(ctx context.Context, now time.Time) ([]models.Auction, error)
	ListAuctionsPastStart(ctx context.Context, now time.Time) ([]models.Auction, error)
	ListOpenAuctions(ctx context.Context) ([]models.Auction, error)
}

// Scheduler arms two one-shot lifecycle timers per auction and runs a
// periodic reconciliation sweep. The timers are in-memory and die with the
// process; the sweep is the durable fallback that makes lifecycle
// transitions eventually consistent across restarts.
type Scheduler struct {
	store     Store
	statuses  StatusRecomputer
	finalizer Finalizer
	interval  time.Duration
	cron      gocron.Scheduler
	ctx       context.Context
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a new lifecycle scheduler
func New(store Store, statuses StatusRecomputer, finalizer Finalizer, reconcileInterval time.Duration) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		store:     store,
		statuses:  statuses,
		finalizer: finalizer,
		interval:  reconcileInterval,
		cron:      cron,
		now:       time.Now,
		logger:    util.GetLogger(),
	}, nil
}

// Start runs an immediate reconciliation, re-arms timers for every open
// auction, and begins the periodic sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	s.Reconcile(ctx)

	open, err := s.store.ListOpenAuctions(ctx)
	if err != nil {
		s.logger.Error("Failed to list open auctions for timer re-arm", zap.Error(err))
	} else {
		for i := range open {
			s.armTimers(&open[i])
		}
		s.logger.Info("Lifecycle timers re-armed", zap.Int("auctions", len(open)))
	}

	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Reconcile(s.ctx) }),
	); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Lifecycle scheduler started", zap.Duration("reconcile_interval", s.interval))
	return nil
}

// Shutdown stops the scheduler and its jobs
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// OnAuctionCreated is the synchronous hook invoked by the auction creation
// path.
func (s *Scheduler) OnAuctionCreated(auction *models.Auction) {
	s.armTimers(auction)
}

// armTimers schedules the activate and finalize one-shot jobs for one
// auction. Past-dated times fire immediately: a need posted with a start
// time in the past is live from the first moment.
func (s *Scheduler) armTimers(auction *models.Auction) {
	if auction.Finalized {
		return
	}

	id := auction.ID
	s.scheduleAt(auction.StartTime, "activate", func() { s.activate(id) })
	s.scheduleAt(auction.EndTime, "finalize", func() { s.finalize(id) })
}

func (s *Scheduler) scheduleAt(at time.Time, kind string, task func()) {
	util.SchedulerJobsArmedTotal.WithLabelValues(kind).Inc()

	if !at.After(s.now()) {
		go task()
		return
	}

	if _, err := s.cron.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(task),
	); err != nil {
		// The reconciliation sweep will pick this auction up.
		s.logger.Error("Failed to arm lifecycle timer",
			zap.String("kind", kind),
			zap.Time("at", at),
			zap.Error(err))
	}
}

// activate transitions an auction to active at its start time
func (s *Scheduler) activate(auctionID string) {
	if _, err := s.statuses.RecomputeStatus(s.ctx, auctionID); err != nil {
		s.logFailure("activate", auctionID, err)
	}
}

// finalize transitions an auction to over and selects the winner at its
// end time
func (s *Scheduler) finalize(auctionID string) {
	if _, err := s.statuses.RecomputeStatus(s.ctx, auctionID); err != nil {
		s.logFailure("finalize status", auctionID, err)
	}
	if _, err := s.finalizer.Finalize(s.ctx, auctionID); err != nil {
		s.logFailure("finalize", auctionID, err)
	}
}

// logFailure records a trigger failure without crashing the scheduler. A
// not-found auction was deleted after its timer was armed; that is a
// no-op, not an error.
func (s *Scheduler) logFailure(kind, auctionID string, err error) {
	if errors.Is(err, auctionerrors.ErrNotFound) {
		s.logger.Info("Scheduled trigger skipped, auction gone",
			zap.String("kind", kind),
			zap.String("auction_id", auctionID))
		return
	}
	s.logger.Error("Scheduled trigger failed",
		zap.String("kind", kind),
		zap.String("auction_id", auctionID),
		zap.Error(err))
}

// Reconcile finds auctions whose transitions the in-memory timers missed
// and repairs them. Safe to run concurrently with the timers because both
// paths are idempotent.
func (s *Scheduler) Reconcile(ctx context.Context) {
	util.ReconcileSweepsTotal.Inc()
	now := s.now()

	stale, err := s.store.ListAuctionsPastStart(ctx, now)
	if err != nil {
		s.logger.Error("Reconcile: failed to list stale upcoming auctions", zap.Error(err))
	} else {
		for i := range stale {
			if _, err := s.statuses.RecomputeStatus(ctx, stale[i].ID); err != nil {
				s.logFailure("reconcile activate", stale[i].ID, err)
				continue
			}
			util.ReconciledAuctionsTotal.WithLabelValues("activated").Inc()
		}
	}

	expired, err := s.store.ListAuctionsPastEnd(ctx, now)
	if err != nil {
		s.logger.Error("Reconcile: failed to list expired auctions", zap.Error(err))
		return
	}
	for i := range expired {
		if _, err := s.finalizer.Finalize(ctx, expired[i].ID); err != nil {
			s.logFailure("reconcile finalize", expired[i].ID, err)
			continue
		}
		util.ReconciledAuctionsTotal.WithLabelValues("finalized").Inc()
	}
	if len(stale) > 0 || len(expired) > 0 {
		s.logger.Info("Reconciliation sweep repaired auctions",
			zap.Int("activated", len(stale)),
			zap.Int("finalized", len(expired)))
	}
}
