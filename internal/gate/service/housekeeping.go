package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/store"
)

const defaultAuditRetention = 90 * 24 * time.Hour

// HousekeepingService periodically removes expired sessions, flips expired
// keys and prunes old audit rows to prevent unbounded growth.
type HousekeepingService struct {
	Store          store.Store
	Logger         *slog.Logger
	Interval       time.Duration
	AuditRetention time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:          store,
		Logger:         logger,
		Interval:       interval,
		AuditRetention: defaultAuditRetention,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Non-blocking; call Stop() to gracefully shut the worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker. Blocks until any
// in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual maintenance. Each step is independent;
// failures in one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now()
	s.Logger.Info("starting housekeeping cleanup")

	if n, err := s.Store.Sessions().DeleteExpiredSessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	} else if n > 0 {
		s.Logger.Debug("deleted expired sessions", "count", n)
	}

	if n, err := s.Store.Keys().ExpireActiveKeys(ctx, now); err != nil {
		s.Logger.Error("failed to expire stale keys", "error", err)
	} else if n > 0 {
		s.Logger.Debug("expired stale keys", "count", n)
	}

	retention := s.AuditRetention
	if retention <= 0 {
		retention = defaultAuditRetention
	}
	if n, err := s.Store.AuditLogs().DeleteAuditEventsBefore(ctx, now.Add(-retention)); err != nil {
		s.Logger.Error("failed to prune audit events", "error", err)
	} else if n > 0 {
		s.Logger.Debug("pruned audit events", "count", n)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
