package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrPromotionRunning is returned when a promotion pass is already in progress
var ErrPromotionRunning = errors.New("a promotion pass is already running")

// Scheduler periodically promotes scheduled rooms whose start time has passed.
// Promotions go through the manager's per-room path, so a pass racing a
// manual cancel or a second pass never promotes twice.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	log      *slog.Logger
	running  atomic.Bool
}

// NewScheduler creates a scheduler that runs every interval
func NewScheduler(manager *Manager, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		manager:  manager,
		interval: interval,
		log:      log,
	}
}

// Run promotes due rooms once at startup and then on every tick until ctx is done
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("Room scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("Room scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	promoted, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrPromotionRunning):
		s.log.Debug("Skipping promotion pass, previous pass still running")
	case err != nil:
		s.log.Error("Promotion pass failed", "error", err, "promoted", len(promoted))
	case len(promoted) > 0:
		s.log.Info("Promoted scheduled rooms", "count", len(promoted))
	}
}

// RunOnce performs a single promotion pass and returns the ids of the rooms
// it activated. Overlapping calls fail fast with ErrPromotionRunning.
func (s *Scheduler) RunOnce(ctx context.Context) ([]string, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrPromotionRunning
	}
	defer s.running.Store(false)

	due, err := s.manager.dueRooms(ctx)
	if err != nil {
		return nil, err
	}

	promoted := make([]string, 0, len(due))
	var errs []error
	for _, room := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.manager.promote(ctx, room.ID)
		if err != nil {
			s.log.Warn("Failed to promote room", "room_id", room.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			promoted = append(promoted, room.ID)
		}
	}
	return promoted, errors.Join(errs...)
}
