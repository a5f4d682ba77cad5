package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/amarcoder01/typemaster-realtime/internal/store"
)

// Scheduler is the single "wake me at time T" primitive of one actor
// instance. Arming overwrites any outstanding wake; the deadline is persisted
// so a restarted actor can re-arm from last-known state. Fires carry a
// generation number so the owning actor can drop fires that were scheduled
// before the most recent Arm or Disarm.
//
// The scheduler is owned by its actor goroutine; only notify crosses
// goroutines, and it must deliver into the actor's inbox rather than touch
// actor state directly.
type Scheduler struct {
	key    string
	store  store.Store
	clock  clockwork.Clock
	log    *zap.Logger
	notify func(gen uint64)

	gen   uint64
	timer clockwork.Timer
}

func New(key string, st store.Store, clock clockwork.Clock, log *zap.Logger, notify func(gen uint64)) *Scheduler {
	return &Scheduler{
		key:    key,
		store:  st,
		clock:  clock,
		log:    log,
		notify: notify,
	}
}

// Gen returns the current generation. A fire whose generation differs is
// stale and must be ignored.
func (s *Scheduler) Gen() uint64 { return s.gen }

// Arm persists atMillis and schedules a fire at-or-after it. A deadline in
// the past fires immediately (asynchronously, through the actor inbox).
func (s *Scheduler) Arm(ctx context.Context, atMillis int64) {
	if err := s.store.SaveWake(ctx, s.key, atMillis); err != nil {
		s.log.Warn("failed to persist wake", zap.String("key", s.key), zap.Error(err))
	}
	s.arm(atMillis)
}

// Restore re-arms from the persisted deadline, if any. Called once when an
// actor is rebuilt after a restart; a deadline already in the past fires
// immediately.
func (s *Scheduler) Restore(ctx context.Context) {
	at, ok, err := s.store.LoadWake(ctx, s.key)
	if err != nil {
		s.log.Warn("failed to load wake", zap.String("key", s.key), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	s.arm(at)
}

// Disarm cancels any outstanding wake and clears the persisted deadline.
func (s *Scheduler) Disarm(ctx context.Context) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if err := s.store.ClearWake(ctx, s.key); err != nil {
		s.log.Warn("failed to clear wake", zap.String("key", s.key), zap.Error(err))
	}
}

// Stop cancels the timer without touching persisted state. Used on actor
// shutdown so a restart can still recover the wake.
func (s *Scheduler) Stop() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) arm(atMillis int64) {
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	delay := time.Duration(atMillis-s.clock.Now().UnixMilli()) * time.Millisecond
	if delay <= 0 {
		s.timer = nil
		go s.notify(gen)
		return
	}
	s.timer = s.clock.AfterFunc(delay, func() { s.notify(gen) })
}
