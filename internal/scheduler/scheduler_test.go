package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amarcoder01/typemaster-realtime/internal/store"
)

type fired struct {
	gen uint64
}

func newScheduler(t *testing.T, st store.Store, clock clockwork.Clock) (*Scheduler, chan fired) {
	t.Helper()
	fires := make(chan fired, 16)
	s := New("race:test", st, clock, zap.NewNop(), func(gen uint64) {
		fires <- fired{gen: gen}
	})
	return s, fires
}

func recvFire(t *testing.T, fires chan fired) fired {
	t.Helper()
	select {
	case f := <-fires:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fire")
		return fired{}
	}
}

func recvNoFire(t *testing.T, fires chan fired, within time.Duration) {
	t.Helper()
	select {
	case f := <-fires:
		t.Fatalf("unexpected fire: %+v", f)
	case <-time.After(within):
	}
}

func TestArmFiresAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	s, fires := newScheduler(t, st, clock)
	ctx := context.Background()

	s.Arm(ctx, clock.Now().Add(3*time.Second).UnixMilli())

	clock.Advance(2 * time.Second)
	recvNoFire(t, fires, 100*time.Millisecond)

	clock.Advance(time.Second)
	f := recvFire(t, fires)
	assert.Equal(t, s.Gen(), f.gen)
}

func TestArmPersistsWake(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	s, _ := newScheduler(t, st, clock)
	ctx := context.Background()

	at := clock.Now().Add(time.Minute).UnixMilli()
	s.Arm(ctx, at)

	got, ok, err := st.LoadWake(ctx, "race:test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at, got)
}

func TestRearmSupersedesOldWake(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	s, fires := newScheduler(t, st, clock)
	ctx := context.Background()

	s.Arm(ctx, clock.Now().Add(2*time.Second).UnixMilli())
	first := s.Gen()
	s.Arm(ctx, clock.Now().Add(10*time.Second).UnixMilli())

	// The first deadline passes without a fire: arming overwrote it.
	clock.Advance(5 * time.Second)
	recvNoFire(t, fires, 100*time.Millisecond)

	clock.Advance(5 * time.Second)
	f := recvFire(t, fires)
	assert.NotEqual(t, first, f.gen)
	assert.Equal(t, s.Gen(), f.gen)
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, fires := newScheduler(t, store.NewMemory(), clock)

	s.Arm(context.Background(), clock.Now().Add(-time.Second).UnixMilli())
	f := recvFire(t, fires)
	assert.Equal(t, s.Gen(), f.gen)
}

func TestRestoreRearmsPersistedWake(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	ctx := context.Background()

	old, _ := newScheduler(t, st, clock)
	old.Arm(ctx, clock.Now().Add(30*time.Second).UnixMilli())
	old.Stop()

	fresh, fires := newScheduler(t, st, clock)
	fresh.Restore(ctx)

	clock.Advance(30 * time.Second)
	f := recvFire(t, fires)
	assert.Equal(t, fresh.Gen(), f.gen)
}

func TestRestoreWithNothingPersistedIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, fires := newScheduler(t, store.NewMemory(), clock)

	s.Restore(context.Background())
	clock.Advance(time.Hour)
	recvNoFire(t, fires, 100*time.Millisecond)
}

func TestDisarmClearsWakeAndCancelsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	s, fires := newScheduler(t, st, clock)
	ctx := context.Background()

	s.Arm(ctx, clock.Now().Add(time.Second).UnixMilli())
	s.Disarm(ctx)

	_, ok, err := st.LoadWake(ctx, "race:test")
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	recvNoFire(t, fires, 100*time.Millisecond)
}

func TestStaleFireDetectableByGen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, fires := newScheduler(t, store.NewMemory(), clock)
	ctx := context.Background()

	s.Arm(ctx, clock.Now().Add(time.Second).UnixMilli())
	clock.Advance(time.Second)
	f := recvFire(t, fires)

	// A consumer holding this fire after a re-arm must treat it as stale.
	s.Arm(ctx, clock.Now().Add(time.Minute).UnixMilli())
	assert.NotEqual(t, s.Gen(), f.gen)
}
