package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Type string `json:"type"`
}

func drain(t *testing.T, ch <-chan []byte) []note {
	t.Helper()
	var out []note
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return out
			}
			var n note
			require.NoError(t, json.Unmarshal(payload, &n))
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestRegisterAndTouch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := New(clock)

	s := r.Register(7, map[string]string{"room": "r1"}, make(chan []byte, 1))
	assert.Equal(t, 7, s.ParticipantID)
	assert.Equal(t, "r1", s.Tags["room"])
	assert.Equal(t, clock.Now(), s.LastActivity)
	assert.Equal(t, 1, r.Len())

	clock.Advance(time.Minute)
	r.Touch(s.ID)
	assert.Equal(t, clock.Now(), s.LastActivity)

	// Touching an unknown session is a no-op, not a panic.
	r.Touch(uuid.New())
}

func TestSendIsBestEffort(t *testing.T) {
	r := New(clockwork.NewFakeClock())

	full := r.Register(1, nil, make(chan []byte)) // zero capacity, always "slow"
	r.Send(full, note{Type: "x"})                 // must not block

	okOut := make(chan []byte, 4)
	ok := r.Register(2, nil, okOut)
	r.Send(ok, note{Type: "y"})
	got := drain(t, okOut)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].Type)
}

func TestBroadcastExcludesAndSkipsClosed(t *testing.T) {
	r := New(clockwork.NewFakeClock())

	aOut := make(chan []byte, 4)
	bOut := make(chan []byte, 4)
	cOut := make(chan []byte, 4)
	a := r.Register(1, nil, aOut)
	r.Register(2, nil, bOut)
	c := r.Register(3, nil, cOut)
	r.Remove(c.ID)

	r.Broadcast(note{Type: "hello"}, a.ID)

	assert.Empty(t, drain(t, aOut))
	assert.Len(t, drain(t, bOut), 1)
	assert.Empty(t, drain(t, cOut))
}

func TestBroadcastIfFiltersByPredicate(t *testing.T) {
	r := New(clockwork.NewFakeClock())

	aOut := make(chan []byte, 4)
	bOut := make(chan []byte, 4)
	r.Register(1, nil, aOut)
	r.Register(2, nil, bOut)

	r.BroadcastIf(func(s *Session) bool { return s.ParticipantID == 2 }, note{Type: "only-two"}, uuid.Nil)

	assert.Empty(t, drain(t, aOut))
	assert.Len(t, drain(t, bOut), 1)
}

func TestRemoveClosesOutboxOnce(t *testing.T) {
	r := New(clockwork.NewFakeClock())
	out := make(chan []byte, 1)
	s := r.Register(1, nil, out)

	r.Remove(s.ID)
	r.Remove(s.ID) // second remove must not double-close

	_, open := <-out
	assert.False(t, open)
	assert.Equal(t, 0, r.Len())

	// Sending to a removed session is swallowed.
	r.Send(s, note{Type: "late"})
}

func TestCloseAll(t *testing.T) {
	r := New(clockwork.NewFakeClock())
	aOut := make(chan []byte, 1)
	bOut := make(chan []byte, 1)
	r.Register(1, nil, aOut)
	r.Register(2, nil, bOut)

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
	_, openA := <-aOut
	_, openB := <-bOut
	assert.False(t, openA)
	assert.False(t, openB)
}
