package registry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Session is one live socket. The outbox is drained by the socket's writer
// goroutine; the registry only ever does non-blocking sends into it.
type Session struct {
	ID            uuid.UUID
	ParticipantID int
	Tags          map[string]string
	LastActivity  time.Time

	outbox chan []byte
	closed bool
}

// Outbox exposes the channel the websocket writer ranges over.
func (s *Session) Outbox() <-chan []byte { return s.outbox }

// Registry tracks the sessions of a single actor instance. It is owned
// exclusively by that actor's goroutine and is not safe for concurrent use.
type Registry struct {
	sessions map[uuid.UUID]*Session
	clock    clockwork.Clock
}

func New(clock clockwork.Clock) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		clock:    clock,
	}
}

// Register creates a session around the given outbox and returns it.
func (r *Registry) Register(participantID int, tags map[string]string, outbox chan []byte) *Session {
	if tags == nil {
		tags = map[string]string{}
	}
	s := &Session{
		ID:            uuid.New(),
		ParticipantID: participantID,
		Tags:          tags,
		LastActivity:  r.clock.Now(),
		outbox:        outbox,
	}
	r.sessions[s.ID] = s
	return s
}

func (r *Registry) Get(id uuid.UUID) *Session {
	return r.sessions[id]
}

func (r *Registry) Len() int { return len(r.sessions) }

// Touch refreshes a session's activity timestamp.
func (r *Registry) Touch(id uuid.UUID) {
	if s := r.sessions[id]; s != nil {
		s.LastActivity = r.clock.Now()
	}
}

// Remove drops a session and closes its outbox so the writer goroutine exits.
func (r *Registry) Remove(id uuid.UUID) {
	s := r.sessions[id]
	if s == nil {
		return
	}
	delete(r.sessions, id)
	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
}

// Send marshals v and delivers it to one session, best effort. A full or
// closed outbox drops the message; sends never block the actor.
func (r *Registry) Send(s *Session, v any) {
	if s == nil || s.closed {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.outbox <- payload:
	default:
		// Slow client; this update is lost, the next one may land.
	}
}

// Broadcast sends v to every session except exclude (zero UUID excludes none).
func (r *Registry) Broadcast(v any, exclude uuid.UUID) {
	r.BroadcastIf(func(*Session) bool { return true }, v, exclude)
}

// BroadcastIf sends v to every session matching pred, skipping exclude. Each
// send is independent; one failure never aborts the loop.
func (r *Registry) BroadcastIf(pred func(*Session) bool, v any, exclude uuid.UUID) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	for id, s := range r.sessions {
		if id == exclude || s.closed || !pred(s) {
			continue
		}
		select {
		case s.outbox <- payload:
		default:
		}
	}
}

// Each iterates all sessions.
func (r *Registry) Each(fn func(*Session)) {
	for _, s := range r.sessions {
		fn(s)
	}
}

// CloseAll removes every session, closing each outbox.
func (r *Registry) CloseAll() {
	for id := range r.sessions {
		r.Remove(id)
	}
}
