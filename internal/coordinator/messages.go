package coordinator

import (
	"github.com/google/uuid"

	"github.com/amarcoder01/typemaster-realtime/internal/race"
)

type Msg interface{ isCoordinatorMsg() }

// Join attaches a socket to the race, creating the race and the participant
// record as needed. The session id is sent on Reply.
type Join struct {
	ParticipantID int
	Username      string
	AvatarColor   string
	Outbox        chan []byte
	Reply         chan uuid.UUID
}

func (Join) isCoordinatorMsg() {}

// FromClient carries one raw inbound frame from a session's socket.
type FromClient struct {
	SessionID uuid.UUID
	Data      []byte
}

func (FromClient) isCoordinatorMsg() {}

// Leave removes a session after its socket closed.
type Leave struct{ SessionID uuid.UUID }

func (Leave) isCoordinatorMsg() {}

// TimerFired is delivered by the scheduler. Gen lets the coordinator drop
// fires armed before the latest Arm/Disarm.
type TimerFired struct{ Gen uint64 }

func (TimerFired) isCoordinatorMsg() {}

// Start seeds the race text and duration and forces the countdown. Reply
// carries ErrWrongStatus when the race already left waiting.
type Start struct {
	Text     string
	Duration int
	Reply    chan error
}

func (Start) isCoordinatorMsg() {}

// GetState replies with a copy of the current race state plus the live
// session count, without data races.
type GetState struct{ Reply chan View }

func (GetState) isCoordinatorMsg() {}

type View struct {
	State       race.State
	NumSessions int
}

type Shutdown struct{}

func (Shutdown) isCoordinatorMsg() {}
