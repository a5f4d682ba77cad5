package race

import (
	"errors"
	"sort"
)

var ErrWrongStatus = errors.New("operation not valid in current race status")
var ErrUnknownParticipant = errors.New("unknown participant")

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusRacing    Status = "racing"
	StatusFinished  Status = "finished"
)

// Participant is one player's record. It outlives the player's socket so a
// reconnecting client re-attaches to it by participant id.
type Participant struct {
	ID          int     `json:"participantId"`
	Username    string  `json:"username"`
	AvatarColor string  `json:"avatarColor"`
	Progress    float64 `json:"progress"`
	WPM         float64 `json:"wpm"`
	Accuracy    float64 `json:"accuracy"`
	IsReady     bool    `json:"isReady"`
	IsFinished  bool    `json:"isFinished"`
	FinishTime  *int64  `json:"finishTime"`
	Position    *int    `json:"position"`
}

// State is the full persisted state of one race. Status only ever moves
// forward: waiting -> countdown -> racing -> finished.
type State struct {
	RaceID            string               `json:"raceId"`
	Status            Status               `json:"status"`
	Text              string               `json:"text"`
	Duration          int                  `json:"duration"`
	StartTime         *int64               `json:"startTime"`
	HostParticipantID *int                 `json:"hostParticipantId"`
	Participants      map[int]*Participant `json:"participants"`
}

func NewState(raceID string, defaultDuration int) *State {
	return &State{
		RaceID:       raceID,
		Status:       StatusWaiting,
		Duration:     defaultDuration,
		Participants: make(map[int]*Participant),
	}
}

// AddParticipant creates the record on first join; a known id re-attaches to
// the existing record. The first joiner becomes the host (advisory only).
func (s *State) AddParticipant(id int, username, avatarColor string) (*Participant, bool) {
	if p, ok := s.Participants[id]; ok {
		return p, false
	}
	p := &Participant{ID: id, Username: username, AvatarColor: avatarColor}
	s.Participants[id] = p
	if s.HostParticipantID == nil {
		host := id
		s.HostParticipantID = &host
	}
	return p, true
}

// MarkReady sets a participant ready. Readiness is monotone; there is no
// unready. Returns true when the flag actually flipped.
func (s *State) MarkReady(id int) (bool, error) {
	if s.Status != StatusWaiting {
		return false, ErrWrongStatus
	}
	p, ok := s.Participants[id]
	if !ok {
		return false, ErrUnknownParticipant
	}
	if p.IsReady {
		return false, nil
	}
	p.IsReady = true
	return true, nil
}

// AllReady reports whether the race can leave waiting: at least two
// participants, all of them ready.
func (s *State) AllReady() bool {
	if len(s.Participants) < 2 {
		return false
	}
	for _, p := range s.Participants {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// BeginCountdown transitions waiting -> countdown.
func (s *State) BeginCountdown() error {
	if s.Status != StatusWaiting {
		return ErrWrongStatus
	}
	s.Status = StatusCountdown
	return nil
}

// BeginRacing transitions countdown -> racing and stamps StartTime exactly
// once.
func (s *State) BeginRacing(nowMillis int64) error {
	if s.Status != StatusCountdown {
		return ErrWrongStatus
	}
	s.Status = StatusRacing
	start := nowMillis
	s.StartTime = &start
	return nil
}

// ApplyProgress overwrites a participant's live stats. Valid only while
// racing; finished participants keep their final numbers.
func (s *State) ApplyProgress(id int, progress, wpm, accuracy float64) (*Participant, error) {
	if s.Status != StatusRacing {
		return nil, ErrWrongStatus
	}
	p, ok := s.Participants[id]
	if !ok {
		return nil, ErrUnknownParticipant
	}
	if p.IsFinished {
		return nil, nil
	}
	p.Progress = clamp(progress, 0, 100)
	p.WPM = wpm
	p.Accuracy = accuracy
	return p, nil
}

// Finish marks a participant finished and assigns the arrival-order position:
// one more than the number already finished. Idempotent; a second finish from
// the same participant returns nil without touching the assigned position.
func (s *State) Finish(id int, wpm, accuracy float64, nowMillis int64) (*Participant, error) {
	if s.Status != StatusRacing {
		return nil, ErrWrongStatus
	}
	p, ok := s.Participants[id]
	if !ok {
		return nil, ErrUnknownParticipant
	}
	if p.IsFinished {
		return nil, nil
	}
	position := s.finishedCount() + 1
	ts := nowMillis
	p.IsFinished = true
	p.FinishTime = &ts
	p.Position = &position
	p.Progress = 100
	p.WPM = wpm
	p.Accuracy = accuracy
	return p, nil
}

// AllFinished reports whether every participant has finished.
func (s *State) AllFinished() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.IsFinished {
			return false
		}
	}
	return true
}

// FinishRace transitions racing -> finished.
func (s *State) FinishRace() error {
	if s.Status != StatusRacing {
		return ErrWrongStatus
	}
	s.Status = StatusFinished
	return nil
}

func (s *State) finishedCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.IsFinished {
			n++
		}
	}
	return n
}

// Standing is one row of the final results payload. Position here is the
// final-sort rank, which can differ from the arrival-order position stored on
// the participant for anyone who never finished.
type Standing struct {
	ParticipantID int     `json:"participantId"`
	Username      string  `json:"username"`
	AvatarColor   string  `json:"avatarColor"`
	Progress      float64 `json:"progress"`
	WPM           float64 `json:"wpm"`
	Accuracy      float64 `json:"accuracy"`
	IsFinished    bool    `json:"isFinished"`
	FinishTime    *int64  `json:"finishTime"`
	Position      int     `json:"position"`
}

// FinalStandings sorts finished participants before unfinished; finished by
// finish time ascending, unfinished by progress then wpm descending. Ranks
// are re-stamped 1..N on the copies; stored participant positions are never
// rewritten.
func (s *State) FinalStandings() []Standing {
	standings := make([]Standing, 0, len(s.Participants))
	for _, p := range s.Participants {
		standings = append(standings, Standing{
			ParticipantID: p.ID,
			Username:      p.Username,
			AvatarColor:   p.AvatarColor,
			Progress:      p.Progress,
			WPM:           p.WPM,
			Accuracy:      p.Accuracy,
			IsFinished:    p.IsFinished,
			FinishTime:    p.FinishTime,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.IsFinished != b.IsFinished {
			return a.IsFinished
		}
		if a.IsFinished {
			return *a.FinishTime < *b.FinishTime
		}
		if a.Progress != b.Progress {
			return a.Progress > b.Progress
		}
		return a.WPM > b.WPM
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
