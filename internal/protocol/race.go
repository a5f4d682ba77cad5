package protocol

import "github.com/amarcoder01/typemaster-realtime/internal/race"

// Client -> server messages on the race socket. One struct covers every type;
// unused fields stay zero.
//
//	ready:    {}
//	progress: progress, wpm, accuracy
//	finish:   wpm, accuracy
//	chat:     message (truncated to 200 chars server-side)
//	ping:     {}
type RaceClientMessage struct {
	Type     string  `json:"type"`
	Progress float64 `json:"progress,omitempty"`
	WPM      float64 `json:"wpm,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Message  string  `json:"message,omitempty"`
}

const (
	RaceMsgReady    = "ready"
	RaceMsgProgress = "progress"
	RaceMsgFinish   = "finish"
	RaceMsgChat     = "chat"
	RaceMsgPing     = "ping"
)

// Server -> client messages on the race socket.

type RaceStateMsg struct {
	Type  string      `json:"type"` // "race_state"
	State *race.State `json:"state"`
}

type PlayerJoinedMsg struct {
	Type        string            `json:"type"` // "player_joined"
	Participant *race.Participant `json:"participant"`
}

type PlayerReadyMsg struct {
	Type          string `json:"type"` // "player_ready"
	ParticipantID int    `json:"participantId"`
}

type CountdownStartMsg struct {
	Type    string `json:"type"` // "countdown_start"
	Seconds int    `json:"seconds"`
}

type RaceStartMsg struct {
	Type      string `json:"type"` // "race_start"
	StartTime int64  `json:"startTime"`
	Duration  int    `json:"duration"`
}

type ProgressUpdateMsg struct {
	Type          string  `json:"type"` // "progress_update"
	ParticipantID int     `json:"participantId"`
	Progress      float64 `json:"progress"`
	WPM           float64 `json:"wpm"`
	Accuracy      float64 `json:"accuracy"`
}

type PlayerFinishedMsg struct {
	Type          string  `json:"type"` // "player_finished"
	ParticipantID int     `json:"participantId"`
	Position      int     `json:"position"`
	WPM           float64 `json:"wpm"`
	Accuracy      float64 `json:"accuracy"`
}

type PlayerLeftMsg struct {
	Type          string `json:"type"` // "player_left"
	ParticipantID int    `json:"participantId"`
}

type RaceEndMsg struct {
	Type    string          `json:"type"` // "race_end"
	Results []race.Standing `json:"results"`
}

type ChatMsg struct {
	Type          string `json:"type"` // "chat"
	ParticipantID int    `json:"participantId"`
	Username      string `json:"username"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"`
}

type PongMsg struct {
	Type      string `json:"type"` // "pong"
	Timestamp int64  `json:"timestamp"`
}
