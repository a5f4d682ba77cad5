package protocol

// Scope identifies one leaderboard: a (mode, language, timeframe) triple.
// Comparable, so it works as a map key and dedupes subscriptions exactly.
type Scope struct {
	Mode      string `json:"mode"`
	Language  string `json:"language"`
	Timeframe string `json:"timeframe"`
}

// Entry is one leaderboard row. Snapshots are replaced wholesale on every
// push; rank is assigned upstream.
type Entry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	AvatarColor string  `json:"avatarColor"`
	Score       int     `json:"score"`
	WPM         float64 `json:"wpm"`
	Accuracy    float64 `json:"accuracy"`
}

// Client -> server messages on the leaderboard socket.
type LeaderboardClientMessage struct {
	Type      string `json:"type"`
	Mode      string `json:"mode,omitempty"`
	Language  string `json:"language,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

func (m LeaderboardClientMessage) Scope() Scope {
	return Scope{Mode: m.Mode, Language: m.Language, Timeframe: m.Timeframe}
}

const (
	LeaderboardMsgSubscribe   = "subscribe"
	LeaderboardMsgUnsubscribe = "unsubscribe"
	LeaderboardMsgGet         = "get_leaderboard"
	LeaderboardMsgPing        = "ping"
)

// Server -> client messages on the leaderboard socket.

type ConnectedMsg struct {
	Type      string `json:"type"` // "connected"
	SessionID string `json:"sessionId"`
}

type SubscribedMsg struct {
	Type         string `json:"type"` // "subscribed" | "unsubscribed"
	Subscription Scope  `json:"subscription"`
}

type LeaderboardUpdateMsg struct {
	Type      string  `json:"type"` // "leaderboard_update" | "leaderboard_data"
	Mode      string  `json:"mode"`
	Language  string  `json:"language"`
	Timeframe string  `json:"timeframe"`
	Entries   []Entry `json:"entries"`
}
