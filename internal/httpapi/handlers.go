package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amarcoder01/typemaster-realtime/internal/coordinator"
	"github.com/amarcoder01/typemaster-realtime/internal/hub"
	"github.com/amarcoder01/typemaster-realtime/internal/leaderboard"
	"github.com/amarcoder01/typemaster-realtime/internal/protocol"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// RaceState returns the current snapshot of a race, 404 when none exists.
func RaceState(h *hub.Hub[*coordinator.Coordinator]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raceID := chi.URLParam(r, "raceID")

		reply := make(chan *coordinator.Coordinator, 1)
		h.Inbox() <- hub.Get[*coordinator.Coordinator]{Key: raceID, Reply: reply}
		coord := <-reply
		if coord == nil {
			http.Error(w, "race not found", http.StatusNotFound)
			return
		}

		viewReply := make(chan coordinator.View, 1)
		select {
		case coord.Inbox() <- coordinator.GetState{Reply: viewReply}:
		case <-coord.Done():
			http.Error(w, "race not found", http.StatusNotFound)
			return
		}
		select {
		case view := <-viewReply:
			writeJSON(w, http.StatusOK, view.State)
		case <-coord.Done():
			http.Error(w, "race not found", http.StatusNotFound)
		}
	}
}

type startRaceRequest struct {
	Text     string `json:"text"`
	Duration int    `json:"duration"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StartRace seeds the race text/duration and forces the countdown. Used by
// the external host-only trigger. 409 when the race already left waiting.
func StartRace(h *hub.Hub[*coordinator.Coordinator]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raceID := chi.URLParam(r, "raceID")

		var req startRaceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeJSON(w, http.StatusBadRequest, statusResponse{Error: "text is required"})
			return
		}

		reply := make(chan *coordinator.Coordinator, 1)
		h.Inbox() <- hub.Ensure[*coordinator.Coordinator]{Key: raceID, Reply: reply}
		coord := <-reply

		errReply := make(chan error, 1)
		select {
		case coord.Inbox() <- coordinator.Start{Text: req.Text, Duration: req.Duration, Reply: errReply}:
		case <-coord.Done():
			writeJSON(w, http.StatusConflict, statusResponse{Error: "race is gone"})
			return
		}
		select {
		case err := <-errReply:
			if errors.Is(err, coordinator.ErrWrongStatus) {
				writeJSON(w, http.StatusConflict, statusResponse{Error: "race already started"})
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{Success: true})
		case <-coord.Done():
			writeJSON(w, http.StatusConflict, statusResponse{Error: "race is gone"})
		}
	}
}

type broadcastRequest struct {
	Mode      string           `json:"mode"`
	Language  string           `json:"language"`
	Timeframe string           `json:"timeframe"`
	Entries   []protocol.Entry `json:"entries"`
}

type broadcastResponse struct {
	Success bool `json:"success"`
	SentTo  int  `json:"sentTo"`
}

// BroadcastLeaderboard is the control-plane push from the scoring pipeline:
// cache the snapshot, fan out to subscribers, report how many were sent.
func BroadcastLeaderboard(h *hub.Hub[*leaderboard.Broadcaster]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req broadcastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{Error: "invalid body"})
			return
		}
		if req.Mode == "" || req.Language == "" || req.Timeframe == "" {
			writeJSON(w, http.StatusBadRequest, statusResponse{Error: "mode, language and timeframe are required"})
			return
		}

		bc := ensureBroadcaster(h, shardOf(r))

		sentReply := make(chan int, 1)
		scope := protocol.Scope{Mode: req.Mode, Language: req.Language, Timeframe: req.Timeframe}
		select {
		case bc.Inbox() <- leaderboard.Push{Scope: scope, Entries: req.Entries, Reply: sentReply}:
		case <-bc.Done():
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Error: "broadcaster is gone"})
			return
		}
		select {
		case sent := <-sentReply:
			writeJSON(w, http.StatusOK, broadcastResponse{Success: true, SentTo: sent})
		case <-bc.Done():
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Error: "broadcaster is gone"})
		}
	}
}

// LeaderboardStats reports connection, tier, subscription and cache counts
// for a shard. A shard that never saw traffic reports zeroes.
func LeaderboardStats(h *hub.Hub[*leaderboard.Broadcaster]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan *leaderboard.Broadcaster, 1)
		h.Inbox() <- hub.Get[*leaderboard.Broadcaster]{Key: shardOf(r), Reply: reply}
		bc := <-reply
		if bc == nil {
			writeJSON(w, http.StatusOK, leaderboard.Stats{
				ByTier: map[string]int{
					string(leaderboard.TierActive):   0,
					string(leaderboard.TierPassive):  0,
					string(leaderboard.TierObserver): 0,
				},
			})
			return
		}

		statsReply := make(chan leaderboard.Stats, 1)
		select {
		case bc.Inbox() <- leaderboard.GetStats{Reply: statsReply}:
		case <-bc.Done():
			http.Error(w, "broadcaster is gone", http.StatusServiceUnavailable)
			return
		}
		select {
		case stats := <-statsReply:
			writeJSON(w, http.StatusOK, stats)
		case <-bc.Done():
			http.Error(w, "broadcaster is gone", http.StatusServiceUnavailable)
		}
	}
}

func ensureBroadcaster(h *hub.Hub[*leaderboard.Broadcaster], shard string) *leaderboard.Broadcaster {
	reply := make(chan *leaderboard.Broadcaster, 1)
	h.Inbox() <- hub.Ensure[*leaderboard.Broadcaster]{Key: shard, Reply: reply}
	return <-reply
}

func shardOf(r *http.Request) string {
	if shard := r.URL.Query().Get("shard"); shard != "" {
		return shard
	}
	return "global"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
