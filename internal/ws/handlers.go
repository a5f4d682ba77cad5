package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amarcoder01/typemaster-realtime/internal/coordinator"
	"github.com/amarcoder01/typemaster-realtime/internal/hub"
	"github.com/amarcoder01/typemaster-realtime/internal/leaderboard"
	"github.com/amarcoder01/typemaster-realtime/internal/metrics"
)

const writeTimeout = 3 * time.Second

// RaceHandler upgrades a socket into a race. raceId, participantId and
// username are required query params and are validated before any session or
// race state exists.
func RaceHandler(h *hub.Hub[*coordinator.Coordinator], log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raceID := r.URL.Query().Get("raceId")
		username := r.URL.Query().Get("username")
		avatarColor := r.URL.Query().Get("avatarColor")
		participantID, err := strconv.Atoi(r.URL.Query().Get("participantId"))
		if raceID == "" || username == "" || err != nil {
			http.Error(w, "raceId, participantId and username are required", http.StatusBadRequest)
			return
		}

		reply := make(chan *coordinator.Coordinator, 1)
		h.Inbox() <- hub.Ensure[*coordinator.Coordinator]{Key: raceID, Reply: reply}
		coord := <-reply

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		metrics.ActiveConnections.WithLabelValues("race").Inc()
		defer metrics.ActiveConnections.WithLabelValues("race").Dec()

		outbox := make(chan []byte, 32)
		joinReply := make(chan uuid.UUID, 1)
		select {
		case coord.Inbox() <- coordinator.Join{
			ParticipantID: participantID,
			Username:      username,
			AvatarColor:   avatarColor,
			Outbox:        outbox,
			Reply:         joinReply,
		}:
		case <-coord.Done():
			return
		}
		var sessionID uuid.UUID
		select {
		case sessionID = <-joinReply:
		case <-coord.Done():
			return
		}
		defer func() {
			select {
			case coord.Inbox() <- coordinator.Leave{SessionID: sessionID}:
			case <-coord.Done():
			}
		}()

		go writePump(r.Context(), conn, outbox)
		readPump(r.Context(), conn, func(data []byte) bool {
			select {
			case coord.Inbox() <- coordinator.FromClient{SessionID: sessionID, Data: data}:
				return true
			case <-coord.Done():
				return false
			}
		})
	}
}

// LeaderboardHandler upgrades a socket into a leaderboard shard (query param
// "shard", default "global").
func LeaderboardHandler(h *hub.Hub[*leaderboard.Broadcaster], log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shard := r.URL.Query().Get("shard")
		if shard == "" {
			shard = "global"
		}

		reply := make(chan *leaderboard.Broadcaster, 1)
		h.Inbox() <- hub.Ensure[*leaderboard.Broadcaster]{Key: shard, Reply: reply}
		bc := <-reply

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		metrics.ActiveConnections.WithLabelValues("leaderboard").Inc()
		defer metrics.ActiveConnections.WithLabelValues("leaderboard").Dec()

		outbox := make(chan []byte, 32)
		joinReply := make(chan uuid.UUID, 1)
		select {
		case bc.Inbox() <- leaderboard.Join{Outbox: outbox, Reply: joinReply}:
		case <-bc.Done():
			return
		}
		var sessionID uuid.UUID
		select {
		case sessionID = <-joinReply:
		case <-bc.Done():
			return
		}
		defer func() {
			select {
			case bc.Inbox() <- leaderboard.Leave{SessionID: sessionID}:
			case <-bc.Done():
			}
		}()

		go writePump(r.Context(), conn, outbox)
		readPump(r.Context(), conn, func(data []byte) bool {
			select {
			case bc.Inbox() <- leaderboard.FromClient{SessionID: sessionID, Data: data}:
				return true
			case <-bc.Done():
				return false
			}
		})
	}
}

// writePump drains the session outbox onto the socket. It exits when the
// registry closes the outbox or the request context ends.
func writePump(parent context.Context, conn *websocket.Conn, outbox <-chan []byte) {
	for payload := range outbox {
		ctx, cancel := context.WithTimeout(parent, writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			// Socket is gone; keep draining so the actor never blocks.
			continue
		}
	}
}

// readPump forwards inbound frames until the socket closes. deliver returns
// false when the actor is gone.
func readPump(ctx context.Context, conn *websocket.Conn, deliver func([]byte) bool) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Clean closes and hard failures end the pump the same way; the
			// deferred Leave handles the rest.
			return
		}
		if !deliver(data) {
			return
		}
	}
}
