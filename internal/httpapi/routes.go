package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amarcoder01/typemaster-realtime/internal/coordinator"
	"github.com/amarcoder01/typemaster-realtime/internal/hub"
	"github.com/amarcoder01/typemaster-realtime/internal/leaderboard"
	"github.com/amarcoder01/typemaster-realtime/internal/ws"
)

func SetupRoutes(races *hub.Hub[*coordinator.Coordinator], leaderboards *hub.Hub[*leaderboard.Broadcaster], log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws/race", ws.RaceHandler(races, log))
	r.Get("/ws/leaderboard", ws.LeaderboardHandler(leaderboards, log))

	r.Route("/races/{raceID}", func(r chi.Router) {
		r.Get("/state", RaceState(races))
		r.Post("/start", StartRace(races))
	})

	r.Route("/leaderboards", func(r chi.Router) {
		r.Post("/broadcast", BroadcastLeaderboard(leaderboards))
		r.Get("/stats", LeaderboardStats(leaderboards))
	})

	return r
}
