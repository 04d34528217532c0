// internal/handlers/server.go

// Package handlers is the HTTP surface of the lobby service: REST endpoints
// for the request/response operations and one WebSocket endpoint per room for
// the live ones. Handlers validate transport concerns only; every domain rule
// lives in the lobby Coordinator.
package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/middleware"
	"github.com/avagner/summit/internal/realtime"
)

// Server holds the collaborators the handlers need. Construct one per
// process and mount Routes on the listener.
type Server struct {
	coord *lobby.Coordinator
	bus   *realtime.Bus
	log   *logrus.Logger
}

// NewServer wires the HTTP surface over the coordinator.
func NewServer(coord *lobby.Coordinator, bus *realtime.Bus, log *logrus.Logger) *Server {
	return &Server{coord: coord, bus: bus, log: log}
}

// Routes builds the router: CORS and logging around the REST API plus the
// room WebSocket endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: func() []string {
			// allow only origins specified in dotenv file if we are in production mode
			if os.Getenv("SUMMIT_ENV") == "production" {
				return strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")
			}
			return []string{"https://*", "http://*"}
		}(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.LogMiddleware(s.log))

	r.Route("/api", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.Post("/", s.handleCreateGame)
			r.Get("/", s.handleListGames)
			r.Get("/{gameID}", s.handleGameDetails)
			r.Post("/{gameID}/join", s.handleJoinGame)
			r.Post("/{gameID}/kick", s.handleKickPlayer)
			r.Patch("/{gameID}/settings", s.handleUpdateSettings)
			r.Get("/{gameID}/messages", s.handleListMessages)
		})
		r.Get("/rooms/ws/{gameID}", s.handleRoomWS)
	})
	return r
}
