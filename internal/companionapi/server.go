// Package companionapi is the companion's local HTTP surface: session
// history, the workout library, watch state, remote control and the link
// endpoint the watch dials.
package companionapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/link"
	"github.com/artishokq/SmartSwim-sub001/internal/peer"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

// Companion is the part of peer.Companion the API drives.
type Companion interface {
	Watch() peer.WatchState
	PushParameters(p link.Parameters) error
	PullParameters(ctx context.Context) (link.Parameters, error)
	PullPoolLength(ctx context.Context) (float64, error)
	SendCommand(cmd link.Command) error
	RetryStatus(ctx context.Context) ([]link.RetryState, error)
}

var _ Companion = (*peer.Companion)(nil)

// Mounts are optional handlers served next to the API.
type Mounts struct {
	Link    http.Handler
	Metrics http.Handler
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions  store.Gateway
	library   *workout.Library
	companion Companion
	logger    zerolog.Logger
	router    chi.Router
}

func New(sessions store.Gateway, library *workout.Library, companion Companion, logger zerolog.Logger, mounts Mounts) *Server {
	if sessions == nil {
		panic("Server: sessions cannot be nil")
	}
	if library == nil {
		panic("Server: library cannot be nil")
	}
	if companion == nil {
		panic("Server: companion cannot be nil")
	}
	s := &Server{
		sessions:  sessions,
		library:   library,
		companion: companion,
		logger:    logger.With().Str("component", "CompanionAPI").Logger(),
		router:    chi.NewRouter(),
	}
	s.routes(mounts)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(mounts Mounts) {
	s.router.Use(middleware.Recoverer)

	// The link is a long-lived websocket, kept out of request logging.
	if mounts.Link != nil {
		s.router.Handle(link.LinkPath, mounts.Link)
	}
	if mounts.Metrics != nil {
		s.router.Handle("/metrics", mounts.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(RequestLogging(s.logger))

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/stats", s.handleStats)

		r.Get("/workouts", s.handleListWorkouts)

		r.Get("/watch", s.handleWatch)
		r.Get("/link/pending", s.handlePending)
		r.Post("/commands/{command}", s.handleCommand)
		r.Get("/parameters", s.handlePullParameters)
		r.Post("/parameters", s.handlePushParameters)
		r.Get("/pool-length", s.handlePullPoolLength)
	})
}
