package companionapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artishokq/SmartSwim-sub001/internal/link"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
)

type sessionSummary struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	WorkoutID     string    `json:"workoutId"`
	WorkoutName   string    `json:"workoutName"`
	TotalTime     float64   `json:"totalTime"`
	TotalCalories float64   `json:"totalCalories"`
	PoolSize      float64   `json:"poolSize"`
	Exercises     int       `json:"exercises"`
	Meters        int       `json:"meters"`
}

type statsResponse struct {
	Count         int     `json:"count"`
	TotalTime     float64 `json:"totalTime"`
	TotalCalories float64 `json:"totalCalories"`
}

type watchResponse struct {
	Reachable        bool      `json:"reachable"`
	Status           string    `json:"status"`
	HeartRate        float64   `json:"heartRate"`
	StrokeCount      int       `json:"strokeCount"`
	AverageHeartRate float64   `json:"averageHeartRate"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero"`
}

type pendingResponse struct {
	Key         string    `json:"key"`
	Kind        string    `json:"kind"`
	AwaitAck    bool      `json:"awaitAck"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	NextFireAt  time.Time `json:"nextFireAt,omitzero"`
}

type parametersBody struct {
	PoolSize      float64 `json:"poolSize"`
	SwimmingStyle int     `json:"swimmingStyle"`
	TotalMeters   int     `json:"totalMeters"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.FetchAllSessions(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("listing sessions")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		sum := sessionSummary{
			ID:            session.ID,
			Date:          session.Date,
			WorkoutID:     session.WorkoutID,
			WorkoutName:   session.WorkoutName,
			TotalTime:     session.TotalTime.Seconds(),
			TotalCalories: session.TotalCalories,
			PoolSize:      session.PoolSize,
			Exercises:     len(session.Exercises),
		}
		for _, ex := range session.Exercises {
			sum.Meters += ex.Meters * ex.Repetitions
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetSession answers with the same document the watch sends as
// sessionData.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.FetchSession(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("fetching session")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, link.SessionMessage(*session).Fields["sessionData"])
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.DeleteSession(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("deleting session")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sessions.StatsAcrossSessions(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("computing stats")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Count:         stats.Count,
		TotalTime:     stats.TotalTime.Seconds(),
		TotalCalories: stats.TotalCalories,
	})
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, link.WorkoutsMessage(s.library.All()).Fields["workoutsData"])
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ws := s.companion.Watch()
	writeJSON(w, http.StatusOK, watchResponse{
		Reachable:        ws.Reachable,
		Status:           ws.Status,
		HeartRate:        ws.HeartRate,
		StrokeCount:      ws.StrokeCount,
		AverageHeartRate: ws.AverageHeartRate,
		UpdatedAt:        ws.UpdatedAt,
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.companion.RetryStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	out := make([]pendingResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingResponse{
			Key:         p.Key,
			Kind:        string(p.Message.Kind),
			AwaitAck:    p.AwaitAck,
			Attempts:    p.Attempts,
			MaxAttempts: p.MaxAttempts,
			NextFireAt:  p.NextFireAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd := link.Command(chi.URLParam(r, "command"))
	if cmd != link.CommandStart && cmd != link.CommandStop {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown command " + string(cmd)})
		return
	}
	if err := s.companion.SendCommand(cmd); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"command": string(cmd)})
}

func (s *Server) handlePushParameters(w http.ResponseWriter, r *http.Request) {
	var body parametersBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	p := link.Parameters{PoolSize: body.PoolSize, SwimmingStyle: body.SwimmingStyle, TotalMeters: body.TotalMeters}
	if err := s.companion.PushParameters(p); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, body)
}

// handlePullParameters reports known=false when the watch did not answer; the
// values are then unknown rather than zero.
func (s *Server) handlePullParameters(w http.ResponseWriter, r *http.Request) {
	p, err := s.companion.PullParameters(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"known": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"known":         true,
		"poolSize":      p.PoolSize,
		"swimmingStyle": p.SwimmingStyle,
		"totalMeters":   p.TotalMeters,
	})
}

func (s *Server) handlePullPoolLength(w http.ResponseWriter, r *http.Request) {
	poolLength, err := s.companion.PullPoolLength(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"known": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"known": true, "poolLength": poolLength})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, link.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, link.ErrUnreachable), errors.Is(err, link.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, link.ErrReplyTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
