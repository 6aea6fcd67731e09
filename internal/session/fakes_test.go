package session

import (
	"context"
	"errors"
	"sync"

	"github.com/artishokq/SmartSwim-sub001/internal/store"
)

type memoryGateway struct {
	mu       sync.Mutex
	sessions map[string]store.CompletedWorkoutSession
	err      error
	release  chan struct{}
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{sessions: make(map[string]store.CompletedWorkoutSession)}
}

func (g *memoryGateway) CreateWorkoutSession(ctx context.Context, s store.CompletedWorkoutSession) (string, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.sessions[s.ID] = s
	return s.ID, nil
}

func (g *memoryGateway) FetchSession(_ context.Context, id string) (*store.CompletedWorkoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (g *memoryGateway) FetchAllSessions(context.Context) ([]store.CompletedWorkoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]store.CompletedWorkoutSession, 0, len(g.sessions))
	for _, s := range g.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (g *memoryGateway) DeleteSession(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(g.sessions, id)
	return nil
}

func (g *memoryGateway) StatsAcrossSessions(context.Context) (store.Stats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var st store.Stats
	for _, s := range g.sessions {
		st.Count++
		st.TotalTime += s.TotalTime
		st.TotalCalories += s.TotalCalories
	}
	return st, nil
}

func (g *memoryGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

var _ store.Gateway = (*memoryGateway)(nil)

var errDiskFull = errors.New("disk full")

type recordingEmitter struct {
	mu        sync.Mutex
	statuses  []string
	heartRate []float64
	strokes   []int
	forwarded []store.CompletedWorkoutSession
}

func (e *recordingEmitter) SendWatchStatus(status string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, status)
	return nil
}

func (e *recordingEmitter) SendHeartRate(bpm float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heartRate = append(e.heartRate, bpm)
	return nil
}

func (e *recordingEmitter) SendStrokeCount(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strokes = append(e.strokes, n)
	return nil
}

func (e *recordingEmitter) ForwardSession(s store.CompletedWorkoutSession) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forwarded = append(e.forwarded, s)
	return nil
}

func (e *recordingEmitter) snapshot() (statuses []string, hr []float64, strokes []int, forwarded int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.statuses...), append([]float64(nil), e.heartRate...), append([]int(nil), e.strokes...), len(e.forwarded)
}

var _ Emitter = (*recordingEmitter)(nil)
