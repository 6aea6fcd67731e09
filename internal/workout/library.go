package workout

import (
	"reflect"
	"sync"

	"github.com/artishokq/SmartSwim-sub001/internal/events"
)

// Library is the receiving side's copy of the workout list. Each update is a
// full snapshot that replaces the previous one, so applying the same snapshot
// twice leaves the library unchanged.
type Library struct {
	mu       sync.RWMutex
	workouts []Workout
	byID     map[string]int
	changed  *events.ChannelEvent[[]Workout]
}

func NewLibrary() *Library {
	return &Library{
		byID:    make(map[string]int),
		changed: events.NewChannelEvent[[]Workout](true),
	}
}

// Replace swaps in snapshot and reports whether the content differs from what
// was held. Later entries win when the snapshot repeats an ID.
func (l *Library) Replace(snapshot []Workout) bool {
	deduped := make([]Workout, 0, len(snapshot))
	index := make(map[string]int, len(snapshot))
	for _, w := range snapshot {
		if i, ok := index[w.ID]; ok {
			deduped[i] = w
			continue
		}
		index[w.ID] = len(deduped)
		deduped = append(deduped, w)
	}

	l.mu.Lock()
	if (len(l.workouts) == 0 && len(deduped) == 0) || reflect.DeepEqual(l.workouts, deduped) {
		l.mu.Unlock()
		return false
	}
	l.workouts = deduped
	l.byID = index
	out := l.copyLocked()
	l.mu.Unlock()

	l.changed.Notify(out)
	return true
}

// All returns a copy of the current list.
func (l *Library) All() []Workout {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyLocked()
}

// Get looks a workout up by ID.
func (l *Library) Get(id string) (Workout, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Workout{}, false
	}
	return l.workouts[i], true
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.workouts)
}

// ListenToChanges delivers the full list after every effective Replace.
func (l *Library) ListenToChanges(ch chan<- []Workout) func() {
	return l.changed.Listen(ch)
}

func (l *Library) copyLocked() []Workout {
	out := make([]Workout, len(l.workouts))
	copy(out, l.workouts)
	return out
}
