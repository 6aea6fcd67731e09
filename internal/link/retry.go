package link

import (
	"errors"
	"time"
)

// RetryPolicy bounds reliable delivery.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	AckTimeout  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second, AckTimeout: 5 * time.Second}
}

// RetryState is one pending reliable delivery. A zero NextFireAt with a zero
// AckDeadline means the entry is parked until the counterpart is reachable.
type RetryState struct {
	Key         string
	Message     Message
	AwaitAck    bool
	Attempts    int
	MaxAttempts int
	NextFireAt  time.Time
	AckDeadline time.Time
	sentIDs     []string
}

func (s *RetryState) Exhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

type retryOutcome int

const (
	outcomeDelivered retryOutcome = iota
	outcomeAwaitingAck
	outcomeRetryScheduled
	outcomeExhausted
	outcomeParked
)

type retryEvent struct {
	Key      string
	Kind     Kind
	Outcome  retryOutcome
	Attempts int
	Err      error
}

// sendFunc writes one attempt and returns the frame ID used.
type sendFunc func(msg Message) (string, error)

// retryQueue holds keyed reliable deliveries. A newer message under an existing
// key replaces the pending one, so only the latest snapshot is ever retried.
// It has no goroutine or timers of its own: the owner calls pump with the time.
type retryQueue struct {
	policy  RetryPolicy
	entries map[string]*RetryState
	order   []string
}

func newRetryQueue(policy RetryPolicy) *retryQueue {
	return &retryQueue{policy: policy, entries: make(map[string]*RetryState)}
}

func (q *retryQueue) put(key string, msg Message, awaitAck bool, now time.Time) {
	if _, ok := q.entries[key]; !ok {
		q.order = append(q.order, key)
	}
	q.entries[key] = &RetryState{
		Key:         key,
		Message:     msg,
		AwaitAck:    awaitAck,
		MaxAttempts: q.policy.MaxAttempts,
		NextFireAt:  now,
	}
}

// wake makes every pending entry due immediately. An attempt still awaiting
// its ack was sent over the connection that went away, so it is refunded and
// sent again; its frame ID stays valid for a late ack.
func (q *retryQueue) wake(now time.Time) {
	for _, e := range q.entries {
		if !e.AckDeadline.IsZero() {
			e.AckDeadline = time.Time{}
			if e.Attempts > 0 {
				e.Attempts--
			}
		}
		e.NextFireAt = now
	}
}

// ack completes the entry whose attempt carried id.
func (q *retryQueue) ack(id string) (string, bool) {
	for key, e := range q.entries {
		for _, sent := range e.sentIDs {
			if sent == id {
				q.remove(key)
				return key, true
			}
		}
	}
	return "", false
}

// nextWake is the earliest time pump has work to do.
func (q *retryQueue) nextWake() (time.Time, bool) {
	var next time.Time
	for _, e := range q.entries {
		for _, t := range []time.Time{e.NextFireAt, e.AckDeadline} {
			if !t.IsZero() && (next.IsZero() || t.Before(next)) {
				next = t
			}
		}
	}
	return next, !next.IsZero()
}

func (q *retryQueue) pump(now time.Time, reachable bool, send sendFunc) []retryEvent {
	var out []retryEvent
	for _, key := range append([]string(nil), q.order...) {
		e, ok := q.entries[key]
		if !ok {
			continue
		}

		if !e.AckDeadline.IsZero() {
			if now.Before(e.AckDeadline) {
				continue
			}
			e.AckDeadline = time.Time{}
			out = append(out, q.fail(e, now, ErrReplyTimeout))
			continue
		}

		if e.NextFireAt.IsZero() || now.Before(e.NextFireAt) {
			continue
		}
		if !reachable {
			e.NextFireAt = time.Time{}
			out = append(out, retryEvent{Key: key, Kind: e.Message.Kind, Outcome: outcomeParked, Attempts: e.Attempts})
			continue
		}

		attempt := e.Message
		attempt.ID = ""
		e.Attempts++
		id, err := send(attempt)
		if errors.Is(err, ErrUnreachable) {
			e.Attempts--
			e.NextFireAt = time.Time{}
			out = append(out, retryEvent{Key: key, Kind: e.Message.Kind, Outcome: outcomeParked, Attempts: e.Attempts})
			continue
		}
		if err != nil {
			out = append(out, q.fail(e, now, err))
			continue
		}

		e.sentIDs = append(e.sentIDs, id)
		if e.AwaitAck {
			e.NextFireAt = time.Time{}
			e.AckDeadline = now.Add(q.policy.AckTimeout)
			out = append(out, retryEvent{Key: key, Kind: e.Message.Kind, Outcome: outcomeAwaitingAck, Attempts: e.Attempts})
			continue
		}
		q.remove(key)
		out = append(out, retryEvent{Key: key, Kind: e.Message.Kind, Outcome: outcomeDelivered, Attempts: e.Attempts})
	}
	return out
}

func (q *retryQueue) fail(e *RetryState, now time.Time, err error) retryEvent {
	if e.Exhausted() {
		q.remove(e.Key)
		return retryEvent{Key: e.Key, Kind: e.Message.Kind, Outcome: outcomeExhausted, Attempts: e.Attempts, Err: err}
	}
	e.NextFireAt = now.Add(q.policy.Backoff)
	return retryEvent{Key: e.Key, Kind: e.Message.Kind, Outcome: outcomeRetryScheduled, Attempts: e.Attempts, Err: err}
}

func (q *retryQueue) remove(key string) {
	delete(q.entries, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// snapshot copies the pending entries in insertion order.
func (q *retryQueue) snapshot() []RetryState {
	out := make([]RetryState, 0, len(q.order))
	for _, key := range q.order {
		e := *q.entries[key]
		e.sentIDs = nil
		out = append(out, e)
	}
	return out
}
