package link

import (
	"context"
	"errors"
	"sync"
)

var errPeerInboxFull = errors.New("memory transport: peer inbox full")

// MemoryTransport is one end of an in-process transport pair. Both ends share
// the reachable flag; tests flip it and inject send failures.
type MemoryTransport struct {
	mu        sync.Mutex
	peer      *MemoryTransport
	frames    chan []byte
	reach     chan bool
	reachable bool
	closed    bool
	sendErr   func(frame []byte) error
	sent      int
}

var _ Transport = (*MemoryTransport)(nil)

// NewMemoryPair creates two connected ends, initially unreachable.
func NewMemoryPair(buffer int) (*MemoryTransport, *MemoryTransport) {
	a := &MemoryTransport{frames: make(chan []byte, buffer), reach: make(chan bool, 16)}
	b := &MemoryTransport{frames: make(chan []byte, buffer), reach: make(chan bool, 16)}
	a.peer = b
	b.peer = a
	return a, b
}

func (m *MemoryTransport) Send(ctx context.Context, frame []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.reachable {
		m.mu.Unlock()
		return ErrUnreachable
	}
	m.sent++
	fail := m.sendErr
	peer := m.peer
	m.mu.Unlock()

	if fail != nil {
		if err := fail(frame); err != nil {
			return err
		}
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)
	select {
	case peer.frames <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errPeerInboxFull
	}
}

func (m *MemoryTransport) Frames() <-chan []byte {
	return m.frames
}

func (m *MemoryTransport) Reachability() <-chan bool {
	return m.reach
}

func (m *MemoryTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// SetReachable changes reachability for both ends.
func (m *MemoryTransport) SetReachable(reachable bool) {
	for _, end := range []*MemoryTransport{m, m.peer} {
		end.mu.Lock()
		changed := end.reachable != reachable
		end.reachable = reachable
		end.mu.Unlock()
		if changed {
			select {
			case end.reach <- reachable:
			default:
			}
		}
	}
}

// SetSendFailure makes this end run fn before every delivery; a non-nil
// result fails the send.
func (m *MemoryTransport) SetSendFailure(fn func(frame []byte) error) {
	m.mu.Lock()
	m.sendErr = fn
	m.mu.Unlock()
}

// SentCount is the number of sends attempted while reachable.
func (m *MemoryTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Inject delivers a raw frame to this end as if the peer had sent it.
func (m *MemoryTransport) Inject(frame []byte) {
	m.frames <- frame
}
