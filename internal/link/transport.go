package link

import (
	"context"
)

// Transport moves opaque frames between the two devices and reports whether
// the counterpart is currently reachable.
type Transport interface {
	// Send writes one frame. It fails with ErrUnreachable when there is no
	// counterpart to deliver to.
	Send(ctx context.Context, frame []byte) error
	// Frames yields inbound frames.
	Frames() <-chan []byte
	// Reachability yields every change of the reachable flag.
	Reachability() <-chan bool
	Close() error
}
