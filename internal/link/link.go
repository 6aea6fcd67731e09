// Package link carries messages between the companion and the watch: fire-and-forget
// sends, request/reply with a timeout, keyed subscriptions, and bounded retries
// for deliveries that must arrive.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/clock"
	"github.com/artishokq/SmartSwim-sub001/internal/events"
	"github.com/artishokq/SmartSwim-sub001/internal/go_func_utils"
	"github.com/artishokq/SmartSwim-sub001/internal/metrics"
)

const sendTimeout = 5 * time.Second

// Options tune a Link. Zero values pick defaults.
type Options struct {
	Retry   RetryPolicy
	Clock   clock.Clock
	Metrics *metrics.Link
}

type reliableRequest struct {
	key      string
	msg      Message
	awaitAck bool
}

// Link is the device link. Inbound dispatch and the retry queue are owned by a
// single goroutine started with Start; handlers run on that goroutine and must
// hand work off rather than block.
type Link struct {
	transport Transport
	logger    zerolog.Logger
	clock     clock.Clock
	metrics   *metrics.Link
	queue     *retryQueue

	reachable    atomic.Bool
	reachability *events.ChannelEvent[bool]
	handlers     *events.HandlerRegistry[Kind, Message]

	waitersMu sync.Mutex
	waiters   map[string]chan Message

	reliable chan reliableRequest
	inspect  chan chan []RetryState

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

func New(transport Transport, logger zerolog.Logger, opts Options) *Link {
	if transport == nil {
		panic("Link: transport cannot be nil")
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	return &Link{
		transport:    transport,
		logger:       logger.With().Str("component", "DeviceLink").Logger(),
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		queue:        newRetryQueue(opts.Retry),
		reachability: events.NewChannelEvent[bool](true),
		handlers:     events.NewHandlerRegistry[Kind, Message](),
		waiters:      make(map[string]chan Message),
		reliable:     make(chan reliableRequest, 64),
		inspect:      make(chan chan []RetryState),
	}
}

// Start launches the link goroutine. Calling it twice is a no-op.
func (l *Link) Start() {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	go_func_utils.SafeGo(l.logger, func() { l.run(ctx, done) })
	l.logger.Info().Msg("started")
}

// Stop ends the link goroutine and waits for it. Pending reliable deliveries
// are abandoned. The transport is left open for its owner to close.
func (l *Link) Stop() {
	l.lifecycleMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.logger.Info().Msg("stopped")
}

// IsReachable reports whether the counterpart can currently receive.
func (l *Link) IsReachable() bool {
	return l.reachable.Load()
}

// ListenToReachability delivers every reachability change, starting with the
// current state once one is known.
func (l *Link) ListenToReachability(ch chan<- bool) func() {
	return l.reachability.Listen(ch)
}

// Subscribe registers handler for inbound messages of kind. Several handlers
// may share a kind.
func (l *Link) Subscribe(kind Kind, handler func(Message)) func() {
	return l.handlers.Register(kind, handler)
}

// Send writes msg once. It fails immediately with ErrUnreachable when the
// counterpart is not reachable and is never retried.
func (l *Link) Send(msg Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_, err := l.write(ctx, msg)
	return err
}

// Reply answers req with fields.
func (l *Link) Reply(req Message, fields map[string]any) error {
	kind, err := Classify(fields)
	if err != nil {
		return err
	}
	return l.Send(Message{ReplyTo: req.ID, Kind: kind, Fields: fields})
}

// SendWithReply writes msg and waits up to timeout for the answer. A nil
// message with ErrReplyTimeout means the answer is unknown, not empty.
func (l *Link) SendWithReply(ctx context.Context, msg Message, timeout time.Duration) (*Message, error) {
	msg.ID = uuid.NewString()
	ch := make(chan Message, 1)

	l.waitersMu.Lock()
	l.waiters[msg.ID] = ch
	l.waitersMu.Unlock()
	defer func() {
		l.waitersMu.Lock()
		delete(l.waiters, msg.ID)
		l.waitersMu.Unlock()
	}()

	if _, err := l.write(ctx, msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return &reply, nil
	case <-timer.C:
		l.metrics.ReplyTimeout(string(msg.Kind))
		l.logger.Warn().Str("kind", string(msg.Kind)).Dur("timeout", timeout).Msg("reply timed out")
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendReliable queues msg for bounded retried delivery under key. A newer
// message with the same key replaces one still pending. With awaitAck the
// delivery only counts once a reply referencing it arrives.
func (l *Link) SendReliable(key string, msg Message, awaitAck bool) error {
	if !events.Offer(l.reliable, reliableRequest{key: key, msg: msg, awaitAck: awaitAck}) {
		l.logger.Error().Str("key", key).Msg("reliable queue full, dropping")
		return ErrBusy
	}
	return nil
}

// RetryStatus returns the pending reliable deliveries. It must not be called
// from a subscription handler.
func (l *Link) RetryStatus(ctx context.Context) ([]RetryState, error) {
	l.lifecycleMu.Lock()
	done := l.done
	running := l.cancel != nil
	l.lifecycleMu.Unlock()
	if !running {
		return nil, ErrClosed
	}

	reply := make(chan []RetryState, 1)
	select {
	case l.inspect <- reply:
	case <-done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case states := <-reply:
		return states, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Link) write(ctx context.Context, msg Message) (string, error) {
	kind := string(msg.Kind)
	if !l.reachable.Load() {
		l.metrics.Sent(kind, "unreachable")
		return "", ErrUnreachable
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	frame, err := Encode(msg)
	if err != nil {
		l.metrics.Sent(kind, "error")
		return "", err
	}
	if err := l.transport.Send(ctx, frame); err != nil {
		if errors.Is(err, ErrUnreachable) {
			l.metrics.Sent(kind, "unreachable")
			return "", err
		}
		l.metrics.Sent(kind, "error")
		return "", fmt.Errorf("sending %s: %w", kind, err)
	}
	l.metrics.Sent(kind, "ok")
	return msg.ID, nil
}

func (l *Link) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	frames := l.transport.Frames()
	reach := l.transport.Reachability()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		l.armTimer(timer)

		select {
		case <-ctx.Done():
			return

		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			l.handleFrame(frame)

		case reachable, ok := <-reach:
			if !ok {
				reach = nil
				continue
			}
			l.handleReachability(reachable)

		case req := <-l.reliable:
			l.queue.put(req.key, req.msg, req.awaitAck, l.clock.Now())
			l.logger.Debug().Str("key", req.key).Str("kind", string(req.msg.Kind)).Msg("reliable delivery queued")

		case reply := <-l.inspect:
			reply <- l.queue.snapshot()
			continue

		case <-timer.C:
		}

		l.pumpRetries(ctx)
	}
}

func (l *Link) armTimer(timer *time.Timer) {
	next, ok := l.queue.nextWake()
	if !ok {
		timer.Stop()
		return
	}
	d := next.Sub(l.clock.Now())
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}

func (l *Link) pumpRetries(ctx context.Context) {
	send := func(msg Message) (string, error) {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		return l.write(sendCtx, msg)
	}

	for _, ev := range l.queue.pump(l.clock.Now(), l.reachable.Load(), send) {
		logEvent := l.logger.With().Str("key", ev.Key).Str("kind", string(ev.Kind)).Int("attempts", ev.Attempts).Logger()
		switch ev.Outcome {
		case outcomeDelivered:
			logEvent.Debug().Msg("reliable delivery sent")
		case outcomeAwaitingAck:
			logEvent.Debug().Msg("reliable delivery awaiting acknowledgement")
		case outcomeParked:
			logEvent.Debug().Msg("reliable delivery parked until reachable")
		case outcomeRetryScheduled:
			l.metrics.Retry(ev.Key)
			logEvent.Warn().Err(ev.Err).Msg("reliable delivery failed, retrying")
		case outcomeExhausted:
			l.metrics.Drop(ev.Key)
			logEvent.Error().Err(ev.Err).Msg("reliable delivery abandoned")
		}
	}
}

func (l *Link) handleReachability(reachable bool) {
	if l.reachable.Swap(reachable) == reachable {
		return
	}
	l.metrics.SetReachable(reachable)
	l.logger.Info().Bool("reachable", reachable).Msg("reachability changed")
	if reachable {
		l.queue.wake(l.clock.Now())
	}
	l.reachability.Notify(reachable)
}

func (l *Link) handleFrame(frame []byte) {
	msg, err := Decode(frame)
	if err != nil {
		l.metrics.MalformedFrame()
		l.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping malformed frame")
		return
	}
	l.metrics.Received(string(msg.Kind))

	if msg.ReplyTo != "" {
		if l.deliverReply(msg) {
			return
		}
		if key, ok := l.queue.ack(msg.ReplyTo); ok {
			l.logger.Debug().Str("key", key).Msg("reliable delivery acknowledged")
		}
	}

	if n := l.handlers.Dispatch(msg.Kind, msg); n == 0 {
		l.logger.Debug().Str("kind", string(msg.Kind)).Msg("no handler for message")
	}
}

func (l *Link) deliverReply(msg Message) bool {
	l.waitersMu.Lock()
	ch, ok := l.waiters[msg.ReplyTo]
	l.waitersMu.Unlock()
	if !ok {
		return false
	}
	events.Offer(ch, msg)
	return true
}
