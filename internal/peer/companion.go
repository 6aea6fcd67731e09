package peer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/clock"
	"github.com/artishokq/SmartSwim-sub001/internal/events"
	"github.com/artishokq/SmartSwim-sub001/internal/go_func_utils"
	"github.com/artishokq/SmartSwim-sub001/internal/link"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/telemetry"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

const (
	workoutsKey   = "workoutsData"
	parametersKey = "parameters"

	defaultReplyTimeout = 5 * time.Second
	storeTimeout        = 10 * time.Second
)

// WatchState is the companion's live view of the watch.
type WatchState struct {
	Reachable        bool
	Status           string
	HeartRate        float64
	StrokeCount      int
	AverageHeartRate float64
	UpdatedAt        time.Time
}

// CompanionOptions tune a Companion. Zero values pick defaults.
type CompanionOptions struct {
	ReplyTimeout time.Duration
	Clock        clock.Clock
}

// Companion is the handheld side. It owns the authoritative workout list and
// swim parameters, remote-controls the watch and collects what it reports.
type Companion struct {
	link     *link.Link
	library  *workout.Library
	sessions store.Gateway
	logger   zerolog.Logger
	clock    clock.Clock
	timeout  time.Duration

	mu    sync.Mutex
	agg   *telemetry.Aggregator
	state WatchState
	watch *events.ChannelEvent[WatchState]

	lifecycleMu sync.Mutex
	unsubscribe []func()
	doneChan    chan struct{}
	wg          sync.WaitGroup
}

func NewCompanion(l *link.Link, library *workout.Library, sessions store.Gateway, logger zerolog.Logger, opts CompanionOptions) *Companion {
	if l == nil {
		panic("Companion: link cannot be nil")
	}
	if library == nil {
		panic("Companion: library cannot be nil")
	}
	if sessions == nil {
		panic("Companion: sessions cannot be nil")
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = defaultReplyTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Companion{
		link:     l,
		library:  library,
		sessions: sessions,
		logger:   logger.With().Str("component", "Companion").Logger(),
		clock:    opts.Clock,
		timeout:  opts.ReplyTimeout,
		agg:      telemetry.NewAggregator(),
		watch:    events.NewChannelEvent[WatchState](true),
	}
}

// Start subscribes to the watch's messages and publishes the workout list now,
// whenever the watch becomes reachable and whenever the library changes.
func (c *Companion) Start() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.doneChan != nil {
		return
	}
	c.doneChan = make(chan struct{})

	reach := make(chan bool, 4)
	changes := make(chan []workout.Workout, 4)
	c.unsubscribe = []func(){
		c.link.Subscribe(link.KindHeartRate, c.handleHeartRate),
		c.link.Subscribe(link.KindStrokeCount, c.handleStrokeCount),
		c.link.Subscribe(link.KindWatchStatus, c.handleWatchStatus),
		c.link.Subscribe(link.KindRequestWorkouts, c.handleWorkoutRequest),
		c.link.Subscribe(link.KindSessionData, c.handleSessionData),
		c.link.Subscribe(link.KindParametersReceived, c.handleParametersReceived),
		c.link.ListenToReachability(reach),
		c.library.ListenToChanges(changes),
	}

	done := c.doneChan
	c.wg.Add(1)
	go_func_utils.SafeGo(c.logger, func() {
		defer c.wg.Done()
		for {
			select {
			case <-done:
				return
			case reachable := <-reach:
				c.updateWatch(func(s *WatchState) { s.Reachable = reachable })
				if reachable {
					c.publishWorkouts("reachable")
				}
			case <-changes:
				c.publishWorkouts("library changed")
			}
		}
	})

	c.publishWorkouts("start")
	c.logger.Info().Msg("started")
}

func (c *Companion) Stop() {
	c.lifecycleMu.Lock()
	done := c.doneChan
	c.doneChan = nil
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.lifecycleMu.Unlock()

	if done == nil {
		return
	}
	for _, off := range unsubscribe {
		off()
	}
	close(done)
	c.wg.Wait()
	c.logger.Info().Msg("stopped")
}

// PublishWorkouts queues the full workout list for the watch. A newer list
// replaces one still waiting to be delivered.
func (c *Companion) PublishWorkouts() error {
	return c.link.SendReliable(workoutsKey, link.WorkoutsMessage(c.library.All()), false)
}

// PushParameters queues p for the watch and retries until it is acknowledged.
func (c *Companion) PushParameters(p link.Parameters) error {
	if p.PoolSize <= 0 {
		return fmt.Errorf("%w: pool size must be positive", link.ErrMalformed)
	}
	return c.link.SendReliable(parametersKey, p.Message(), true)
}

// SendCommand sends a best-effort command. It fails at once with
// link.ErrUnreachable when the watch is not reachable and is not retried.
func (c *Companion) SendCommand(cmd link.Command) error {
	return c.link.Send(link.CommandMessage(cmd))
}

// PullParameters asks the watch for its cached parameters. link.ErrReplyTimeout
// means the answer is unknown.
func (c *Companion) PullParameters(ctx context.Context) (link.Parameters, error) {
	reply, err := c.link.SendWithReply(ctx, link.RequestMessage(link.KindRequestAllParameters), c.timeout)
	if err != nil {
		return link.Parameters{}, err
	}
	return link.ParseParameters(*reply)
}

// PullPoolLength asks the watch for its pool length. link.ErrReplyTimeout means
// the pool length is unknown, not zero.
func (c *Companion) PullPoolLength(ctx context.Context) (float64, error) {
	reply, err := c.link.SendWithReply(ctx, link.RequestMessage(link.KindRequestPoolLength), c.timeout)
	if err != nil {
		return 0, err
	}
	return link.ParsePoolLength(*reply)
}

// Watch returns the latest view of the watch.
func (c *Companion) Watch() WatchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ListenToWatch delivers every change of the watch view, starting with the
// current one once known.
func (c *Companion) ListenToWatch(ch chan<- WatchState) func() {
	return c.watch.Listen(ch)
}

// RetryStatus lists deliveries still waiting for the watch.
func (c *Companion) RetryStatus(ctx context.Context) ([]link.RetryState, error) {
	return c.link.RetryStatus(ctx)
}

func (c *Companion) publishWorkouts(reason string) {
	if err := c.PublishWorkouts(); err != nil {
		c.logger.Error().Err(err).Str("reason", reason).Msg("workout list not queued")
		return
	}
	c.logger.Debug().Str("reason", reason).Int("workouts", c.library.Len()).Msg("workout list queued")
}

func (c *Companion) updateWatch(fn func(*WatchState)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.AverageHeartRate = c.agg.AverageHeartRate()
	c.state.UpdatedAt = c.clock.Now()
	state := c.state
	c.mu.Unlock()
	c.watch.Notify(state)
}

func (c *Companion) handleHeartRate(m link.Message) {
	bpm, err := link.ParseHeartRate(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping heart rate")
		return
	}
	c.updateWatch(func(s *WatchState) {
		c.agg.AddHeartRate(bpm, c.clock.Now())
		s.HeartRate = c.agg.Live().HeartRate
	})
}

func (c *Companion) handleStrokeCount(m link.Message) {
	n, err := link.ParseStrokeCount(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping stroke count")
		return
	}
	c.updateWatch(func(s *WatchState) {
		c.agg.AddStrokes(n)
		s.StrokeCount = c.agg.Live().StrokeCount
	})
}

func (c *Companion) handleWatchStatus(m link.Message) {
	status, err := link.ParseWatchStatus(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping watch status")
		return
	}
	c.updateWatch(func(s *WatchState) {
		// A preview means the watch moved on to a new exercise.
		if strings.HasPrefix(status, "preview") && !strings.HasPrefix(s.Status, "preview") {
			c.agg.Reset()
			s.StrokeCount = 0
		}
		s.Status = status
	})
}

func (c *Companion) handleWorkoutRequest(link.Message) {
	c.publishWorkouts("requested")
}

func (c *Companion) handleParametersReceived(m link.Message) {
	ok, _ := m.Bool("parametersReceived")
	c.logger.Info().Bool("received", ok).Msg("watch acknowledged parameters")
}

// handleSessionData stores a forwarded session off the link goroutine and
// acknowledges it. Storing is idempotent, so a retried delivery is harmless;
// a failed store goes unacknowledged so the watch tries again.
func (c *Companion) handleSessionData(m link.Message) {
	s, err := link.ParseSession(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping session")
		return
	}

	c.lifecycleMu.Lock()
	if c.doneChan == nil {
		c.lifecycleMu.Unlock()
		c.logger.Warn().Str("session", s.ID).Msg("stopped, dropping session")
		return
	}
	c.wg.Add(1)
	c.lifecycleMu.Unlock()

	go_func_utils.SafeGo(c.logger, func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		id, err := c.sessions.CreateWorkoutSession(ctx, s)
		if err != nil {
			c.logger.Error().Err(err).Str("session", s.ID).Msg("session not stored")
			return
		}
		c.logger.Info().Str("session", id).Str("workout", s.WorkoutName).Msg("session stored")
		if err := c.link.Reply(m, link.SessionReceivedFields(true)); err != nil && !errors.Is(err, link.ErrUnreachable) {
			c.logger.Warn().Err(err).Msg("session acknowledgement not sent")
		}
	})
}
