// Package peer implements the two ends of the sync protocol on top of a
// link.Link: the Companion on the handheld and the Controller on the watch.
package peer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/events"
	"github.com/artishokq/SmartSwim-sub001/internal/go_func_utils"
	"github.com/artishokq/SmartSwim-sub001/internal/link"
	"github.com/artishokq/SmartSwim-sub001/internal/session"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

const sessionKeyPrefix = "session:"

// Controller is the watch side. It answers parameter pulls from its cache,
// applies workout snapshots to its library, turns remote commands into
// events and sends telemetry back.
type Controller struct {
	link    *link.Link
	library *workout.Library
	params  *ParameterCache
	logger  zerolog.Logger

	commands *events.ChannelEvent[link.Command]

	mu          sync.Mutex
	unsubscribe []func()
	doneChan    chan struct{}
	wg          sync.WaitGroup
}

var _ session.Emitter = (*Controller)(nil)

func NewController(l *link.Link, library *workout.Library, params *ParameterCache, logger zerolog.Logger) *Controller {
	if l == nil {
		panic("Controller: link cannot be nil")
	}
	if library == nil {
		panic("Controller: library cannot be nil")
	}
	if params == nil {
		panic("Controller: params cannot be nil")
	}
	return &Controller{
		link:     l,
		library:  library,
		params:   params,
		logger:   logger.With().Str("component", "Controller").Logger(),
		commands: events.NewChannelEvent[link.Command](false),
	}
}

// Start subscribes to inbound messages and asks for the workout list now and
// whenever the companion becomes reachable.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneChan != nil {
		return
	}
	c.doneChan = make(chan struct{})

	c.unsubscribe = []func(){
		c.link.Subscribe(link.KindRequestAllParameters, c.handleParameterPull),
		c.link.Subscribe(link.KindRequestPoolLength, c.handlePoolLengthPull),
		c.link.Subscribe(link.KindParameters, c.handleParameters),
		c.link.Subscribe(link.KindWorkoutsData, c.handleWorkouts),
		c.link.Subscribe(link.KindCommand, c.handleCommand),
		c.link.Subscribe(link.KindSessionReceived, c.handleSessionReceived),
	}

	reach := make(chan bool, 4)
	c.unsubscribe = append(c.unsubscribe, c.link.ListenToReachability(reach))
	done := c.doneChan
	c.wg.Add(1)
	go_func_utils.SafeGo(c.logger, func() {
		defer c.wg.Done()
		for {
			select {
			case <-done:
				return
			case reachable := <-reach:
				if reachable {
					c.RequestWorkouts()
				}
			}
		}
	})

	c.RequestWorkouts()
	c.logger.Info().Msg("started")
}

func (c *Controller) Stop() {
	c.mu.Lock()
	done := c.doneChan
	c.doneChan = nil
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

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

// ListenToCommands delivers start/stop commands from the companion.
func (c *Controller) ListenToCommands(ch chan<- link.Command) func() {
	return c.commands.Listen(ch)
}

// RequestWorkouts asks the companion for its workout list. A failure is
// harmless: the companion pushes the list again when the link comes back.
func (c *Controller) RequestWorkouts() {
	if err := c.link.Send(link.RequestMessage(link.KindRequestWorkouts)); err != nil {
		c.logger.Debug().Err(err).Msg("workout request not sent")
	}
}

// WorkoutForStart picks what a remote "start" runs: the selected workout, else
// the first in the library, else a free swim built from the cached parameters.
func (c *Controller) WorkoutForStart(selectedID string) workout.Workout {
	if selectedID != "" {
		if w, ok := c.library.Get(selectedID); ok {
			return w
		}
	}
	if all := c.library.All(); len(all) > 0 {
		return all[0]
	}
	p := c.params.Get()
	meters := p.TotalMeters
	if meters <= 0 {
		meters = int(p.PoolSize)
	}
	return workout.FromParameters(uuid.NewString(), p.PoolSize, workout.Style(p.SwimmingStyle), meters)
}

func (c *Controller) SendWatchStatus(status string) error {
	return c.link.Send(link.WatchStatusMessage(status))
}

func (c *Controller) SendHeartRate(bpm float64) error {
	return c.link.Send(link.HeartRateMessage(bpm))
}

func (c *Controller) SendStrokeCount(n int) error {
	return c.link.Send(link.StrokeCountMessage(n))
}

// ForwardSession queues a completed session for the companion. Delivery is
// retried until the companion acknowledges it.
func (c *Controller) ForwardSession(s store.CompletedWorkoutSession) error {
	return c.link.SendReliable(sessionKeyPrefix+s.ID, link.SessionMessage(s), true)
}

func (c *Controller) handleParameterPull(m link.Message) {
	if err := c.link.Reply(m, c.params.Get().Fields()); err != nil {
		c.logger.Warn().Err(err).Msg("parameter reply not sent")
	}
}

func (c *Controller) handlePoolLengthPull(m link.Message) {
	if err := c.link.Reply(m, link.PoolLengthFields(c.params.PoolLength())); err != nil {
		c.logger.Warn().Err(err).Msg("pool length reply not sent")
	}
}

func (c *Controller) handleParameters(m link.Message) {
	p, err := link.ParseParameters(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping parameters")
		return
	}
	if err := c.params.Set(p); err != nil {
		c.logger.Error().Err(err).Msg("parameters not persisted")
	}
	if err := c.link.Reply(m, link.ParametersReceivedFields(true)); err != nil {
		c.logger.Warn().Err(err).Msg("parameter acknowledgement not sent")
	}
}

func (c *Controller) handleWorkouts(m link.Message) {
	workouts, rejected, err := link.ParseWorkouts(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping workout list")
		return
	}
	for _, r := range rejected {
		c.logger.Warn().Err(r).Msg("skipping invalid workout")
	}
	changed := c.library.Replace(workouts)
	c.logger.Info().Int("workouts", len(workouts)).Bool("changed", changed).Msg("workout list received")
}

func (c *Controller) handleCommand(m link.Message) {
	cmd, err := link.ParseCommand(m)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping command")
		return
	}
	c.logger.Info().Str("command", string(cmd)).Msg("command received")
	c.commands.Notify(cmd)
}

func (c *Controller) handleSessionReceived(m link.Message) {
	ok, _ := m.Bool("sessionReceived")
	c.logger.Info().Str("reply_to", m.ReplyTo).Bool("stored", ok).Msg("companion acknowledged session")
}
