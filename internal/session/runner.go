package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/events"
	"github.com/artishokq/SmartSwim-sub001/internal/go_func_utils"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

var ErrRunnerStopped = errors.New("session runner is not running")

// Emitter carries what a session produces to the counterpart device.
type Emitter interface {
	SendWatchStatus(status string) error
	SendHeartRate(bpm float64) error
	SendStrokeCount(n int) error
	ForwardSession(s store.CompletedWorkoutSession) error
}

// RunnerOptions configure a Runner. Zero values pick defaults.
type RunnerOptions struct {
	CountdownTick  time.Duration
	RepetitionTick time.Duration
	PersistTimeout time.Duration
	Gateway        store.Gateway
	Emitter        Emitter
}

type eventKind int

const (
	evLoad eventKind = iota
	evStartSession
	evShowCountdown
	evStartExercise
	evComplete
	evStop
	evHeartRate
	evStrokes
	evPersisted
)

type ownerEvent struct {
	kind    eventKind
	workout workout.Workout
	bpm     float64
	strokes int
	at      time.Time
	epoch   uint64
	result  Result
	reply   chan ownerReply
}

type ownerReply struct {
	ok      bool
	outcome Outcome
	err     error
}

// Runner owns a Machine on a single goroutine. Triggers, telemetry and
// persistence results all arrive through one inbox; the countdown and
// repetition tickers only run in their states. A snapshot is published after
// every handled event.
type Runner struct {
	machine *Machine
	logger  zerolog.Logger
	opts    RunnerOptions

	inbox     chan ownerEvent
	snapshots *events.ChannelEvent[Snapshot]
	results   *events.ChannelEvent[Result]

	// Owned by the loop goroutine.
	epoch      uint64
	lastStatus string

	started      atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	doneChan     chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewRunner(machine *Machine, logger zerolog.Logger, opts RunnerOptions) *Runner {
	if machine == nil {
		panic("Runner: machine cannot be nil")
	}
	if opts.CountdownTick <= 0 {
		opts.CountdownTick = 50 * time.Millisecond
	}
	if opts.RepetitionTick <= 0 {
		opts.RepetitionTick = 500 * time.Millisecond
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		machine:   machine,
		logger:    logger.With().Str("component", "SessionRunner").Logger(),
		opts:      opts,
		inbox:     make(chan ownerEvent, 64),
		snapshots: events.NewChannelEvent[Snapshot](true),
		results:   events.NewChannelEvent[Result](false),
		ctx:       ctx,
		cancel:    cancel,
		doneChan:  make(chan struct{}),
	}
	r.snapshots.Notify(machine.Snapshot())
	return r
}

// Start launches the owner goroutine.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		r.started.Store(true)
		go_func_utils.SafeGo(r.logger, func() { r.run() })
		r.logger.Info().Msg("started")
	})
}

// Shutdown stops the owner goroutine and waits for pending saves to give up.
// Safe to call multiple times.
func (r *Runner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.logger.Info().Msg("shutting down")
		r.cancel()
		close(r.doneChan)
		r.wg.Wait()
		r.logger.Info().Msg("shutdown complete")
	})
}

// ListenToSnapshots delivers a snapshot after every change, starting with the
// current one.
func (r *Runner) ListenToSnapshots(ch chan<- Snapshot) func() {
	return r.snapshots.Listen(ch)
}

// ListenToResults delivers the save result of each completed session.
func (r *Runner) ListenToResults(ch chan<- Result) func() {
	return r.results.Listen(ch)
}

// Snapshot returns the most recently published snapshot.
func (r *Runner) Snapshot() Snapshot {
	s, _ := r.snapshots.Latest()
	return s
}

func (r *Runner) Load(w workout.Workout) error {
	rep, ok := r.call(ownerEvent{kind: evLoad, workout: w})
	if !ok {
		return ErrRunnerStopped
	}
	return rep.err
}

func (r *Runner) StartSession() bool {
	rep, _ := r.call(ownerEvent{kind: evStartSession})
	return rep.ok
}

func (r *Runner) ShowCountdown() bool {
	rep, _ := r.call(ownerEvent{kind: evShowCountdown})
	return rep.ok
}

func (r *Runner) StartCurrentExercise() bool {
	rep, _ := r.call(ownerEvent{kind: evStartExercise})
	return rep.ok
}

func (r *Runner) CompleteCurrentExercise() Outcome {
	rep, _ := r.call(ownerEvent{kind: evComplete})
	return rep.outcome
}

// StopSession abandons the running session. Its timers stop at once and a
// save still in flight for an earlier session is no longer reported.
func (r *Runner) StopSession() bool {
	rep, _ := r.call(ownerEvent{kind: evStop})
	return rep.ok
}

// IngestHeartRate queues a reading without blocking. It reports false when
// the inbox is full or the runner is not running.
func (r *Runner) IngestHeartRate(bpm float64, at time.Time) bool {
	return r.offer(ownerEvent{kind: evHeartRate, bpm: bpm, at: at})
}

// IngestStrokes queues a stroke increment without blocking.
func (r *Runner) IngestStrokes(n int) bool {
	return r.offer(ownerEvent{kind: evStrokes, strokes: n})
}

func (r *Runner) offer(ev ownerEvent) bool {
	if !r.started.Load() {
		return false
	}
	select {
	case <-r.doneChan:
		return false
	default:
	}
	if !events.Offer(r.inbox, ev) {
		r.logger.Warn().Int("kind", int(ev.kind)).Msg("inbox full, dropping sample")
		return false
	}
	return true
}

func (r *Runner) call(ev ownerEvent) (ownerReply, bool) {
	if !r.started.Load() {
		return ownerReply{}, false
	}
	ev.reply = make(chan ownerReply, 1)
	select {
	case r.inbox <- ev:
	case <-r.doneChan:
		return ownerReply{}, false
	}
	select {
	case rep := <-ev.reply:
		return rep, true
	case <-r.doneChan:
		return ownerReply{}, false
	}
}

func (r *Runner) run() {
	defer r.wg.Done()

	// Tickers start stopped and only run in their states.
	countdown := time.NewTicker(r.opts.CountdownTick)
	countdown.Stop()
	repetition := time.NewTicker(r.opts.RepetitionTick)
	repetition.Stop()
	defer countdown.Stop()
	defer repetition.Stop()
	ticking := StateNotStarted

	for {
		var (
			reply chan ownerReply
			rep   ownerReply
		)

		select {
		case <-r.doneChan:
			r.logger.Debug().Msg("goroutine exiting")
			return

		case ev := <-r.inbox:
			rep = r.handle(ev)
			reply = ev.reply

		case <-countdown.C:
			r.machine.Tick()

		case <-repetition.C:
			r.machine.Tick()
		}

		if state := r.machine.State(); state != ticking {
			countdown.Stop()
			repetition.Stop()
			switch state {
			case StateCountdown:
				countdown.Reset(r.opts.CountdownTick)
			case StateExerciseActive:
				repetition.Reset(r.opts.RepetitionTick)
			}
			r.logger.Info().Str("from", ticking.String()).Str("to", state.String()).Msg("state changed")
			ticking = state
		}

		r.publish()
		if reply != nil {
			reply <- rep
		}
	}
}

func (r *Runner) handle(ev ownerEvent) ownerReply {
	switch ev.kind {
	case evLoad:
		if err := r.machine.Load(ev.workout); err != nil {
			r.logger.Warn().Err(err).Str("workout", ev.workout.Name).Msg("workout not loaded")
			return ownerReply{err: err}
		}
		r.epoch++
		r.logger.Info().Str("workout", ev.workout.Name).Int("exercises", len(ev.workout.Exercises)).Msg("workout loaded")
		return ownerReply{ok: true}

	case evStartSession:
		ok := r.machine.StartSession()
		if ok {
			r.epoch++
		}
		return ownerReply{ok: ok}

	case evShowCountdown:
		return ownerReply{ok: r.machine.ShowCountdown()}

	case evStartExercise:
		return ownerReply{ok: r.machine.StartCurrentExercise()}

	case evComplete:
		outcome := r.machine.CompleteCurrentExercise()
		if outcome != OutcomeIgnored {
			r.logger.Info().Str("outcome", outcome.String()).Msg("exercise action")
		}
		if outcome == OutcomeSessionCompleted {
			r.finish()
		}
		return ownerReply{ok: outcome != OutcomeIgnored, outcome: outcome}

	case evStop:
		ok := r.machine.Stop()
		if ok {
			r.epoch++
			r.logger.Info().Msg("session abandoned")
		}
		return ownerReply{ok: ok}

	case evHeartRate:
		r.machine.IngestHeartRate(ev.bpm, ev.at)
		if r.opts.Emitter != nil {
			if err := r.opts.Emitter.SendHeartRate(ev.bpm); err != nil {
				r.logger.Debug().Err(err).Msg("heart rate not sent")
			}
		}

	case evStrokes:
		if r.machine.IngestStrokes(ev.strokes) && r.opts.Emitter != nil {
			if err := r.opts.Emitter.SendStrokeCount(ev.strokes); err != nil {
				r.logger.Debug().Err(err).Msg("stroke count not sent")
			}
		}

	case evPersisted:
		if ev.epoch != r.epoch {
			r.logger.Info().Str("session", ev.result.SessionID).Msg("ignoring save result of an abandoned session")
			break
		}
		if r.machine.SetResult(ev.result) {
			if ev.result.DataSaved {
				r.logger.Info().Str("session", ev.result.SessionID).Msg("session saved")
			} else {
				r.logger.Error().Err(ev.result.Err).Str("session", ev.result.SessionID).Msg("session not saved")
			}
			r.results.Notify(ev.result)
		}
	}
	return ownerReply{ok: true}
}

// finish hands the completed session to the gateway off the owner goroutine
// and forwards it to the counterpart.
func (r *Runner) finish() {
	summary, ok := r.machine.Summary()
	if !ok {
		return
	}
	epoch := r.epoch

	if r.opts.Emitter != nil {
		if err := r.opts.Emitter.ForwardSession(summary); err != nil {
			r.logger.Warn().Err(err).Str("session", summary.ID).Msg("session not forwarded")
		}
	}

	r.wg.Add(1)
	go_func_utils.SafeGo(r.logger, func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.ctx, r.opts.PersistTimeout)
		defer cancel()

		res := Persist(ctx, r.opts.Gateway, summary)
		select {
		case r.inbox <- ownerEvent{kind: evPersisted, epoch: epoch, result: res}:
		case <-r.doneChan:
		}
	})
}

func (r *Runner) publish() {
	snap := r.machine.Snapshot()
	r.snapshots.Notify(snap)

	if r.opts.Emitter == nil {
		return
	}
	status := snap.StatusText()
	if status == r.lastStatus {
		return
	}
	r.lastStatus = status
	if err := r.opts.Emitter.SendWatchStatus(status); err != nil {
		r.logger.Debug().Err(err).Str("status", status).Msg("watch status not sent")
	}
}
