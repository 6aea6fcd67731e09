package watchui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/go_func_utils"
	"github.com/artishokq/SmartSwim-sub001/internal/session"
)

// Controls is the part of session.Runner the dashboard drives.
type Controls interface {
	StartSession() bool
	ShowCountdown() bool
	CompleteCurrentExercise() session.Outcome
	StopSession() bool
	IngestStrokes(n int) bool
	Snapshot() session.Snapshot
	ListenToSnapshots(ch chan<- session.Snapshot) func()
}

var _ Controls = (*session.Runner)(nil)

// Dashboard renders session snapshots and maps keys onto Controls.
type Dashboard struct {
	app      *tview.Application
	controls Controls
	logger   zerolog.Logger
	onQuit   func()

	sessionPanel   *tview.TextView
	telemetryPanel *tview.TextView
	actionPanel    *tview.TextView
	logView        *tview.TextView
	root           *tview.Flex

	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewLogPanel creates the log pane. It is an io.Writer so it can be handed to
// the logger before the dashboard exists.
func NewLogPanel() *tview.TextView {
	// Don't use SetChangedFunc with app.Draw() here: log lines can still
	// arrive after the app has stopped.
	panel := tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(false).
		SetMaxLines(200)
	panel.SetBorder(true).SetTitle(" Logs ")
	return panel
}

// NewDashboard builds the widgets. onQuit runs when the swimmer quits.
func NewDashboard(app *tview.Application, controls Controls, logPanel *tview.TextView, logger zerolog.Logger, onQuit func()) *Dashboard {
	if app == nil {
		panic("Dashboard: app cannot be nil")
	}
	if controls == nil {
		panic("Dashboard: controls cannot be nil")
	}
	if logPanel == nil {
		logPanel = NewLogPanel()
	}
	d := &Dashboard{
		app:      app,
		controls: controls,
		logger:   logger.With().Str("component", "Dashboard").Logger(),
		onQuit:   onQuit,
		logView:  logPanel,
		doneChan: make(chan struct{}),
	}
	d.initWidgets()
	d.setupKeyboardHandlers()
	d.render(controls.Snapshot())
	return d
}

func (d *Dashboard) initWidgets() {
	d.sessionPanel = tview.NewTextView().SetDynamicColors(true)
	d.sessionPanel.SetBorder(true).SetTitle(" Session ")

	d.telemetryPanel = tview.NewTextView().SetDynamicColors(true)
	d.telemetryPanel.SetBorder(true).SetTitle(" Telemetry ")

	d.actionPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	d.actionPanel.SetBorder(true)

	help := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]Enter[white] Action  |  [yellow]S[white] Stroke  |  [yellow]X[white] Stop  |  [yellow]Q[white] Quit")

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.sessionPanel, 0, 3, false).
		AddItem(d.telemetryPanel, 0, 2, false).
		AddItem(d.actionPanel, 3, 0, true).
		AddItem(help, 1, 0, false)

	d.root = tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(d.logView, 0, 1, false)
}

func (d *Dashboard) setupKeyboardHandlers() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			d.primary()
			return nil
		case tcell.KeyEscape:
			d.quit()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ' ':
				d.primary()
			case 's', 'S':
				d.controls.IngestStrokes(1)
			case 'x', 'X':
				if d.controls.StopSession() {
					d.logger.Info().Msg("session stopped from the watch")
				}
			case 'q', 'Q':
				d.quit()
			default:
				return event
			}
			return nil
		}
		return event
	})
}

func (d *Dashboard) primary() {
	snap := d.controls.Snapshot()
	switch PrimaryAction(snap) {
	case ActionStartSession:
		d.controls.StartSession()
	case ActionShowCountdown:
		d.controls.ShowCountdown()
	case ActionComplete:
		outcome := d.controls.CompleteCurrentExercise()
		d.logger.Debug().Stringer("outcome", outcome).Msg("exercise action")
	}
}

func (d *Dashboard) quit() {
	if d.onQuit != nil {
		d.onQuit()
	}
}

// Run shows the dashboard and blocks until Stop.
func (d *Dashboard) Run() error {
	snapshots := make(chan session.Snapshot, 1)
	unregister := d.controls.ListenToSnapshots(snapshots)
	d.wg.Add(1)
	go_func_utils.SafeGo(d.logger, func() {
		defer d.wg.Done()
		defer unregister()
		for {
			select {
			case <-d.doneChan:
				return
			case snap := <-snapshots:
				d.app.QueueUpdateDraw(func() { d.render(snap) })
			}
		}
	})

	d.app.SetRoot(d.root, true)
	d.app.SetFocus(d.actionPanel)
	return d.app.Run()
}

func (d *Dashboard) Stop() {
	d.shutdownOnce.Do(func() {
		close(d.doneChan)
		d.app.Stop()
		d.wg.Wait()
	})
}

func (d *Dashboard) render(s session.Snapshot) {
	d.sessionPanel.SetText(renderSession(s))
	d.telemetryPanel.SetText(renderTelemetry(s))

	label := ActionLabel(s)
	switch {
	case label == "":
		d.actionPanel.SetText("[gray]-[white]")
	case PrimaryAction(s) == ActionNone:
		d.actionPanel.SetText("[gray]" + label + "[white]")
	default:
		d.actionPanel.SetText("[green]" + label + "[white]")
	}
}
