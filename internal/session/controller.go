// Package session runs a casting session: it loads playlist entries onto a
// render, tracks transport state, and reacts to user commands.
package session

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dlnacast.app/dlnacast/internal/avtransport"
	"dlnacast.app/dlnacast/internal/domain"
	"dlnacast.app/dlnacast/internal/playlist"
)

// State is the controller's lifecycle phase. It is derived from commands and
// transport polls, never written from outside the run loop.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateLoading   State = "loading"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateAdvancing State = "advancing"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Terminal reports whether the session is over.
func (s State) Terminal() bool { return s == StateStopped || s == StateFailed }

// CommandKind enumerates user commands. Commands are applied strictly in
// arrival order by the single run loop goroutine.
type CommandKind int

const (
	CmdTogglePlayPause CommandKind = iota
	CmdStop
	CmdNext
	CmdPrevious
	CmdSelectEntry
	CmdToggleLoop
	CmdRefreshStatus
	CmdQuit
)

type Command struct {
	Kind  CommandKind
	Index int // CmdSelectEntry only
}

// Snapshot is the observable session state handed to UIs. Values are copies;
// a snapshot never changes after publication.
type Snapshot struct {
	SessionID  string
	State      State
	RenderName string
	EntryIndex int
	EntryName  string
	EntryCount int
	Loop       bool
	Elapsed    time.Duration
	Duration   time.Duration
	Message    string
	Err        error
}

// Transport is the AVTransport surface the controller drives.
// *avtransport.Client satisfies it.
type Transport interface {
	SetAVTransportURI(ctx context.Context, mediaURL, metadata string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	TransportInfo(ctx context.Context) (domain.TransportState, string, error)
	PositionInfo(ctx context.Context) (elapsed, duration time.Duration, err error)
}

// MediaServer is the per-entry streaming server surface.
// *streamserver.Server satisfies it.
type MediaServer interface {
	Start() error
	Stop(ctx context.Context) error
	VideoURL() string
	SubtitleURL() string
	VideoType() string
	SubtitleType() string
}

// ServerFactory builds a media server for one playlist entry.
type ServerFactory func(entry playlist.Entry) MediaServer

const (
	defaultPollInterval = time.Second

	// Consecutive poll failures tolerated before the session is declared
	// failed. Renderers drop the odd status call while buffering.
	maxPollFailures = 3
)

// Controller owns a playback session. All transport and server interaction
// happens on the Run goroutine; other goroutines talk to it through Send and
// read Snapshots.
type Controller struct {
	id        string
	render    domain.Render
	transport Transport
	newServer ServerFactory
	list      *playlist.Playlist
	logger    *slog.Logger
	pollEvery time.Duration
	commands  chan Command
	snapshots chan Snapshot
	finalErr  error

	// run-loop state, untouched outside Run
	state        State
	server       MediaServer
	playingSeen  bool
	pollFailures int
	elapsed      time.Duration
	duration     time.Duration
	message      string
}

type Option func(*Controller)

// WithPollInterval overrides the status poll cadence, for tests.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollEvery = d
		}
	}
}

func NewController(render domain.Render, transport Transport, factory ServerFactory, list *playlist.Playlist, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Controller{
		id:        uuid.NewString(),
		render:    render,
		transport: transport,
		newServer: factory,
		list:      list,
		logger:    logger.With(slog.String("render", render.Name)),
		pollEvery: defaultPollInterval,
		commands:  make(chan Command, 16),
		snapshots: make(chan Snapshot, 1),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID is the session's unique identifier, used in logs.
func (c *Controller) ID() string { return c.id }

// Send queues a command for the run loop. Commands sent after the session
// reached a terminal state are dropped.
func (c *Controller) Send(cmd Command) {
	select {
	case c.commands <- cmd:
	default:
		// A full queue means the loop is gone or wedged; dropping beats
		// blocking the UI goroutine.
	}
}

// Snapshots delivers state updates. The channel holds only the latest
// snapshot: slow consumers see the freshest state, never a backlog.
func (c *Controller) Snapshots() <-chan Snapshot { return c.snapshots }

// Err returns the fatal error after Run finished, nil on clean stop.
func (c *Controller) Err() error { return c.finalErr }

// Run drives the session until the playlist ends, a fatal error occurs, the
// user quits, or ctx is canceled. It is the only goroutine touching the
// transport and the media server.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("session starting",
		slog.String("session_id", c.id),
		slog.Int("entries", c.list.Len()))

	if err := c.loadCurrent(ctx); err != nil {
		c.fail(err)
		c.publish()
		return c.finalErr
	}
	c.publish()

	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for !c.state.Terminal() {
		select {
		case <-ctx.Done():
			// Shutdown is user intent, not a failure. Best-effort stop on
			// the render with a fresh context since ctx is already gone.
			stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			c.stopSession(stopCtx)
			cancel()
		case cmd := <-c.commands:
			c.apply(ctx, cmd)
		case <-ticker.C:
			c.poll(ctx)
		}
		c.publish()
	}

	c.logger.Info("session finished",
		slog.String("session_id", c.id),
		slog.String("state", string(c.state)))
	return c.finalErr
}

func (c *Controller) apply(ctx context.Context, cmd Command) {
	c.message = ""
	switch cmd.Kind {
	case CmdTogglePlayPause:
		c.togglePlayPause(ctx)
	case CmdStop, CmdQuit:
		c.stopSession(ctx)
	case CmdNext:
		c.jump(ctx, c.list.Next)
	case CmdPrevious:
		c.jump(ctx, c.list.Previous)
	case CmdSelectEntry:
		c.selectEntry(ctx, cmd.Index)
	case CmdToggleLoop:
		c.list.ToggleLoop()
	case CmdRefreshStatus:
		c.poll(ctx)
	}
}

// togglePlayPause pauses a playing session and resumes a paused one. In any
// other phase it is a no-op; toggling a stopped session must not restart it.
func (c *Controller) togglePlayPause(ctx context.Context) {
	switch c.state {
	case StatePlaying:
		if err := c.transport.Pause(ctx); err != nil {
			c.controlFailure("pause", err)
			return
		}
		c.state = StatePaused
	case StatePaused:
		if err := c.transport.Play(ctx); err != nil {
			c.controlFailure("resume", err)
			return
		}
		c.state = StatePlaying
	}
}

func (c *Controller) stopSession(ctx context.Context) {
	if err := c.transport.Stop(ctx); err != nil {
		c.logger.Warn("stop command failed, shutting down anyway",
			slog.String("error", err.Error()))
	}
	c.teardown(ctx)
	c.state = StateStopped
}

// jump moves the playlist cursor via move (Next or Previous) and loads the
// entry it lands on. A boundary no-op leaves playback running.
func (c *Controller) jump(ctx context.Context, move func() bool) {
	if !move() {
		c.message = "end of playlist"
		return
	}
	if err := c.loadCurrent(ctx); err != nil {
		c.fail(err)
	}
}

func (c *Controller) selectEntry(ctx context.Context, index int) {
	if err := c.list.Select(index); err != nil {
		c.message = err.Error()
		return
	}
	if err := c.loadCurrent(ctx); err != nil {
		c.fail(err)
	}
}

// loadCurrent serves the playlist's current entry and starts it on the
// render. The media server must be up and bound before any control call so
// a bind failure aborts without disturbing the device.
func (c *Controller) loadCurrent(ctx context.Context) error {
	c.state = StatePreparing
	c.teardown(ctx)

	entry := c.list.Current()
	c.logger.Info("loading entry",
		slog.Int("index", c.list.Index()),
		slog.String("video", entry.Video))

	server := c.newServer(entry)
	if err := server.Start(); err != nil {
		return err
	}
	c.server = server

	c.state = StateLoading
	metadata := avtransport.BuildMetadata(avtransport.MediaItem{
		VideoURL:     server.VideoURL(),
		VideoType:    server.VideoType(),
		SubtitleURL:  server.SubtitleURL(),
		SubtitleType: server.SubtitleType(),
	})
	if err := c.transport.SetAVTransportURI(ctx, server.VideoURL(), metadata); err != nil {
		c.teardown(ctx)
		return err
	}
	if err := c.transport.Play(ctx); err != nil {
		c.teardown(ctx)
		return err
	}

	c.state = StatePlaying
	c.playingSeen = false
	c.pollFailures = 0
	c.elapsed = 0
	c.duration = 0
	return nil
}

// poll refreshes transport and position state. Failures are tolerated up to
// maxPollFailures in a row; a stop observed after playback actually started
// means the item ended and the playlist advances.
func (c *Controller) poll(ctx context.Context) {
	if c.state != StatePlaying && c.state != StatePaused {
		return
	}

	state, status, err := c.transport.TransportInfo(ctx)
	if err != nil {
		c.pollFailures++
		c.logger.Warn("status poll failed",
			slog.Int("consecutive", c.pollFailures),
			slog.String("error", err.Error()))
		if c.pollFailures >= maxPollFailures {
			c.fail(err)
		}
		return
	}
	c.pollFailures = 0

	if elapsed, duration, err := c.transport.PositionInfo(ctx); err == nil {
		c.elapsed = elapsed
		c.duration = duration
	}

	switch state {
	case domain.TransportPlaying:
		c.playingSeen = true
		c.state = StatePlaying
	case domain.TransportPaused:
		c.playingSeen = true
		c.state = StatePaused
	case domain.TransportTransitioning:
		// Buffering; keep the current phase.
	case domain.TransportError:
		c.fail(&domain.ControlCommandError{
			Action:       "GetTransportInfo",
			Code:         domain.CodeDeviceFault,
			FaultMessage: "render reported error state " + status,
		})
	default:
		if state.Ended() && c.playingSeen {
			c.advance(ctx)
		}
	}
}

// advance moves to the next entry when the current one finishes on its own.
// Past the last entry (loop off) the session ends cleanly.
func (c *Controller) advance(ctx context.Context) {
	c.state = StateAdvancing
	if !c.list.Next() {
		c.logger.Info("playlist finished")
		c.teardown(ctx)
		c.state = StateStopped
		return
	}
	if err := c.loadCurrent(ctx); err != nil {
		c.fail(err)
	}
}

// controlFailure handles a failed pause/resume. Once playback is running
// these are recoverable regardless of cause: the failure surfaces as a
// status message and the session keeps polling. Only the consecutive poll
// failure counter ends a session.
func (c *Controller) controlFailure(op string, err error) {
	c.message = err.Error()
	c.logger.Warn("command failed",
		slog.String("op", op),
		slog.String("error", err.Error()))
}

func (c *Controller) fail(err error) {
	c.logger.Error("session failed", slog.String("error", err.Error()))
	c.teardown(context.Background())
	c.state = StateFailed
	c.finalErr = err
}

func (c *Controller) teardown(ctx context.Context) {
	if c.server == nil {
		return
	}
	if err := c.server.Stop(ctx); err != nil {
		c.logger.Debug("media server shutdown", slog.String("error", err.Error()))
	}
	c.server = nil
}

// publish replaces any unread snapshot with the current state.
func (c *Controller) publish() {
	snap := Snapshot{
		SessionID:  c.id,
		State:      c.state,
		RenderName: c.render.Name,
		EntryIndex: c.list.Index(),
		EntryName:  c.list.Current().Name(),
		EntryCount: c.list.Len(),
		Loop:       c.list.Loop(),
		Elapsed:    c.elapsed,
		Duration:   c.duration,
		Message:    c.message,
		Err:        c.finalErr,
	}
	for {
		select {
		case c.snapshots <- snap:
			return
		default:
			select {
			case <-c.snapshots:
			default:
			}
		}
	}
}
