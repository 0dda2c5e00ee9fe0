package wl

import (
	"github.com/SamuelDevz/WaylandClientWindow/ticker"
	"github.com/SamuelDevz/WaylandClientWindow/video"
	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600
	DefaultTitle  = "SSD Window (Wayland)"
)

// Background is the color every buffer is filled with.
var Background = video.ColorARGB(0xFF282828)

// State is the lifecycle stage of a window.
type State int

const (
	StateCreated State = iota
	StateConfiguring
	StateMapped
	StateClosed
)

var stateNames = [...]string{"created", "configuring", "mapped", "closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// surfaceCb receives xdg_surface events, whose configure would clash with
// the toplevel configure implemented by Window.
type surfaceCb struct {
	w *Window
}

func (scb *surfaceCb) Configure(serial uint32) {
	if err := scb.w.configure(serial); err != nil {
		scb.w.c.ctx.Abort(errors.Wrapf(err, "configure %d", serial))
	}
}

// Window is a toplevel surface drawn from shared memory buffers.
type Window struct {
	c   *Client
	log zerolog.Logger

	surface    *wlp.Surface
	xdgSurface *wlp.XdgSurface
	toplevel   *wlp.XdgToplevel
	decoration *decoration
	scb        *surfaceCb

	state   State
	running bool
	width   int32
	height  int32

	// size latched from the last toplevel configure, applied by the
	// xdg_surface configure that ends the sequence
	pendingWidth  int32
	pendingHeight int32
	serial        uint32
	unacked       bool

	arena arena
	clock ticker.Stopwatch
}

// CreateWindow creates the single toplevel of this client. The window has
// no content until the compositor sends its first configure.
func (c *Client) CreateWindow(title string) (*Window, error) {
	if !c.resolved {
		return nil, errors.New("registry has not been resolved")
	}
	if c.window != nil {
		return nil, errors.New("window already created")
	}
	w := &Window{
		c:       c,
		log:     c.log.With().Str("title", title).Logger(),
		running: true,
		width:   DefaultWidth,
		height:  DefaultHeight,
		clock:   ticker.NewStopwatch(),
	}
	w.scb = &surfaceCb{w: w}
	w.arena = arena{log: w.log, abort: c.ctx.Abort}

	var err error
	w.surface, err = c.compositor.CreateSurface(w)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create surface")
	}
	w.xdgSurface, err = c.wmBase.GetXdgSurface(w.scb, w.surface)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create xdg_surface")
	}
	w.toplevel, err = w.xdgSurface.GetToplevel(w)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create xdg_toplevel")
	}
	if err := w.toplevel.SetTitle(title); err != nil {
		return nil, errors.Wrap(err, "unable to set title")
	}
	w.decoration, err = negotiateDecoration(c, w.toplevel, w.log)
	if err != nil {
		return nil, err
	}
	// an empty commit asks the compositor for the first configure
	if err := w.surface.Commit(); err != nil {
		return nil, errors.Wrap(err, "unable to commit surface")
	}
	c.window = w
	w.log.Debug().Msg("window created")
	return w, nil
}

// State returns the lifecycle stage.
func (w *Window) State() State {
	return w.state
}

// Running is false once the compositor asked the window to close.
func (w *Window) Running() bool {
	return w.running
}

// Size returns the current window geometry.
func (w *Window) Size() (int32, int32) {
	return w.width, w.height
}

// Buffer returns the buffer last committed, or nil before the first
// configure.
func (w *Window) Buffer() *Buffer {
	return w.arena.current
}

// DecorationMode returns the mode the compositor chose, 0 if it did not
// answer or no decoration manager exists.
func (w *Window) DecorationMode() uint32 {
	if w.decoration == nil {
		return 0
	}
	return w.decoration.mode
}

// AckConfigure acknowledges the configure carrying serial. Only the serial
// of the configure being handled is accepted, and only once.
func (w *Window) AckConfigure(serial uint32) error {
	if w.state == StateClosed {
		return ErrWindowClosed
	}
	if !w.unacked {
		return errors.Wrapf(ErrSerialMismatch, "ack %d without a pending configure", serial)
	}
	if serial != w.serial {
		return errors.Wrapf(ErrSerialMismatch, "ack %d, configure was %d", serial, w.serial)
	}
	w.unacked = false
	return errors.Wrap(w.xdgSurface.AckConfigure(serial), "unable to ack configure")
}

func (w *Window) configure(serial uint32) error {
	if w.state == StateClosed {
		return ErrWindowClosed
	}
	w.serial, w.unacked = serial, true
	if w.state == StateCreated {
		w.state = StateConfiguring
	}
	if err := w.AckConfigure(serial); err != nil {
		return err
	}

	width, height := w.pendingWidth, w.pendingHeight
	w.pendingWidth, w.pendingHeight = 0, 0
	resize := width > 0 && height > 0 && (width != w.width || height != w.height)
	if resize {
		w.width, w.height = width, height
	}
	if err := w.present(resize); err != nil {
		return err
	}

	switch {
	case w.state == StateConfiguring:
		w.state = StateMapped
		w.log.Info().Int32("width", w.width).Int32("height", w.height).Uint32("ms", w.clock.GetAsMS()).Msg("window mapped")
	case resize:
		w.log.Info().Int32("width", w.width).Int32("height", w.height).Msg("window resized")
	}
	return nil
}

// present commits a buffer of the current geometry. A new buffer is made
// when the size changed or none exists; an idle buffer is redrawn in place
// and a busy one is attached again unchanged.
func (w *Window) present(realloc bool) error {
	b := w.arena.current
	fresh := b == nil || realloc
	if fresh {
		var err error
		if b, err = w.c.CreateBuffer(w.width, w.height); err != nil {
			return err
		}
		b.Draw(Background)
	} else if !b.busy {
		b.Draw(Background)
	}

	if err := w.surface.Attach(b.Buffer, 0, 0); err != nil {
		return errors.Wrap(err, "unable to attach buffer")
	}
	if err := w.surface.DamageBuffer(0, 0, b.Width, b.Height); err != nil {
		return errors.Wrap(err, "unable to damage surface")
	}
	if err := w.surface.Commit(); err != nil {
		return errors.Wrap(err, "unable to commit surface")
	}
	b.busy = true
	if fresh {
		return w.arena.promote(b)
	}
	return nil
}

// Configure implements wlp.XdgToplevelListener
func (w *Window) Configure(width int32, height int32, states []uint32) {
	w.log.Debug().Int32("width", width).Int32("height", height).Interface("states", states).Msg("toplevel configure")
	w.pendingWidth, w.pendingHeight = width, height
}

// ConfigureBounds implements wlp.XdgToplevelBoundsListener
func (w *Window) ConfigureBounds(width int32, height int32) {
	w.log.Debug().Int32("width", width).Int32("height", height).Msg("toplevel bounds")
}

// Close implements wlp.XdgToplevelListener. The window stops running and
// the connection refuses any further request.
func (w *Window) Close() {
	w.log.Info().Stringer("state", w.state).Msg("close requested")
	w.state = StateClosed
	w.running = false
	w.c.ctx.Halt()
}

// Enter implements wlp.SurfaceListener
func (w *Window) Enter(output uint32) {
	w.log.Trace().Uint32("output", output).Msg("entered output")
}

// Leave implements wlp.SurfaceListener
func (w *Window) Leave(output uint32) {
	w.log.Trace().Uint32("output", output).Msg("left output")
}
