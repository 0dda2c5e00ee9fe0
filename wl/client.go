package wl

import (
	"net"
	"os"

	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingGlobal is returned by Resolve when the compositor does not
	// advertise a global this client cannot work without.
	ErrMissingGlobal = errors.New("required global not advertised")
	// ErrSerialMismatch is returned when a configure is acknowledged with a
	// serial other than the one last delivered.
	ErrSerialMismatch = errors.New("configure serial mismatch")
	// ErrWindowClosed is returned for window requests after close.
	ErrWindowClosed = errors.New("window is closed")
)

// Client is the connection to one compositor and the globals bound on it.
type Client struct {
	ctx *wlp.Context
	log zerolog.Logger

	registry *wlp.Registry
	bound    map[string]*global
	resolved bool

	compositor  *wlp.Compositor
	shm         *wlp.Shm
	wmBase      *wlp.XdgWmBase
	decorations *wlp.ZxdgDecorationManagerV1
	seat        *wlp.Seat

	formats          []uint32
	warnedFormat     bool
	seatCapabilities uint32
	seatName         string

	window *Window
}

// Connect opens the compositor socket named by cfg. An inherited
// WAYLAND_SOCKET is used as is and removed from the environment so child
// processes do not reuse it.
func Connect(cfg *Config, log zerolog.Logger) (*Client, error) {
	fd, err := cfg.SocketFD()
	if err != nil {
		return nil, err
	}
	if fd >= 0 {
		conn, err := fileConn(fd)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to use WAYLAND_SOCKET %d", fd)
		}
		os.Unsetenv("WAYLAND_SOCKET")
		log.Info().Int("fd", fd).Msg("connected to compositor")
		return NewClient(conn, log), nil
	}

	path, err := cfg.SocketPath()
	if err != nil {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve unix socket address (%s)", path)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to wayland server at (%s)", path)
	}
	log.Info().Str("socket", path).Msg("connected to compositor")
	return NewClient(conn, log), nil
}

func fileConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "wayland-socket")
	if f == nil {
		return nil, errors.New("invalid file descriptor")
	}
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, errors.Errorf("descriptor is a %T, not a unix socket", c)
	}
	return uc, nil
}

// NewClient wraps an established connection.
func NewClient(conn wlp.Conn, log zerolog.Logger) *Client {
	return &Client{
		ctx:   wlp.NewContext(conn, log),
		log:   log,
		bound: make(map[string]*global),
	}
}

// Roundtrip blocks until all pending requests are processed by the
// compositor.
func (c *Client) Roundtrip() error {
	return c.ctx.Roundtrip()
}

// Dispatch reads and delivers one batch of events.
func (c *Client) Dispatch() error {
	return c.ctx.Dispatch()
}

// Err returns the fatal connection error, if any.
func (c *Client) Err() error {
	return c.ctx.Err
}

// Close reclaims the window buffers and disconnects. No requests are sent,
// the compositor cleans up every object of the client on disconnect.
func (c *Client) Close() error {
	var err error
	if c.window != nil {
		err = c.window.arena.close()
	}
	if cerr := c.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

// Ping implements wlp.XdgWmBaseListener
func (c *Client) Ping(serial uint32) {
	if err := c.wmBase.Pong(serial); err != nil {
		c.ctx.Abort(errors.Wrap(err, "unable to answer ping"))
	}
}

// Format implements wlp.ShmListener
func (c *Client) Format(format uint32) {
	c.log.Trace().Uint32("format", format).Msg("shm format")
	c.formats = append(c.formats, format)
}

// Formats returns the shm formats advertised so far.
func (c *Client) Formats() []uint32 {
	return c.formats
}

// Capabilities implements wlp.SeatListener
func (c *Client) Capabilities(capabilities uint32) {
	c.seatCapabilities = capabilities
	c.log.Debug().
		Bool("pointer", capabilities&wlp.SeatCapabilityPointer != 0).
		Bool("keyboard", capabilities&wlp.SeatCapabilityKeyboard != 0).
		Bool("touch", capabilities&wlp.SeatCapabilityTouch != 0).
		Msg("seat capabilities")
}

// Name implements wlp.SeatListener
func (c *Client) Name(name string) {
	c.seatName = name
	c.log.Debug().Str("seat", name).Msg("seat name")
}

// Seat returns the seat name and capability mask, if a seat was bound.
func (c *Client) Seat() (string, uint32, bool) {
	return c.seatName, c.seatCapabilities, c.seat != nil
}
