package wl

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/SamuelDevz/WaylandClientWindow/wl/wltest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWindow resolves globals and creates the window, consuming the setup
// requests up to the initial empty commit.
func newWindow(t *testing.T, globals ...wltest.Global) (*Client, *Window, *wltest.Server) {
	c, srv, err := resolve(t, globals...)
	require.NoError(t, err)
	w, err := c.CreateWindow(DefaultTitle)
	require.NoError(t, err)

	srv.Expect("wl_compositor", "create_surface")
	srv.Expect("xdg_wm_base", "get_xdg_surface")
	srv.Expect("xdg_surface", "get_toplevel")
	m := srv.Expect("xdg_toplevel", "set_title")
	require.Equal(t, DefaultTitle, m.Str(0))
	if c.decorations != nil {
		srv.Expect("zxdg_decoration_manager_v1", "get_toplevel_decoration")
		m = srv.Expect("zxdg_toplevel_decoration_v1", "set_mode")
		require.Equal(t, uint32(wlp.ZxdgToplevelDecorationV1ModeServerSide), m.Uint(0))
	}
	m = srv.Expect("wl_surface", "commit")
	require.Equal(t, w.surface.ID(), m.Sender)
	return c, w, srv
}

// configure sends a configure sequence, dispatches it and checks the ack.
func configure(t *testing.T, c *Client, w *Window, srv *wltest.Server, width, height int32) uint32 {
	t.Helper()
	serial := srv.NextSerial()
	srv.Send(srv.Object("xdg_toplevel"), 0, width, height, []uint32{wlp.XdgToplevelStateActivated})
	srv.Send(srv.Object("xdg_surface"), 0, serial)
	dispatchUntil(t, c, func() bool { return w.serial == serial && !w.unacked })
	m := srv.Expect("xdg_surface", "ack_configure")
	require.Equal(t, serial, m.Uint(0))
	return serial
}

// expectBuffer consumes the requests creating one buffer and returns the
// buffer id with the pool memory as the compositor sees it.
func expectBuffer(t *testing.T, srv *wltest.Server, width, height int32) (uint32, []byte) {
	t.Helper()
	pool := srv.Expect("wl_shm", "create_pool")
	require.Equal(t, width*height*4, pool.Int(1))
	mem := srv.MapPool(pool)
	m := srv.Expect("wl_shm_pool", "create_buffer")
	assert.Equal(t, int32(0), m.Int(1), "offset")
	assert.Equal(t, width, m.Int(2))
	assert.Equal(t, height, m.Int(3))
	assert.Equal(t, width*4, m.Int(4), "stride")
	assert.Equal(t, uint32(wlp.ShmFormatArgb8888), m.Uint(5))
	srv.Expect("wl_shm_pool", "destroy")
	return m.Uint(0), mem
}

// expectFrame consumes attach, damage and commit of buffer.
func expectFrame(t *testing.T, srv *wltest.Server, buffer uint32, width, height int32) {
	t.Helper()
	m := srv.Expect("wl_surface", "attach")
	assert.Equal(t, buffer, m.Uint(0))
	assert.Equal(t, int32(0), m.Int(1))
	assert.Equal(t, int32(0), m.Int(2))
	m = srv.Expect("wl_surface", "damage_buffer")
	assert.Equal(t, []int32{0, 0, width, height}, []int32{m.Int(0), m.Int(1), m.Int(2), m.Int(3)})
	srv.Expect("wl_surface", "commit")
}

func filled(size int) []byte {
	b := make([]byte, size)
	for i := 0; i < size; i += 4 {
		binary.LittleEndian.PutUint32(b[i:], 0xFF282828)
	}
	return b
}

func TestWindowEndToEnd(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	assert.Equal(t, StateCreated, w.State())
	assert.Nil(t, w.Buffer())

	configure(t, c, w, srv, 800, 600)
	id, mem := expectBuffer(t, srv, 800, 600)
	expectFrame(t, srv, id, 800, 600)

	assert.Equal(t, StateMapped, w.State())
	assert.Len(t, mem, 1920000)
	assert.True(t, bytes.Equal(filled(1920000), mem), "every pixel is 0xFF282828")
	b := w.Buffer()
	require.NotNil(t, b)
	assert.Equal(t, [3]int32{800, 600, 3200}, [3]int32{b.Width, b.Height, b.Stride})
	assert.Equal(t, 1920000, b.Size())
	assert.True(t, b.Busy())

	srv.Send(srv.Object("zxdg_toplevel_decoration_v1"), 0, uint32(wlp.ZxdgToplevelDecorationV1ModeServerSide))
	srv.Send(srv.Object("xdg_toplevel"), 1)
	require.NoError(t, c.Run(w))

	assert.False(t, w.Running())
	assert.Equal(t, StateClosed, w.State())
	assert.Equal(t, uint32(wlp.ZxdgToplevelDecorationV1ModeServerSide), w.DecorationMode())
	srv.Idle(100 * time.Millisecond)

	require.NoError(t, c.Close())
	assert.Nil(t, b.Pixels)
	assert.Zero(t, w.arena.live())
}

func TestFirstConfigureWithoutSizeUsesDefault(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 0, 0)
	id, _ := expectBuffer(t, srv, DefaultWidth, DefaultHeight)
	expectFrame(t, srv, id, DefaultWidth, DefaultHeight)
	assert.Equal(t, StateMapped, w.State())
}

func TestConfigureWithoutSizeKeepsBuffer(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 640, 480)
	id, _ := expectBuffer(t, srv, 640, 480)
	expectFrame(t, srv, id, 640, 480)
	b := w.Buffer()

	configure(t, c, w, srv, 0, -5)
	expectFrame(t, srv, id, 640, 480)
	width, height := w.Size()
	assert.Equal(t, [2]int32{640, 480}, [2]int32{width, height})
	assert.Same(t, b, w.Buffer())

	configure(t, c, w, srv, 640, 480)
	expectFrame(t, srv, id, 640, 480)
	assert.Same(t, b, w.Buffer(), "same size does not reallocate")
	assert.Equal(t, StateMapped, w.State())
	srv.Idle(50 * time.Millisecond)
}

func TestIdleBufferIsRedrawn(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 4, 4)
	id, mem := expectBuffer(t, srv, 4, 4)
	expectFrame(t, srv, id, 4, 4)
	b := w.Buffer()

	srv.Send(id, 0)
	dispatchUntil(t, c, func() bool { return !b.Busy() })
	copy(b.file.data, make([]byte, 16))

	configure(t, c, w, srv, 0, 0)
	expectFrame(t, srv, id, 4, 4)
	assert.True(t, bytes.Equal(filled(64), mem))
	assert.True(t, b.Busy())
}

func TestResizeRetainsOldBufferUntilRelease(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 800, 600)
	first, _ := expectBuffer(t, srv, 800, 600)
	expectFrame(t, srv, first, 800, 600)
	old := w.Buffer()

	configure(t, c, w, srv, 1024, 768)
	second, mem := expectBuffer(t, srv, 1024, 768)
	expectFrame(t, srv, second, 1024, 768)
	assert.True(t, bytes.Equal(filled(1024*768*4), mem))

	width, height := w.Size()
	assert.Equal(t, [2]int32{1024, 768}, [2]int32{width, height})
	assert.Equal(t, second, w.Buffer().ID())
	assert.Same(t, old, w.arena.retired)
	assert.NotNil(t, old.Pixels, "superseded buffer stays mapped until released")
	assert.Equal(t, 2, w.arena.live())
	srv.Idle(50 * time.Millisecond)

	srv.Send(first, 0)
	dispatchUntil(t, c, func() bool { return w.arena.retired == nil })
	m := srv.Expect("wl_buffer", "destroy")
	assert.Equal(t, first, m.Sender)
	assert.Nil(t, old.Pixels)
	assert.Equal(t, 1, w.arena.live())
}

func TestReleasedBufferIsReclaimedOnResize(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 100, 100)
	first, _ := expectBuffer(t, srv, 100, 100)
	expectFrame(t, srv, first, 100, 100)

	srv.Send(first, 0)
	dispatchUntil(t, c, func() bool { return !w.Buffer().Busy() })

	configure(t, c, w, srv, 200, 100)
	second, _ := expectBuffer(t, srv, 200, 100)
	expectFrame(t, srv, second, 200, 100)
	m := srv.Expect("wl_buffer", "destroy")
	assert.Equal(t, first, m.Sender)
	assert.Nil(t, w.arena.retired)
}

func TestRapidResizeReclaimsUnreleasedBuffer(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 100, 100)
	first, _ := expectBuffer(t, srv, 100, 100)
	expectFrame(t, srv, first, 100, 100)

	configure(t, c, w, srv, 200, 200)
	second, _ := expectBuffer(t, srv, 200, 200)
	expectFrame(t, srv, second, 200, 200)

	configure(t, c, w, srv, 300, 300)
	third, _ := expectBuffer(t, srv, 300, 300)
	expectFrame(t, srv, third, 300, 300)
	assert.Equal(t, second, w.arena.retired.ID())
	assert.Equal(t, third, w.arena.current.ID())
	assert.Equal(t, 2, w.arena.live())

	// the compositor releases the first buffer before it sees the destroy
	srv.Send(first, 0)
	m := srv.Expect("wl_buffer", "destroy")
	assert.Equal(t, first, m.Sender)

	srv.Send(second, 0)
	dispatchUntil(t, c, func() bool { return w.arena.retired == nil })
	m = srv.Expect("wl_buffer", "destroy")
	assert.Equal(t, second, m.Sender)
	assert.NoError(t, c.Err())
}

func TestAckConfigureSerial(t *testing.T) {
	_, w, srv := newWindow(t, desktop...)

	err := w.AckConfigure(5)
	assert.Equal(t, ErrSerialMismatch, errors.Cause(err), "no configure pending")

	w.serial, w.unacked = 7, true
	err = w.AckConfigure(8)
	assert.Equal(t, ErrSerialMismatch, errors.Cause(err))

	require.NoError(t, w.AckConfigure(7))
	m := srv.Expect("xdg_surface", "ack_configure")
	assert.Equal(t, uint32(7), m.Uint(0))

	err = w.AckConfigure(7)
	assert.Equal(t, ErrSerialMismatch, errors.Cause(err), "a serial is acked once")
	srv.Idle(50 * time.Millisecond)
}

func TestCloseStopsRequests(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	configure(t, c, w, srv, 320, 200)
	id, _ := expectBuffer(t, srv, 320, 200)
	expectFrame(t, srv, id, 320, 200)

	srv.Send(srv.Object("xdg_toplevel"), 1)
	// events after close are never handled
	srv.Send(srv.Object("xdg_toplevel"), 0, int32(640), int32(480), []uint32{})
	srv.Send(srv.Object("xdg_surface"), 0, srv.NextSerial())
	srv.Send(srv.Object("xdg_wm_base"), 0, srv.NextSerial())
	require.NoError(t, c.Run(w))

	assert.Equal(t, StateClosed, w.State())
	assert.Equal(t, ErrWindowClosed, errors.Cause(w.AckConfigure(w.serial)))
	assert.Equal(t, ErrWindowClosed, errors.Cause(w.configure(1)))
	assert.Equal(t, wlp.ErrHalted, errors.Cause(w.surface.Commit()))
	require.NoError(t, c.Dispatch())
	width, _ := w.Size()
	assert.Equal(t, int32(320), width)
	srv.Idle(100 * time.Millisecond)
}

func TestCloseBeforeConfigure(t *testing.T) {
	c, w, srv := newWindow(t, desktop[:3]...)
	assert.Zero(t, w.DecorationMode())
	srv.Send(srv.Object("xdg_toplevel"), 1)
	require.NoError(t, c.Run(w))
	assert.Equal(t, StateClosed, w.State())
	assert.Nil(t, w.Buffer())
	srv.Idle(50 * time.Millisecond)
	assert.NoError(t, c.Close())
}

func TestRunFailsOnProtocolError(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	srv.Send(1, 0, w.surface.ID(), uint32(wlp.DisplayErrorImplementation), "surface exploded")
	err := c.Run(w)
	require.Error(t, err)
	var perr *wlp.ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, wlp.SurfaceInterface, perr.Interface)
	assert.True(t, w.Running())
}

func TestRunFailsWhenCompositorHangsUp(t *testing.T) {
	c, w, srv := newWindow(t, desktop...)
	srv.Close()
	err := c.Run(w)
	require.Error(t, err)
	assert.Equal(t, io.EOF, errors.Cause(err))
}

func TestCreateWindowPreconditions(t *testing.T) {
	conn, _ := wltest.NewPair(t)
	c := NewClient(conn, testLogger(t))
	_, err := c.CreateWindow(DefaultTitle)
	assert.Error(t, err, "registry not resolved")

	c, _, _ = newWindow(t, desktop...)
	_, err = c.CreateWindow("second")
	assert.Error(t, err)
}

func TestCreateBuffer(t *testing.T) {
	c, srv, err := resolve(t, desktop...)
	require.NoError(t, err)

	_, err = c.CreateBuffer(0, 10)
	assert.Error(t, err)
	_, err = c.CreateBuffer(10, -1)
	assert.Error(t, err)
	_, err = c.CreateBuffer(1<<16, 1<<16)
	assert.Error(t, err)

	b, err := c.CreateBuffer(3, 2)
	require.NoError(t, err)
	id, mem := expectBuffer(t, srv, 3, 2)
	assert.Equal(t, id, b.ID())
	assert.Equal(t, 24, b.Size())
	assert.False(t, b.Busy())

	b.Draw(Background)
	assert.True(t, bytes.Equal(filled(24), mem), "pool memory is shared with the compositor")
	require.NoError(t, b.destroy())
	m := srv.Expect("wl_buffer", "destroy")
	assert.Equal(t, id, m.Sender)
	assert.Nil(t, b.Pixels)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "configuring", StateConfiguring.String())
	assert.Equal(t, "mapped", StateMapped.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}
