package wl

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/SamuelDevz/WaylandClientWindow/wl/wltest"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var desktop = []wltest.Global{
	{Name: 1, Interface: "wl_compositor", Version: 6},
	{Name: 2, Interface: "wl_shm", Version: 1},
	{Name: 3, Interface: "xdg_wm_base", Version: 5},
	{Name: 4, Interface: "zxdg_decoration_manager_v1", Version: 1},
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// resolve runs Resolve against a server advertising globals and consumes
// the bind requests of the recognized ones.
func resolve(t *testing.T, globals ...wltest.Global) (*Client, *wltest.Server, error) {
	conn, srv := wltest.NewPair(t)
	c := NewClient(conn, testLogger(t))
	errc := make(chan error, 1)
	go func() { errc <- c.Resolve() }()
	srv.Handshake(globals...)
	err := <-errc
	for _, g := range globals {
		if _, ok := lookupCapability(g.Interface); ok {
			m := srv.Expect("wl_registry", "bind")
			require.Equal(t, g.Interface, m.Str(1))
		}
	}
	return c, srv, err
}

func dispatchUntil(t *testing.T, c *Client, cond func() bool) {
	t.Helper()
	for !cond() {
		require.NoError(t, c.Dispatch())
	}
}

// bindVersion extracts the requested version from a wl_registry.bind.
func bindVersion(m wltest.Message) uint32 {
	return m.Uint(2 + (len(m.Str(1))+1+3)/4)
}

func TestResolveBindsCappedVersions(t *testing.T) {
	globals := append([]wltest.Global{
		{Name: 9, Interface: "wl_output", Version: 4},
		{Name: 10, Interface: "wl_seat", Version: 9},
	}, desktop...)
	globals[2].Version = 2 // wl_compositor

	conn, srv := wltest.NewPair(t)
	c := NewClient(conn, testLogger(t))
	errc := make(chan error, 1)
	go func() { errc <- c.Resolve() }()
	srv.Handshake(globals...)
	require.NoError(t, <-errc)

	want := map[string]uint32{
		"wl_seat":                    SeatVersion,
		"wl_compositor":              2,
		"wl_shm":                     ShmVersion,
		"xdg_wm_base":                XdgWmBaseVersion,
		"zxdg_decoration_manager_v1": DecorationVersion,
	}
	for range want {
		m := srv.Expect("wl_registry", "bind")
		iface := m.Str(1)
		assert.Equal(t, want[iface], bindVersion(m), iface)
		v, ok := c.Bound(iface)
		assert.True(t, ok, iface)
		assert.Equal(t, want[iface], v, iface)
	}
	_, ok := c.Bound("wl_output")
	assert.False(t, ok, "unrecognized globals are ignored")
	srv.Idle(50 * time.Millisecond)
}

func TestResolveMissingRequired(t *testing.T) {
	_, _, err := resolve(t, desktop[0], desktop[1], desktop[3])
	require.Error(t, err)
	assert.Equal(t, ErrMissingGlobal, errors.Cause(err))
	assert.Contains(t, err.Error(), "xdg_wm_base")
}

func TestResolveWithoutOptional(t *testing.T) {
	c, _, err := resolve(t, desktop[:3]...)
	require.NoError(t, err)
	assert.Nil(t, c.decorations)
	_, _, hasSeat := c.Seat()
	assert.False(t, hasSeat)
}

func TestResolveOnlyOnce(t *testing.T) {
	c, _, err := resolve(t, desktop...)
	require.NoError(t, err)
	assert.Error(t, c.Resolve())
}

func TestGlobalsAfterStartup(t *testing.T) {
	c, srv, err := resolve(t, desktop...)
	require.NoError(t, err)

	reg := c.registry.ID()
	srv.Send(reg, 0, uint32(20), "wl_seat", uint32(7))
	srv.Send(reg, 1, uint32(4))
	dispatchUntil(t, c, func() bool {
		_, ok := c.Bound(wlp.ZxdgDecorationManagerV1Interface)
		return !ok
	})
	_, ok := c.Bound(wlp.SeatInterface)
	assert.False(t, ok, "globals after startup are not bound")
	srv.Idle(50 * time.Millisecond)
}

func TestSeatAndFormats(t *testing.T) {
	c, srv, err := resolve(t, append(desktop, wltest.Global{Name: 5, Interface: "wl_seat", Version: 8})...)
	require.NoError(t, err)

	srv.Send(srv.Object("wl_shm"), 0, uint32(wlp.ShmFormatArgb8888))
	srv.Send(srv.Object("wl_shm"), 0, uint32(wlp.ShmFormatXrgb8888))
	srv.Send(srv.Object("wl_seat"), 0, uint32(wlp.SeatCapabilityPointer|wlp.SeatCapabilityKeyboard))
	srv.Send(srv.Object("wl_seat"), 1, "seat0")
	dispatchUntil(t, c, func() bool { return c.seatName != "" })

	name, caps, ok := c.Seat()
	assert.True(t, ok)
	assert.Equal(t, "seat0", name)
	assert.Equal(t, uint32(3), caps)
	assert.Equal(t, []uint32{0, 1}, c.Formats())
}

func TestPingPong(t *testing.T) {
	c, srv, err := resolve(t, desktop...)
	require.NoError(t, err)

	serial := srv.NextSerial()
	srv.Send(srv.Object("xdg_wm_base"), 0, serial)
	require.NoError(t, c.Dispatch())
	m := srv.Expect("xdg_wm_base", "pong")
	assert.Equal(t, serial, m.Uint(0))
}

func TestConnectInheritedSocket(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])
	t.Setenv("WAYLAND_SOCKET", strconv.Itoa(fds[0]))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	c, err := Connect(cfg, testLogger(t))
	require.NoError(t, err)
	defer c.Close()

	_, set := os.LookupEnv("WAYLAND_SOCKET")
	assert.False(t, set)
}

func TestConnectSocketPath(t *testing.T) {
	dir := t.TempDir()
	l, err := net.Listen("unix", filepath.Join(dir, "wayland-test"))
	require.NoError(t, err)
	defer l.Close()

	c, err := Connect(&Config{Display: "wayland-test", RuntimeDir: dir}, testLogger(t))
	require.NoError(t, err)
	defer c.Close()
	conn, err := l.Accept()
	require.NoError(t, err)
	conn.Close()

	_, err = Connect(&Config{Display: "missing", RuntimeDir: dir}, testLogger(t))
	assert.Error(t, err)
}
