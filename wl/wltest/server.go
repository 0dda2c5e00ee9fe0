// Package wltest provides a scripted compositor for tests. It speaks the
// wire format over one end of a socketpair, tracks the objects the client
// creates, and can send events back.
package wltest

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Timeout bounds every blocking read done by the server.
var Timeout = 5 * time.Second

var byteOrder = binary.NativeEndian

// requests lists request names by opcode for the interfaces the client uses.
var requests = map[string][]string{
	"wl_display":    {"sync", "get_registry"},
	"wl_registry":   {"bind"},
	"wl_compositor": {"create_surface", "create_region"},
	"wl_surface": {"destroy", "attach", "damage", "frame", "set_opaque_region", "set_input_region",
		"commit", "set_buffer_transform", "set_buffer_scale", "damage_buffer", "offset"},
	"wl_shm":      {"create_pool", "release"},
	"wl_shm_pool": {"create_buffer", "destroy", "resize"},
	"wl_buffer":   {"destroy"},
	"wl_seat":     {"get_pointer", "get_keyboard", "get_touch", "release"},
	"xdg_wm_base": {"destroy", "create_positioner", "get_xdg_surface", "pong"},
	"xdg_surface": {"destroy", "get_toplevel", "get_popup", "set_window_geometry", "ack_configure"},
	"xdg_toplevel": {"destroy", "set_parent", "set_title", "set_app_id", "show_window_menu", "move",
		"resize", "set_max_size", "set_min_size", "set_maximized", "unset_maximized",
		"set_fullscreen", "unset_fullscreen", "set_minimized"},
	"zxdg_decoration_manager_v1":  {"destroy", "get_toplevel_decoration"},
	"zxdg_toplevel_decoration_v1": {"destroy", "set_mode", "unset_mode"},
}

// creates maps a request to the interface of the object whose new id is its
// first argument.
var creates = map[string]string{
	"wl_display.sync":                                    "wl_callback",
	"wl_display.get_registry":                            "wl_registry",
	"wl_compositor.create_surface":                       "wl_surface",
	"wl_shm.create_pool":                                 "wl_shm_pool",
	"wl_shm_pool.create_buffer":                          "wl_buffer",
	"xdg_wm_base.get_xdg_surface":                        "xdg_surface",
	"xdg_surface.get_toplevel":                           "xdg_toplevel",
	"zxdg_decoration_manager_v1.get_toplevel_decoration": "zxdg_toplevel_decoration_v1",
}

// Global is an advertisement sent through the registry.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Message is a decoded client request.
type Message struct {
	Sender    uint32
	Interface string
	Name      string
	Opcode    uint16
	Payload   []byte
	FD        int
}

// Is reports whether m is the request iface.name.
func (m Message) Is(iface, name string) bool {
	return m.Interface == iface && m.Name == name
}

func (m Message) String() string {
	return fmt.Sprintf("%s@%d.%s", m.Interface, m.Sender, m.Name)
}

// Uint returns the 32-bit argument at word index i.
func (m Message) Uint(i int) uint32 {
	return byteOrder.Uint32(m.Payload[i*4:])
}

// Int returns the signed 32-bit argument at word index i.
func (m Message) Int(i int) int32 {
	return int32(m.Uint(i))
}

// Str returns the string argument starting at word index i.
func (m Message) Str(i int) string {
	n := int(m.Uint(i))
	if n == 0 {
		return ""
	}
	return string(m.Payload[i*4+4 : i*4+4+n-1])
}

// Server is the compositor end of the connection.
type Server struct {
	t       testing.TB
	conn    *net.UnixConn
	buf     []byte
	fds     []int
	objects map[uint32]string
	serial  uint32
}

// NewPair connects a client and a server over an AF_UNIX socketpair. Both
// ends are closed when the test finishes.
func NewPair(t testing.TB) (*net.UnixConn, *Server) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	client := fileConn(t, fds[0], "client")
	server := fileConn(t, fds[1], "server")
	// a client blocked on a missing event fails instead of hanging
	require.NoError(t, client.SetReadDeadline(time.Now().Add(Timeout)))
	s := &Server{
		t:       t,
		conn:    server,
		objects: map[uint32]string{1: "wl_display"},
		serial:  100,
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
		for _, fd := range s.fds {
			unix.Close(fd)
		}
	})
	return client, s
}

func fileConn(t testing.TB, fd int, name string) *net.UnixConn {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	c, err := net.FileConn(f)
	require.NoError(t, err)
	uc, ok := c.(*net.UnixConn)
	require.True(t, ok, "socketpair end is not a unix conn")
	return uc
}

// NextSerial returns a fresh serial for configure or ping events.
func (s *Server) NextSerial() uint32 {
	s.serial++
	return s.serial
}

// Object returns the highest live id the client created for iface.
func (s *Server) Object(iface string) uint32 {
	var id uint32
	for k, v := range s.objects {
		if v == iface && k > id {
			id = k
		}
	}
	require.NotZero(s.t, id, "client created no %s", iface)
	return id
}

// Next reads the next request, failing the test after Timeout.
func (s *Server) Next() Message {
	s.t.Helper()
	m, err := s.read(Timeout)
	require.NoError(s.t, err, "waiting for a request")
	return m
}

// Expect reads the next request and requires it to be iface.name.
func (s *Server) Expect(iface, name string) Message {
	s.t.Helper()
	m := s.Next()
	require.True(s.t, m.Is(iface, name), "expected %s.%s, got %s", iface, name, m)
	return m
}

// Idle requires that the client sends nothing within d.
func (s *Server) Idle(d time.Duration) {
	s.t.Helper()
	m, err := s.read(d)
	if err == nil {
		require.Failf(s.t, "unexpected request", "got %s", m)
	}
}

// Handshake answers get_registry and the following sync by advertising
// globals. It returns once the done event has been sent.
func (s *Server) Handshake(globals ...Global) {
	s.t.Helper()
	reg := s.Expect("wl_display", "get_registry")
	sync := s.Expect("wl_display", "sync")
	for _, g := range globals {
		s.Send(reg.Uint(0), 0, g.Name, g.Interface, g.Version)
	}
	s.Done(sync.Uint(0))
}

// Done fires a callback and retires its id the way compositors do.
func (s *Server) Done(callback uint32) {
	s.Send(callback, 0, uint32(0))
	s.Send(1, 1, callback)
	delete(s.objects, callback)
}

// Send writes an event. Arguments may be uint32, int32, string, []byte or
// []uint32 (sent as an array).
func (s *Server) Send(id uint32, opcode uint16, args ...interface{}) {
	s.t.Helper()
	msg := make([]byte, 8)
	for _, a := range args {
		switch v := a.(type) {
		case uint32:
			msg = byteOrder.AppendUint32(msg, v)
		case int32:
			msg = byteOrder.AppendUint32(msg, uint32(v))
		case string:
			msg = byteOrder.AppendUint32(msg, uint32(len(v)+1))
			msg = append(msg, v...)
			msg = append(msg, 0)
			msg = pad(msg)
		case []byte:
			msg = byteOrder.AppendUint32(msg, uint32(len(v)))
			msg = append(msg, v...)
			msg = pad(msg)
		case []uint32:
			msg = byteOrder.AppendUint32(msg, uint32(len(v)*4))
			for _, u := range v {
				msg = byteOrder.AppendUint32(msg, u)
			}
		default:
			s.t.Fatalf("unsupported argument type %T", a)
		}
	}
	byteOrder.PutUint32(msg[0:], id)
	byteOrder.PutUint32(msg[4:], uint32(len(msg))<<16|uint32(opcode))
	_, err := s.conn.Write(msg)
	require.NoError(s.t, err)
}

// SendRaw writes bytes as they are, for malformed input tests.
func (s *Server) SendRaw(b []byte) {
	_, err := s.conn.Write(b)
	require.NoError(s.t, err)
}

// Close hangs up on the client.
func (s *Server) Close() {
	s.conn.Close()
}

// MapPool maps the descriptor passed with a create_pool request for
// reading.
func (s *Server) MapPool(m Message) []byte {
	s.t.Helper()
	require.True(s.t, m.Is("wl_shm", "create_pool"))
	size := int(m.Int(1))
	data, err := unix.Mmap(m.FD, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { unix.Munmap(data) })
	return data
}

func pad(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func (s *Server) read(timeout time.Duration) (Message, error) {
	for {
		if m, ok := s.parse(); ok {
			return m, nil
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Message{}, err
		}
		b := make([]byte, 4096)
		oob := make([]byte, unix.CmsgSpace(28*4))
		n, oobn, _, _, err := s.conn.ReadMsgUnix(b, oob)
		if err != nil {
			return Message{}, err
		}
		if n == 0 {
			return Message{}, fmt.Errorf("client closed the connection")
		}
		if oobn > 0 {
			scms, err := unix.ParseSocketControlMessage(oob[:oobn])
			if err != nil {
				return Message{}, err
			}
			for i := range scms {
				fds, err := unix.ParseUnixRights(&scms[i])
				if err != nil {
					return Message{}, err
				}
				s.fds = append(s.fds, fds...)
			}
		}
		s.buf = append(s.buf, b[:n]...)
	}
}

func (s *Server) parse() (Message, bool) {
	if len(s.buf) < 8 {
		return Message{}, false
	}
	size := int(byteOrder.Uint32(s.buf[4:]) >> 16)
	if len(s.buf) < size {
		return Message{}, false
	}
	m := Message{
		Sender:  byteOrder.Uint32(s.buf),
		Opcode:  uint16(byteOrder.Uint32(s.buf[4:]) & 0xFFFF),
		Payload: append([]byte(nil), s.buf[8:size]...),
		FD:      -1,
	}
	s.buf = s.buf[size:]

	m.Interface = s.objects[m.Sender]
	if names := requests[m.Interface]; int(m.Opcode) < len(names) {
		m.Name = names[m.Opcode]
	}
	switch key := m.Interface + "." + m.Name; {
	case key == "wl_registry.bind":
		// name, interface, version, new id
		iface := m.Str(1)
		words := 1 + 1 + (len(iface)+1+3)/4
		s.objects[m.Uint(words+1)] = iface
	case creates[key] != "":
		s.objects[m.Uint(0)] = creates[key]
	}
	switch {
	case m.Is("wl_shm", "create_pool"):
		require.NotEmpty(s.t, s.fds, "create_pool without a file descriptor")
		m.FD = s.fds[0]
		s.fds = s.fds[1:]
		fd := m.FD
		s.t.Cleanup(func() { unix.Close(fd) })
	case m.Is("wl_buffer", "destroy"), m.Is("wl_shm_pool", "destroy"):
		s.Send(1, 1, m.Sender)
		delete(s.objects, m.Sender)
	}
	return m, true
}
