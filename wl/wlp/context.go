package wlp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

var (
	// ErrObjectDeleted is returned when a request targets a destroyed proxy.
	ErrObjectDeleted = errors.New("object has been deleted")
	// ErrHalted is returned for requests issued after Halt.
	ErrHalted = errors.New("connection halted, no further requests allowed")
)

// Conn is the transport to the compositor. *net.UnixConn satisfies it.
type Conn interface {
	ReadMsgUnix(b, oob []byte) (n, oobn, flags int, addr *net.UnixAddr, err error)
	WriteMsgUnix(b, oob []byte, addr *net.UnixAddr) (n, oobn int, err error)
	Close() error
}

// Object is a client side proxy for a protocol object.
type Object interface {
	ID() uint32
	Type() string
	dispatch(opCode uint16, payload []byte) error
}

// ProtocolError is a fatal error reported by the compositor through
// wl_display.error.
type ProtocolError struct {
	ObjectID  uint32
	Interface string
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s@%d: error %d: %s", e.Interface, e.ObjectID, e.Code, e.Message)
}

// zombie stands in for a proxy destroyed by the client until the compositor
// confirms with delete_id. Events addressed to it are dropped.
type zombie struct {
	i uint32
	t string
}

func (z *zombie) ID() uint32   { return z.i }
func (z *zombie) Type() string { return z.t }

func (z *zombie) dispatch(uint16, []byte) error { return nil }

// NewContext will create a new context for a wayland connection. The
// wl_display singleton is created with id 1.
func NewContext(conn Conn, log zerolog.Logger) *Context {
	c := &Context{
		c:   conn,
		log: log,
		buf: &bytes.Buffer{},
		in:  make([]byte, 65536),
		oob: make([]byte, unix.CmsgSpace(28*4)),
		obj: make(map[uint32]Object),
	}
	c.Display = newDisplay(c)
	return c
}

// Context owns the connection and every proxy created over it. It is not
// safe for concurrent use; all requests and dispatching happen on one
// goroutine.
type Context struct {
	*Display

	c      Conn
	log    zerolog.Logger
	buf    *bytes.Buffer
	in     []byte
	inLen  int
	oob    []byte
	obj    map[uint32]Object
	last   uint32
	free   []uint32
	halted bool
	Err    error
}

func (c *Context) next() uint32 {
	if n := len(c.free); n > 0 {
		id := c.free[n-1]
		c.free = c.free[:n-1]
		return id
	}
	c.last++
	return c.last
}

func (c *Context) register(o Object) {
	c.obj[o.ID()] = o
}

// forget marks a proxy destroyed. The id stays reserved until delete_id.
func (c *Context) forget(o Object) {
	c.obj[o.ID()] = &zombie{i: o.ID(), t: o.Type()}
}

// Abort records err as the fatal connection error if none is set yet and
// returns the recorded error. Listeners without an error return use it to
// stop the dispatch loop.
func (c *Context) Abort(err error) error {
	if c.Err == nil && err != nil {
		c.Err = err
	}
	return c.Err
}

// Halt stops dispatching after the current event and refuses any further
// request. It is used when the client decided to shut down.
func (c *Context) Halt() {
	c.halted = true
}

// Halted reports whether Halt was called.
func (c *Context) Halted() bool {
	return c.halted
}

// marshal validates that o may send requests and starts a new message in
// the shared buffer.
func (c *Context) marshal(o Object, opCode uint16, name string) (*encoder, error) {
	if c.Err != nil {
		return nil, errors.Wrap(c.Err, "global wayland error")
	}
	if c.halted {
		return nil, errors.Wrapf(ErrHalted, "%s@%d.%s", o.Type(), o.ID(), name)
	}
	if cur, exists := c.obj[o.ID()]; !exists || cur != o {
		return nil, errors.Wrapf(ErrObjectDeleted, "%s@%d.%s", o.Type(), o.ID(), name)
	}
	c.buf.Reset()
	c.buf.Write(make([]byte, headerSize))
	return &encoder{c: c, o: o, opCode: opCode, name: name, buf: c.buf}, nil
}

// Error handles fatal protocol errors from the compositor.
func (c *Context) Error(objectID uint32, code uint32, message string) {
	iface := "unknown"
	if o, ok := c.obj[objectID]; ok {
		iface = o.Type()
	}
	c.Abort(&ProtocolError{ObjectID: objectID, Interface: iface, Code: code, Message: message})
}

// DeleteID releases a client object id once the compositor has seen its
// destruction.
func (c *Context) DeleteID(id uint32) {
	if _, ok := c.obj[id]; !ok {
		c.log.Warn().Uint32("id", id).Msg("delete_id for unknown object")
		return
	}
	delete(c.obj, id)
	c.free = append(c.free, id)
}

// Dispatch blocks until at least one event has been read, then delivers
// every complete event that is buffered. It returns the first fatal error:
// a failed read, a malformed message, a compositor protocol error, or an
// error recorded by a listener through Abort.
func (c *Context) Dispatch() error {
	if c.Err != nil {
		return c.Err
	}
	for {
		n, err := c.dispatchPending()
		if err != nil {
			return err
		}
		if n > 0 || c.halted {
			return nil
		}
		if err := c.read(); err != nil {
			return c.Abort(err)
		}
	}
}

// Roundtrip blocks until the compositor has processed every request sent
// so far and all events it produced in response have been dispatched.
func (c *Context) Roundtrip() error {
	cb := &syncListener{}
	if _, err := c.Display.Sync(cb); err != nil {
		return errors.Wrap(err, "unable to create display sync")
	}
	for !cb.done {
		if err := c.Dispatch(); err != nil {
			return err
		}
		if c.halted && !cb.done {
			return errors.Wrap(ErrHalted, "roundtrip interrupted")
		}
	}
	return nil
}

type syncListener struct {
	done bool
}

func (l *syncListener) Done(uint32) {
	l.done = true
}

// Close closes the connection. Pending requests have already been written,
// so nothing is flushed.
func (c *Context) Close() error {
	c.halted = true
	return errors.Wrap(c.c.Close(), "unable to close wayland connection")
}

func (c *Context) read() error {
	if c.inLen == len(c.in) {
		return errors.Wrap(ErrMalformed, "read buffer full without a complete message")
	}
	n, oobn, _, _, err := c.c.ReadMsgUnix(c.in[c.inLen:], c.oob)
	if err != nil {
		return errors.Wrap(err, "unable to read from compositor")
	}
	if oobn > 0 {
		c.dropFDs(c.oob[:oobn])
	}
	if n == 0 {
		return errors.Wrap(io.EOF, "compositor closed the connection")
	}
	c.inLen += n
	return nil
}

// dropFDs closes descriptors received from the compositor. None of the
// events this client listens to carry a file descriptor.
func (c *Context) dropFDs(oob []byte) {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		c.log.Warn().Err(err).Msg("unable to parse control message")
		return
	}
	for i := range scms {
		fds, err := unix.ParseUnixRights(&scms[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			c.log.Debug().Int("fd", fd).Msg("closing unexpected file descriptor")
			os.NewFile(uintptr(fd), "wayland-fd").Close()
		}
	}
}

// dispatchPending delivers the complete messages in the read buffer and
// keeps any trailing partial message for the next read.
func (c *Context) dispatchPending() (int, error) {
	i, count := 0, 0
	defer func() {
		c.inLen = copy(c.in, c.in[i:c.inLen])
	}()
	for !c.halted && c.inLen-i >= headerSize {
		id, opCode, size := DecodeHeader(c.in[i:])
		if size < headerSize || size%4 != 0 {
			return count, c.Abort(errors.Wrapf(ErrMalformed, "invalid size %d for object %d opcode %d", size, id, opCode))
		}
		if c.inLen-i < size {
			break
		}
		payload := c.in[i+headerSize : i+size]
		i += size
		count++

		o, ok := c.obj[id]
		if !ok {
			return count, c.Abort(errors.Wrapf(ErrMalformed, "event %d for unknown object %d", opCode, id))
		}
		c.log.Trace().
			Str("dir", "<-").
			Str("msg", fmt.Sprintf("%s@%d.%d", o.Type(), id, opCode)).
			Str("payload", hex.EncodeToString(payload)).
			Msg("event")
		if err := o.dispatch(opCode, payload); err != nil {
			return count, c.Abort(errors.Wrapf(err, "%s@%d event %d", o.Type(), id, opCode))
		}
		if c.Err != nil {
			return count, c.Err
		}
	}
	return count, nil
}
