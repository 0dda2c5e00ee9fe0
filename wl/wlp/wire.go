package wlp

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrMalformed is returned when a message from the compositor cannot be
// decoded.
var ErrMalformed = errors.New("malformed message")

// encoder builds a single request in the context's shared buffer.
type encoder struct {
	c      *Context
	o      Object
	opCode uint16
	name   string
	buf    *bytes.Buffer
	fds    []int
}

func (e *encoder) putUint(v uint32) {
	var b [4]byte
	hostByteOrder.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) putInt(v int32) {
	e.putUint(uint32(v))
}

func (e *encoder) putString(s string) {
	e.putUint(uint32(len(s) + 1))
	e.buf.WriteString(s)
	e.buf.WriteByte(0)
	e.buf.Write(make([]byte, padding(len(s)+1)))
}

func (e *encoder) putArray(a []byte) {
	e.putUint(uint32(len(a)))
	e.buf.Write(a)
	e.buf.Write(make([]byte, padding(len(a))))
}

// putFD queues a descriptor for the SCM_RIGHTS control message. File
// descriptors take no room in the message body.
func (e *encoder) putFD(fd int) {
	e.fds = append(e.fds, fd)
}

// send patches the header and writes the message with any queued fds.
func (e *encoder) send() error {
	msg := e.buf.Bytes()
	if len(msg) > maxMessageSize {
		return errors.Errorf("%s@%d.%s: message too large (%d bytes)", e.o.Type(), e.o.ID(), e.name, len(msg))
	}
	EncodeHeader(msg, e.o.ID(), e.opCode, len(msg))

	var oob []byte
	if len(e.fds) > 0 {
		oob = unix.UnixRights(e.fds...)
	}
	e.c.log.Trace().
		Str("dir", "->").
		Str("msg", fmt.Sprintf("%s@%d.%s", e.o.Type(), e.o.ID(), e.name)).
		Ints("fds", e.fds).
		Str("payload", hex.EncodeToString(msg[headerSize:])).
		Msg("request")

	n, _, err := e.c.c.WriteMsgUnix(msg, oob, nil)
	if err != nil {
		return e.c.Abort(errors.Wrapf(err, "unable to send %s.%s", e.o.Type(), e.name))
	}
	if n != len(msg) {
		return e.c.Abort(errors.Errorf("short write sending %s.%s: %d of %d bytes", e.o.Type(), e.name, n, len(msg)))
	}
	return nil
}

// decoder reads event arguments. The first failure sticks so callers can
// decode every argument and check Err once.
type decoder struct {
	b   []byte
	off int
	err error
}

func newDecoder(payload []byte) *decoder {
	return &decoder{b: payload}
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.b) {
		d.err = errors.Wrapf(ErrMalformed, "need %d bytes at offset %d, have %d", n, d.off, len(d.b))
		return nil
	}
	b := d.b[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) readUint() uint32 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return hostByteOrder.Uint32(b)
}

func (d *decoder) readInt() int32 {
	return int32(d.readUint())
}

func (d *decoder) readString() string {
	n := int(d.readUint())
	if d.err != nil {
		return ""
	}
	if n == 0 {
		// null string
		return ""
	}
	b := d.next(n + padding(n))
	if b == nil {
		return ""
	}
	if b[n-1] != 0 {
		d.err = errors.Wrap(ErrMalformed, "string is not NUL terminated")
		return ""
	}
	return string(b[:n-1])
}

func (d *decoder) readArray() []byte {
	n := int(d.readUint())
	if d.err != nil {
		return nil
	}
	b := d.next(n + padding(n))
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// readUintArray decodes an array argument holding 32-bit values, such as
// the toplevel state list.
func (d *decoder) readUintArray() []uint32 {
	a := d.readArray()
	if d.err != nil {
		return nil
	}
	if len(a)%4 != 0 {
		d.err = errors.Wrapf(ErrMalformed, "array of %d bytes is not a uint32 list", len(a))
		return nil
	}
	out := make([]uint32, len(a)/4)
	for i := range out {
		out[i] = hostByteOrder.Uint32(a[i*4:])
	}
	return out
}

func (d *decoder) Err() error {
	return d.err
}
