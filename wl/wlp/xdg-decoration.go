package wlp

import (
	"github.com/pkg/errors"
)

const (
	ZxdgDecorationManagerV1Interface  = "zxdg_decoration_manager_v1"
	ZxdgToplevelDecorationV1Interface = "zxdg_toplevel_decoration_v1"
)

const (
	ZxdgToplevelDecorationV1ModeClientSide = 1 // no server-side window decoration
	ZxdgToplevelDecorationV1ModeServerSide = 2 // server-side window decoration
)

const (
	opCodeZxdgDecorationManagerV1Destroy               = 0
	opCodeZxdgDecorationManagerV1GetToplevelDecoration = 1
)

// ZxdgDecorationManagerV1 lets a client and the compositor negotiate who
// draws the window decorations of a toplevel.
type ZxdgDecorationManagerV1 struct {
	proxy
}

// BindZxdgDecorationManagerV1 binds the decoration manager global
// advertised as name.
func (r *Registry) BindZxdgDecorationManagerV1(name, version uint32) (*ZxdgDecorationManagerV1, error) {
	o := &ZxdgDecorationManagerV1{}
	o.init(r.c, version)
	return o, r.bind(name, o, version)
}

// Type returns the string wayland type
func (m *ZxdgDecorationManagerV1) Type() string {
	return ZxdgDecorationManagerV1Interface
}

func (m *ZxdgDecorationManagerV1) dispatch(opCode uint16, _ []byte) error {
	return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
}

// Destroy the decoration manager. Existing decoration objects are not
// affected.
func (m *ZxdgDecorationManagerV1) Destroy() error {
	e, err := m.c.marshal(m, opCodeZxdgDecorationManagerV1Destroy, "destroy")
	if err != nil {
		return err
	}
	m.c.forget(m)
	return e.send()
}

// GetToplevelDecoration creates the decoration object for a toplevel. It
// must be created before the toplevel's first commit with a buffer.
func (m *ZxdgDecorationManagerV1) GetToplevelDecoration(l ZxdgToplevelDecorationV1Listener, toplevel *XdgToplevel) (*ZxdgToplevelDecorationV1, error) {
	e, err := m.c.marshal(m, opCodeZxdgDecorationManagerV1GetToplevelDecoration, "get_toplevel_decoration")
	if err != nil {
		return nil, err
	}
	ret := &ZxdgToplevelDecorationV1{l: l}
	ret.init(m.c, m.v)
	m.c.register(ret)
	e.putUint(ret.i)
	e.putUint(toplevel.ID())
	return ret, e.send()
}

const (
	opCodeZxdgToplevelDecorationV1Configure = 0
)

const (
	opCodeZxdgToplevelDecorationV1Destroy = 0
	opCodeZxdgToplevelDecorationV1SetMode = 1
)

// ZxdgToplevelDecorationV1Listener receives the decoration mode the
// compositor chose. It may differ from the requested one.
type ZxdgToplevelDecorationV1Listener interface {
	Configure(mode uint32)
}

// ZxdgToplevelDecorationV1 controls the decoration mode of one toplevel.
type ZxdgToplevelDecorationV1 struct {
	proxy
	l ZxdgToplevelDecorationV1Listener
}

// Type returns the string wayland type
func (d *ZxdgToplevelDecorationV1) Type() string {
	return ZxdgToplevelDecorationV1Interface
}

func (d *ZxdgToplevelDecorationV1) dispatch(opCode uint16, payload []byte) error {
	if opCode != opCodeZxdgToplevelDecorationV1Configure {
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	dec := newDecoder(payload)
	mode := dec.readUint()
	if err := dec.Err(); err != nil {
		return err
	}
	if d.l != nil {
		d.l.Configure(mode)
	}
	return nil
}

// Destroy the decoration object. The compositor falls back to its default
// decoration mode.
func (d *ZxdgToplevelDecorationV1) Destroy() error {
	e, err := d.c.marshal(d, opCodeZxdgToplevelDecorationV1Destroy, "destroy")
	if err != nil {
		return err
	}
	d.c.forget(d)
	return e.send()
}

// SetMode requests a decoration mode.
func (d *ZxdgToplevelDecorationV1) SetMode(mode uint32) error {
	e, err := d.c.marshal(d, opCodeZxdgToplevelDecorationV1SetMode, "set_mode")
	if err != nil {
		return err
	}
	e.putUint(mode)
	return e.send()
}
