package wlp

import (
	"github.com/pkg/errors"
)

const (
	XdgWmBaseInterface   = "xdg_wm_base"
	XdgSurfaceInterface  = "xdg_surface"
	XdgToplevelInterface = "xdg_toplevel"
)

// XdgToplevel states carried in the configure event's state array.
const (
	XdgToplevelStateMaximized   = 1
	XdgToplevelStateFullscreen  = 2
	XdgToplevelStateResizing    = 3
	XdgToplevelStateActivated   = 4
	XdgToplevelStateTiledLeft   = 5
	XdgToplevelStateTiledRight  = 6
	XdgToplevelStateTiledTop    = 7
	XdgToplevelStateTiledBottom = 8
	XdgToplevelStateSuspended   = 9
)

const (
	opCodeXdgWmBasePing = 0
)

const (
	opCodeXdgWmBaseDestroy       = 0
	opCodeXdgWmBaseGetXdgSurface = 2
	opCodeXdgWmBasePong          = 3
)

// XdgWmBaseListener must answer pings, or the compositor may consider the
// client unresponsive.
type XdgWmBaseListener interface {
	Ping(serial uint32)
}

// XdgWmBase exposes the window management interfaces used to turn surfaces
// into desktop-style windows.
type XdgWmBase struct {
	proxy
	l XdgWmBaseListener
}

// BindXdgWmBase binds the xdg_wm_base global advertised as name.
func (r *Registry) BindXdgWmBase(l XdgWmBaseListener, name, version uint32) (*XdgWmBase, error) {
	o := &XdgWmBase{l: l}
	o.init(r.c, version)
	return o, r.bind(name, o, version)
}

// Type returns the string wayland type
func (wm *XdgWmBase) Type() string {
	return XdgWmBaseInterface
}

func (wm *XdgWmBase) dispatch(opCode uint16, payload []byte) error {
	if opCode != opCodeXdgWmBasePing {
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	dec := newDecoder(payload)
	serial := dec.readUint()
	if err := dec.Err(); err != nil {
		return err
	}
	if wm.l != nil {
		wm.l.Ping(serial)
	}
	return nil
}

// Destroy the xdg_wm_base object. Every surface created from it must have
// been destroyed before.
func (wm *XdgWmBase) Destroy() error {
	e, err := wm.c.marshal(wm, opCodeXdgWmBaseDestroy, "destroy")
	if err != nil {
		return err
	}
	wm.c.forget(wm)
	return e.send()
}

// GetXdgSurface creates an xdg_surface for the given surface. The surface
// must not have a buffer attached or committed.
func (wm *XdgWmBase) GetXdgSurface(l XdgSurfaceListener, surface *Surface) (*XdgSurface, error) {
	e, err := wm.c.marshal(wm, opCodeXdgWmBaseGetXdgSurface, "get_xdg_surface")
	if err != nil {
		return nil, err
	}
	ret := &XdgSurface{l: l}
	ret.init(wm.c, wm.v)
	wm.c.register(ret)
	e.putUint(ret.i)
	e.putUint(surface.ID())
	return ret, e.send()
}

// Pong answers a ping with its serial.
func (wm *XdgWmBase) Pong(serial uint32) error {
	e, err := wm.c.marshal(wm, opCodeXdgWmBasePong, "pong")
	if err != nil {
		return err
	}
	e.putUint(serial)
	return e.send()
}

const (
	opCodeXdgSurfaceConfigure = 0
)

const (
	opCodeXdgSurfaceDestroy      = 0
	opCodeXdgSurfaceGetToplevel  = 1
	opCodeXdgSurfaceAckConfigure = 4
)

// XdgSurfaceListener receives configure, the event that marks the end of a
// configure sequence. The client must ack_configure with its serial before
// committing state that depends on it.
type XdgSurfaceListener interface {
	Configure(serial uint32)
}

// XdgSurface provides the base of desktop-style surface roles.
type XdgSurface struct {
	proxy
	l XdgSurfaceListener
}

// Type returns the string wayland type
func (xs *XdgSurface) Type() string {
	return XdgSurfaceInterface
}

func (xs *XdgSurface) dispatch(opCode uint16, payload []byte) error {
	if opCode != opCodeXdgSurfaceConfigure {
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	dec := newDecoder(payload)
	serial := dec.readUint()
	if err := dec.Err(); err != nil {
		return err
	}
	if xs.l != nil {
		xs.l.Configure(serial)
	}
	return nil
}

// Destroy the xdg_surface. Its role object must be destroyed first.
func (xs *XdgSurface) Destroy() error {
	e, err := xs.c.marshal(xs, opCodeXdgSurfaceDestroy, "destroy")
	if err != nil {
		return err
	}
	xs.c.forget(xs)
	return e.send()
}

// GetToplevel assigns the toplevel role to the surface.
func (xs *XdgSurface) GetToplevel(l XdgToplevelListener) (*XdgToplevel, error) {
	e, err := xs.c.marshal(xs, opCodeXdgSurfaceGetToplevel, "get_toplevel")
	if err != nil {
		return nil, err
	}
	ret := &XdgToplevel{l: l}
	ret.init(xs.c, xs.v)
	xs.c.register(ret)
	e.putUint(ret.i)
	return ret, e.send()
}

// AckConfigure acknowledges the configure event carrying serial.
func (xs *XdgSurface) AckConfigure(serial uint32) error {
	e, err := xs.c.marshal(xs, opCodeXdgSurfaceAckConfigure, "ack_configure")
	if err != nil {
		return err
	}
	e.putUint(serial)
	return e.send()
}

const (
	opCodeXdgToplevelConfigure       = 0
	opCodeXdgToplevelClose           = 1
	opCodeXdgToplevelConfigureBounds = 2
	opCodeXdgToplevelWmCapabilities  = 3
)

const (
	opCodeXdgToplevelDestroy  = 0
	opCodeXdgToplevelSetTitle = 2
	opCodeXdgToplevelSetAppID = 3
)

// XdgToplevelListener receives the toplevel configure and close events.
//
// Configure suggests a surface size and carries the current states; a zero
// width or height means the client should decide its own size. Close asks
// the client to close the window.
type XdgToplevelListener interface {
	Configure(width int32, height int32, states []uint32)
	Close()
}

// XdgToplevelBoundsListener may additionally be implemented to receive the
// recommended maximum bounds (version 4).
type XdgToplevelBoundsListener interface {
	ConfigureBounds(width int32, height int32)
}

// XdgToplevel is the role of a regular desktop window.
type XdgToplevel struct {
	proxy
	l XdgToplevelListener
}

// Type returns the string wayland type
func (t *XdgToplevel) Type() string {
	return XdgToplevelInterface
}

func (t *XdgToplevel) dispatch(opCode uint16, payload []byte) error {
	dec := newDecoder(payload)
	switch opCode {
	case opCodeXdgToplevelConfigure:
		width := dec.readInt()
		height := dec.readInt()
		states := dec.readUintArray()
		if err := dec.Err(); err != nil {
			return err
		}
		if t.l != nil {
			t.l.Configure(width, height, states)
		}
	case opCodeXdgToplevelClose:
		if t.l != nil {
			t.l.Close()
		}
	case opCodeXdgToplevelConfigureBounds:
		width := dec.readInt()
		height := dec.readInt()
		if err := dec.Err(); err != nil {
			return err
		}
		if bl, ok := t.l.(XdgToplevelBoundsListener); ok {
			bl.ConfigureBounds(width, height)
		}
	case opCodeXdgToplevelWmCapabilities:
		dec.readArray()
		return dec.Err()
	default:
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	return nil
}

// Destroy unmaps and destroys the toplevel.
func (t *XdgToplevel) Destroy() error {
	e, err := t.c.marshal(t, opCodeXdgToplevelDestroy, "destroy")
	if err != nil {
		return err
	}
	t.c.forget(t)
	return e.send()
}

// SetTitle sets a short title for the window.
func (t *XdgToplevel) SetTitle(title string) error {
	e, err := t.c.marshal(t, opCodeXdgToplevelSetTitle, "set_title")
	if err != nil {
		return err
	}
	e.putString(title)
	return e.send()
}

// SetAppID sets an identifier used to group windows of one application.
func (t *XdgToplevel) SetAppID(appID string) error {
	e, err := t.c.marshal(t, opCodeXdgToplevelSetAppID, "set_app_id")
	if err != nil {
		return err
	}
	e.putString(appID)
	return e.send()
}
