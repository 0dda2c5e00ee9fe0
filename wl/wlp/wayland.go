package wlp

import (
	"github.com/pkg/errors"
)

// Interface names of the core protocol objects used by this client.
const (
	DisplayInterface    = "wl_display"
	RegistryInterface   = "wl_registry"
	CallbackInterface   = "wl_callback"
	CompositorInterface = "wl_compositor"
	SurfaceInterface    = "wl_surface"
	ShmInterface        = "wl_shm"
	ShmPoolInterface    = "wl_shm_pool"
	BufferInterface     = "wl_buffer"
	SeatInterface       = "wl_seat"
)

const (
	DisplayErrorInvalidObject  = 0 // server couldn't find object
	DisplayErrorInvalidMethod  = 1 // method doesn't exist on the specified interface
	DisplayErrorNoMemory       = 2 // server is out of memory
	DisplayErrorImplementation = 3 // implementation error in compositor
)

const (
	ShmFormatArgb8888 = 0 // 32-bit ARGB format, [31:0] A:R:G:B 8:8:8:8 little endian
	ShmFormatXrgb8888 = 1 // 32-bit RGB format, [31:0] x:R:G:B 8:8:8:8 little endian
)

const (
	SeatCapabilityPointer  = 1
	SeatCapabilityKeyboard = 2
	SeatCapabilityTouch    = 4
)

// proxy holds the fields shared by every protocol object.
type proxy struct {
	i uint32
	v uint32
	c *Context
}

// ID returns the wayland object identifier
func (p *proxy) ID() uint32 {
	return p.i
}

// Version returns the interface version the object was created with.
func (p *proxy) Version() uint32 {
	return p.v
}

func (p *proxy) init(c *Context, version uint32) {
	p.i = c.next()
	p.v = version
	p.c = c
}

const (
	opCodeDisplayError    = 0
	opCodeDisplayDeleteID = 1
)

const (
	opCodeDisplaySync        = 0
	opCodeDisplayGetRegistry = 1
)

// DisplayListener receives the core display events.
//
// Error is sent when a fatal (non-recoverable) error has occurred. DeleteID
// acknowledges that the compositor has seen a client delete request and the
// id may be reused.
type DisplayListener interface {
	Error(objectID uint32, code uint32, message string)
	DeleteID(id uint32)
}

// Display is the core global object. This is a special singleton object
// used for internal Wayland protocol features.
type Display struct {
	proxy
	l DisplayListener
}

func newDisplay(c *Context) *Display {
	o := &Display{l: c}
	o.init(c, 1)
	c.register(o)
	return o
}

// Type returns the string wayland type
func (d *Display) Type() string {
	return DisplayInterface
}

func (d *Display) dispatch(opCode uint16, payload []byte) error {
	dec := newDecoder(payload)
	switch opCode {
	case opCodeDisplayError:
		objectID := dec.readUint()
		code := dec.readUint()
		message := dec.readString()
		if err := dec.Err(); err != nil {
			return err
		}
		d.l.Error(objectID, code, message)
	case opCodeDisplayDeleteID:
		id := dec.readUint()
		if err := dec.Err(); err != nil {
			return err
		}
		d.l.DeleteID(id)
	default:
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	return nil
}

// Sync asks the compositor to emit the done event on the returned callback
// once every previous request has been processed.
func (d *Display) Sync(l CallbackListener) (*Callback, error) {
	e, err := d.c.marshal(d, opCodeDisplaySync, "sync")
	if err != nil {
		return nil, err
	}
	ret := newCallback(d.c, l)
	e.putUint(ret.i)
	return ret, e.send()
}

// GetRegistry creates the registry object used to list and bind globals.
func (d *Display) GetRegistry(l RegistryListener) (*Registry, error) {
	e, err := d.c.marshal(d, opCodeDisplayGetRegistry, "get_registry")
	if err != nil {
		return nil, err
	}
	ret := &Registry{l: l}
	ret.init(d.c, 1)
	d.c.register(ret)
	e.putUint(ret.i)
	return ret, e.send()
}

const (
	opCodeRegistryGlobal       = 0
	opCodeRegistryGlobalRemove = 1
)

const (
	opCodeRegistryBind = 0
)

// RegistryListener is notified when globals are announced and withdrawn.
type RegistryListener interface {
	Global(name uint32, iface string, version uint32)
	GlobalRemove(name uint32)
}

// Registry is the singleton global registry object.
type Registry struct {
	proxy
	l RegistryListener
}

// Type returns the string wayland type
func (r *Registry) Type() string {
	return RegistryInterface
}

func (r *Registry) dispatch(opCode uint16, payload []byte) error {
	dec := newDecoder(payload)
	switch opCode {
	case opCodeRegistryGlobal:
		name := dec.readUint()
		iface := dec.readString()
		version := dec.readUint()
		if err := dec.Err(); err != nil {
			return err
		}
		if r.l != nil {
			r.l.Global(name, iface, version)
		}
	case opCodeRegistryGlobalRemove:
		name := dec.readUint()
		if err := dec.Err(); err != nil {
			return err
		}
		if r.l != nil {
			r.l.GlobalRemove(name)
		}
	default:
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	return nil
}

// bind sends the untyped new_id bind request for o.
func (r *Registry) bind(name uint32, o Object, version uint32) error {
	e, err := r.c.marshal(r, opCodeRegistryBind, "bind")
	if err != nil {
		return err
	}
	r.c.register(o)
	e.putUint(name)
	e.putString(o.Type())
	e.putUint(version)
	e.putUint(o.ID())
	return e.send()
}

// BindCompositor binds the wl_compositor global advertised as name.
func (r *Registry) BindCompositor(name, version uint32) (*Compositor, error) {
	o := &Compositor{}
	o.init(r.c, version)
	return o, r.bind(name, o, version)
}

// BindShm binds the wl_shm global advertised as name.
func (r *Registry) BindShm(l ShmListener, name, version uint32) (*Shm, error) {
	o := &Shm{l: l}
	o.init(r.c, version)
	return o, r.bind(name, o, version)
}

// BindSeat binds a wl_seat global advertised as name.
func (r *Registry) BindSeat(l SeatListener, name, version uint32) (*Seat, error) {
	o := &Seat{l: l}
	o.init(r.c, version)
	return o, r.bind(name, o, version)
}

const (
	opCodeCallbackDone = 0
)

// CallbackListener is notified when the related request is done.
type CallbackListener interface {
	Done(callbackData uint32)
}

// Callback is a one-shot object used for sync and frame notifications.
type Callback struct {
	proxy
	l CallbackListener
}

func newCallback(c *Context, l CallbackListener) *Callback {
	o := &Callback{l: l}
	o.init(c, 1)
	c.register(o)
	return o
}

// Type returns the string wayland type
func (cb *Callback) Type() string {
	return CallbackInterface
}

func (cb *Callback) dispatch(opCode uint16, payload []byte) error {
	if opCode != opCodeCallbackDone {
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	dec := newDecoder(payload)
	data := dec.readUint()
	if err := dec.Err(); err != nil {
		return err
	}
	// the compositor destroys the callback right after done
	cb.c.forget(cb)
	if cb.l != nil {
		cb.l.Done(data)
	}
	return nil
}

const (
	opCodeCompositorCreateSurface = 0
)

// Compositor is in charge of combining the contents of multiple surfaces
// into one displayable output.
type Compositor struct {
	proxy
}

// Type returns the string wayland type
func (cmp *Compositor) Type() string {
	return CompositorInterface
}

func (cmp *Compositor) dispatch(opCode uint16, _ []byte) error {
	return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
}

// CreateSurface asks the compositor to create a new surface.
func (cmp *Compositor) CreateSurface(l SurfaceListener) (*Surface, error) {
	e, err := cmp.c.marshal(cmp, opCodeCompositorCreateSurface, "create_surface")
	if err != nil {
		return nil, err
	}
	ret := &Surface{l: l}
	ret.init(cmp.c, cmp.v)
	cmp.c.register(ret)
	e.putUint(ret.i)
	return ret, e.send()
}

const (
	opCodeSurfaceEnter                    = 0
	opCodeSurfaceLeave                    = 1
	opCodeSurfacePreferredBufferScale     = 2
	opCodeSurfacePreferredBufferTransform = 3
)

const (
	opCodeSurfaceDestroy      = 0
	opCodeSurfaceAttach       = 1
	opCodeSurfaceDamage       = 2
	opCodeSurfaceCommit       = 6
	opCodeSurfaceDamageBuffer = 9
)

// SurfaceListener is notified when the surface enters or leaves an output.
type SurfaceListener interface {
	Enter(output uint32)
	Leave(output uint32)
}

// Surface is a rectangular area that may be displayed on zero or more
// outputs, and shown any number of times at the compositor's discretion.
type Surface struct {
	proxy
	l SurfaceListener
}

// Type returns the string wayland type
func (s *Surface) Type() string {
	return SurfaceInterface
}

func (s *Surface) dispatch(opCode uint16, payload []byte) error {
	dec := newDecoder(payload)
	switch opCode {
	case opCodeSurfaceEnter, opCodeSurfaceLeave:
		output := dec.readUint()
		if err := dec.Err(); err != nil {
			return err
		}
		if s.l == nil {
			return nil
		}
		if opCode == opCodeSurfaceEnter {
			s.l.Enter(output)
		} else {
			s.l.Leave(output)
		}
	case opCodeSurfacePreferredBufferScale, opCodeSurfacePreferredBufferTransform:
		// hints only, the buffer is always drawn at scale 1
	default:
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	return nil
}

// Destroy deletes the surface.
func (s *Surface) Destroy() error {
	e, err := s.c.marshal(s, opCodeSurfaceDestroy, "destroy")
	if err != nil {
		return err
	}
	s.c.forget(s)
	return e.send()
}

// Attach sets a buffer as the content of this surface. A nil buffer
// detaches the current content.
func (s *Surface) Attach(buffer *Buffer, x, y int32) error {
	e, err := s.c.marshal(s, opCodeSurfaceAttach, "attach")
	if err != nil {
		return err
	}
	var id uint32
	if buffer != nil {
		id = buffer.ID()
	}
	e.putUint(id)
	e.putInt(x)
	e.putInt(y)
	return e.send()
}

// Damage marks a rectangle in surface coordinates as changed.
func (s *Surface) Damage(x, y, width, height int32) error {
	e, err := s.c.marshal(s, opCodeSurfaceDamage, "damage")
	if err != nil {
		return err
	}
	e.putInt(x)
	e.putInt(y)
	e.putInt(width)
	e.putInt(height)
	return e.send()
}

// DamageBuffer marks a rectangle in buffer coordinates as changed. It needs
// version 4; older surfaces fall back to Damage.
func (s *Surface) DamageBuffer(x, y, width, height int32) error {
	if s.v < 4 {
		return s.Damage(x, y, width, height)
	}
	e, err := s.c.marshal(s, opCodeSurfaceDamageBuffer, "damage_buffer")
	if err != nil {
		return err
	}
	e.putInt(x)
	e.putInt(y)
	e.putInt(width)
	e.putInt(height)
	return e.send()
}

// Commit atomically applies the pending surface state.
func (s *Surface) Commit() error {
	e, err := s.c.marshal(s, opCodeSurfaceCommit, "commit")
	if err != nil {
		return err
	}
	return e.send()
}

const (
	opCodeShmFormat = 0
)

const (
	opCodeShmCreatePool = 0
)

// ShmListener receives the pixel formats supported by the compositor.
type ShmListener interface {
	Format(format uint32)
}

// Shm is the shared memory support global.
type Shm struct {
	proxy
	l ShmListener
}

// Type returns the string wayland type
func (shm *Shm) Type() string {
	return ShmInterface
}

func (shm *Shm) dispatch(opCode uint16, payload []byte) error {
	if opCode != opCodeShmFormat {
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	dec := newDecoder(payload)
	format := dec.readUint()
	if err := dec.Err(); err != nil {
		return err
	}
	if shm.l != nil {
		shm.l.Format(format)
	}
	return nil
}

// CreatePool creates a pool backed by fd, mapped by the compositor with the
// given size. The descriptor is passed with SCM_RIGHTS; the caller keeps
// ownership of its copy.
func (shm *Shm) CreatePool(fd int, size int32) (*ShmPool, error) {
	e, err := shm.c.marshal(shm, opCodeShmCreatePool, "create_pool")
	if err != nil {
		return nil, err
	}
	ret := &ShmPool{}
	ret.init(shm.c, shm.v)
	shm.c.register(ret)
	e.putUint(ret.i)
	e.putFD(fd)
	e.putInt(size)
	return ret, e.send()
}

const (
	opCodeShmPoolCreateBuffer = 0
	opCodeShmPoolDestroy      = 1
)

// ShmPool encapsulates a piece of memory shared between the compositor and
// the client. Buffers created from it keep the memory referenced after the
// pool is destroyed.
type ShmPool struct {
	proxy
}

// Type returns the string wayland type
func (p *ShmPool) Type() string {
	return ShmPoolInterface
}

func (p *ShmPool) dispatch(opCode uint16, _ []byte) error {
	return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
}

// CreateBuffer creates a buffer object from the pool.
func (p *ShmPool) CreateBuffer(l BufferListener, offset, width, height, stride int32, format uint32) (*Buffer, error) {
	e, err := p.c.marshal(p, opCodeShmPoolCreateBuffer, "create_buffer")
	if err != nil {
		return nil, err
	}
	ret := &Buffer{l: l}
	ret.init(p.c, 1)
	p.c.register(ret)
	e.putUint(ret.i)
	e.putInt(offset)
	e.putInt(width)
	e.putInt(height)
	e.putInt(stride)
	e.putUint(format)
	return ret, e.send()
}

// Destroy the pool. Buffers created from it stay valid.
func (p *ShmPool) Destroy() error {
	e, err := p.c.marshal(p, opCodeShmPoolDestroy, "destroy")
	if err != nil {
		return err
	}
	p.c.forget(p)
	return e.send()
}

const (
	opCodeBufferRelease = 0
)

const (
	opCodeBufferDestroy = 0
)

// BufferListener is told when the compositor no longer reads the buffer.
type BufferListener interface {
	Release()
}

// Buffer provides the content for a surface.
type Buffer struct {
	proxy
	l BufferListener
}

// Type returns the string wayland type
func (b *Buffer) Type() string {
	return BufferInterface
}

func (b *Buffer) dispatch(opCode uint16, _ []byte) error {
	if opCode != opCodeBufferRelease {
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	if b.l != nil {
		b.l.Release()
	}
	return nil
}

// Destroy the buffer. The compositor may keep showing its last contents.
func (b *Buffer) Destroy() error {
	e, err := b.c.marshal(b, opCodeBufferDestroy, "destroy")
	if err != nil {
		return err
	}
	b.c.forget(b)
	return e.send()
}

const (
	opCodeSeatCapabilities = 0
	opCodeSeatName         = 1
)

// SeatListener receives the seat's capabilities and name.
type SeatListener interface {
	Capabilities(capabilities uint32)
	Name(name string)
}

// Seat is a group of input devices.
type Seat struct {
	proxy
	l SeatListener
}

// Type returns the string wayland type
func (st *Seat) Type() string {
	return SeatInterface
}

func (st *Seat) dispatch(opCode uint16, payload []byte) error {
	dec := newDecoder(payload)
	switch opCode {
	case opCodeSeatCapabilities:
		caps := dec.readUint()
		if err := dec.Err(); err != nil {
			return err
		}
		if st.l != nil {
			st.l.Capabilities(caps)
		}
	case opCodeSeatName:
		name := dec.readString()
		if err := dec.Err(); err != nil {
			return err
		}
		if st.l != nil {
			st.l.Name(name)
		}
	default:
		return errors.Wrapf(ErrMalformed, "unknown opcode %d", opCode)
	}
	return nil
}
