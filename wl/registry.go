package wl

import (
	"strings"

	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/pkg/errors"
)

// Highest interface versions this client is written against. The bound
// version is the lower of these and the advertised one.
const (
	CompositorVersion = 4
	ShmVersion        = 1
	SeatVersion       = 7
	XdgWmBaseVersion  = 2
	DecorationVersion = 1
)

type global struct {
	name    uint32
	iface   string
	version uint32
}

type capability struct {
	iface    string
	version  uint32
	required bool
	bind     func(c *Client, name, version uint32) error
}

var capabilities = []capability{
	{
		iface: wlp.CompositorInterface, version: CompositorVersion, required: true,
		bind: func(c *Client, name, version uint32) (err error) {
			c.compositor, err = c.registry.BindCompositor(name, version)
			return err
		},
	},
	{
		iface: wlp.ShmInterface, version: ShmVersion, required: true,
		bind: func(c *Client, name, version uint32) (err error) {
			c.shm, err = c.registry.BindShm(c, name, version)
			return err
		},
	},
	{
		iface: wlp.XdgWmBaseInterface, version: XdgWmBaseVersion, required: true,
		bind: func(c *Client, name, version uint32) (err error) {
			c.wmBase, err = c.registry.BindXdgWmBase(c, name, version)
			return err
		},
	},
	{
		iface: wlp.ZxdgDecorationManagerV1Interface, version: DecorationVersion,
		bind: func(c *Client, name, version uint32) (err error) {
			c.decorations, err = c.registry.BindZxdgDecorationManagerV1(name, version)
			return err
		},
	},
	{
		iface: wlp.SeatInterface, version: SeatVersion,
		bind: func(c *Client, name, version uint32) (err error) {
			c.seat, err = c.registry.BindSeat(c, name, version)
			return err
		},
	},
}

func lookupCapability(iface string) (capability, bool) {
	for _, cp := range capabilities {
		if cp.iface == iface {
			return cp, true
		}
	}
	return capability{}, false
}

// Resolve enumerates the compositor globals with a single roundtrip and
// binds the ones this client uses. It fails with ErrMissingGlobal if a
// required global was not advertised.
func (c *Client) Resolve() error {
	if c.registry != nil {
		return errors.New("registry already resolved")
	}
	var err error
	c.registry, err = c.ctx.GetRegistry(c)
	if err != nil {
		return errors.Wrap(err, "unable to get registry")
	}
	if err := c.ctx.Roundtrip(); err != nil {
		return errors.Wrap(err, "registry roundtrip failed")
	}
	c.resolved = true

	var missing []string
	for _, cp := range capabilities {
		if cp.required && c.bound[cp.iface] == nil {
			missing = append(missing, cp.iface)
		}
	}
	if len(missing) > 0 {
		return errors.Wrap(ErrMissingGlobal, strings.Join(missing, ", "))
	}
	if c.decorations == nil {
		c.log.Info().Msg("compositor offers no decoration manager, window will be undecorated")
	}
	return nil
}

// Bound returns the version a global interface was bound with.
func (c *Client) Bound(iface string) (uint32, bool) {
	g, ok := c.bound[iface]
	if !ok {
		return 0, false
	}
	return g.version, true
}

// Global implements wlp.RegistryListener
func (c *Client) Global(name uint32, iface string, version uint32) {
	if c.resolved {
		c.log.Debug().Str("interface", iface).Uint32("name", name).Msg("global announced after startup, ignored")
		return
	}
	cp, ok := lookupCapability(iface)
	if !ok {
		return
	}
	if g, dup := c.bound[iface]; dup {
		c.log.Debug().Str("interface", iface).Uint32("name", name).Uint32("bound", g.name).Msg("duplicate global ignored")
		return
	}
	v := cp.version
	if version < v {
		v = version
	}
	if err := cp.bind(c, name, v); err != nil {
		c.ctx.Abort(errors.Wrapf(err, "unable to bind %s", iface))
		return
	}
	c.bound[iface] = &global{name: name, iface: iface, version: v}
	c.log.Debug().Str("interface", iface).Uint32("name", name).Uint32("version", v).Msg("bound global")
}

// GlobalRemove implements wlp.RegistryListener
func (c *Client) GlobalRemove(name uint32) {
	for iface, g := range c.bound {
		if g.name == name {
			c.log.Warn().Str("interface", iface).Uint32("name", name).Msg("bound global removed by compositor")
			delete(c.bound, iface)
			return
		}
	}
}
