package wl

import (
	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type decoration struct {
	*wlp.ZxdgToplevelDecorationV1

	mode uint32
	log  zerolog.Logger
}

// negotiateDecoration asks for server-side decorations once. Without a
// decoration manager it returns nil and the window stays undecorated.
func negotiateDecoration(c *Client, toplevel *wlp.XdgToplevel, log zerolog.Logger) (*decoration, error) {
	if c.decorations == nil {
		return nil, nil
	}
	d := &decoration{log: log}
	var err error
	d.ZxdgToplevelDecorationV1, err = c.decorations.GetToplevelDecoration(d, toplevel)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create toplevel decoration")
	}
	if err := d.SetMode(wlp.ZxdgToplevelDecorationV1ModeServerSide); err != nil {
		return nil, errors.Wrap(err, "unable to request server-side decorations")
	}
	return d, nil
}

// Configure implements wlp.ZxdgToplevelDecorationV1Listener. The chosen
// mode is only recorded.
func (d *decoration) Configure(mode uint32) {
	d.mode = mode
	ev := d.log.Debug()
	if mode != wlp.ZxdgToplevelDecorationV1ModeServerSide {
		ev = d.log.Info()
	}
	ev.Str("mode", modeName(mode)).Msg("decoration mode")
}

func modeName(mode uint32) string {
	switch mode {
	case wlp.ZxdgToplevelDecorationV1ModeClientSide:
		return "client_side"
	case wlp.ZxdgToplevelDecorationV1ModeServerSide:
		return "server_side"
	}
	return "unknown"
}
