package wl

import (
	"github.com/pkg/errors"
)

// Run dispatches events until w is closed. It returns nil after a close
// request and the connection error otherwise.
func (c *Client) Run(w *Window) error {
	if w == nil || w.c != c {
		return errors.New("window does not belong to this client")
	}
	for w.Running() {
		if err := c.ctx.Dispatch(); err != nil {
			return errors.Wrap(err, "event dispatch failed")
		}
	}
	c.log.Info().Msg("window closed, leaving event loop")
	return nil
}
