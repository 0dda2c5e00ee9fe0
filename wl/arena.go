package wl

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// arena tracks the buffers the compositor may still read: the one last
// committed and at most one superseded buffer waiting for its release.
type arena struct {
	current *Buffer
	retired *Buffer

	log   zerolog.Logger
	abort func(error) error
}

// promote makes b the committed buffer. The previous one is reclaimed at
// once if the compositor already released it, otherwise it waits for its
// release. A buffer still unreleased after two newer commits is reclaimed
// without waiting.
func (a *arena) promote(b *Buffer) error {
	if b == a.current {
		return nil
	}
	var err error
	if a.retired != nil {
		a.log.Debug().Uint32("buffer", a.retired.ID()).Msg("reclaiming buffer never released")
		err = a.retired.destroy()
		a.retired = nil
	}
	if old := a.current; old != nil {
		if old.busy {
			a.retired = old
		} else if derr := old.destroy(); err == nil {
			err = derr
		}
	}
	b.onRelease = a.released
	a.current = b
	return errors.Wrap(err, "unable to reclaim buffer")
}

func (a *arena) released(b *Buffer) {
	switch b {
	case a.retired:
		a.retired = nil
		a.log.Debug().Uint32("buffer", b.ID()).Msg("retired buffer released")
		if err := b.destroy(); err != nil {
			a.abort(errors.Wrap(err, "unable to reclaim released buffer"))
		}
	case a.current:
		a.log.Trace().Uint32("buffer", b.ID()).Msg("current buffer idle")
	}
}

// live returns the number of buffers holding memory.
func (a *arena) live() int {
	n := 0
	if a.current != nil {
		n++
	}
	if a.retired != nil {
		n++
	}
	return n
}

// close unmaps every buffer without sending requests.
func (a *arena) close() error {
	var err error
	for _, b := range []*Buffer{a.retired, a.current} {
		if b == nil {
			continue
		}
		if uerr := b.unmap(); err == nil {
			err = uerr
		}
	}
	a.current, a.retired = nil, nil
	return err
}
