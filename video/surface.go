package video

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Surface is a pixel view over memory owned by someone else, usually a
// shared memory mapping.
type Surface struct {
	format *PixelFormat
	w, h   int
	pitch  int

	pixels   []byte
	clipRect Rect
}

// NewSurface wraps pixels as a w x h image with pitch bytes per row.
func NewSurface(format *PixelFormat, w, h, pitch int, pixels []byte) (*Surface, error) {
	if format == nil || format.BytesPerPixel != 4 {
		return nil, errors.New("only 32-bit pixel formats are supported")
	}
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid surface size %dx%d", w, h)
	}
	if pitch < w*int(format.BytesPerPixel) {
		return nil, errors.Errorf("pitch %d too small for width %d", pitch, w)
	}
	if len(pixels) < pitch*h {
		return nil, errors.Errorf("pixel memory too small: %d bytes for %dx%d with pitch %d", len(pixels), w, h, pitch)
	}
	return &Surface{
		format:   format,
		w:        w,
		h:        h,
		pitch:    pitch,
		pixels:   pixels,
		clipRect: Rect{W: w, H: h},
	}, nil
}

func (s *Surface) Format() *PixelFormat { return s.format }
func (s *Surface) Width() int           { return s.w }
func (s *Surface) Height() int          { return s.h }
func (s *Surface) Pitch() int           { return s.pitch }

// Bounds returns the full surface rectangle.
func (s *Surface) Bounds() Rect {
	return Rect{W: s.w, H: s.h}
}

// SetClipRect limits subsequent fills to r. An empty rectangle resets the
// clip to the whole surface.
func (s *Surface) SetClipRect(r Rect) {
	if r.Empty() {
		s.clipRect = s.Bounds()
		return
	}
	s.clipRect = r.Intersect(s.Bounds())
}

// Fill paints the clip rectangle with c.
func (s *Surface) Fill(c Color) {
	s.FillRect(s.clipRect, c)
}

// FillRect paints r, clipped, with c.
func (s *Surface) FillRect(r Rect, c Color) {
	r = r.Intersect(s.clipRect)
	if r.Empty() {
		return
	}
	var px [4]byte
	binary.LittleEndian.PutUint32(px[:], s.format.MapRGBA(c))
	row := s.pixels[r.Y*s.pitch+r.X*4 : r.Y*s.pitch+(r.X+r.W)*4]
	for i := 0; i < len(row); i += 4 {
		copy(row[i:], px[:])
	}
	for y := r.Y + 1; y < r.Y+r.H; y++ {
		copy(s.pixels[y*s.pitch+r.X*4:], row)
	}
}

// At returns the color at (x, y). Points outside the surface are
// transparent black.
func (s *Surface) At(x, y int) Color {
	if !s.Bounds().Contains(Point{X: x, Y: y}) {
		return Color{}
	}
	off := y*s.pitch + x*4
	return s.format.GetRGBA(binary.LittleEndian.Uint32(s.pixels[off:]))
}
