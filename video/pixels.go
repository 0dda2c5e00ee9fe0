package video

import "fmt"

// Color is a straight, non premultiplied RGBA color.
type Color struct {
	R, G, B, A uint8
}

// ColorARGB unpacks a 0xAARRGGBB value.
func ColorARGB(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: uint8(v >> 24)}
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.A, c.R, c.G, c.B)
}

// PixelFormat describes how a color is packed into a 32-bit pixel.
type PixelFormat struct {
	// Format is the wl_shm format code of the layout.
	Format        uint32
	Name          string
	BitsPerPixel  uint8
	BytesPerPixel uint8

	RMask, GMask, BMask, AMask     uint32
	RShift, GShift, BShift, AShift uint8
}

// ARGB8888 is 32-bit ARGB stored little endian, so the bytes in memory are
// B, G, R, A.
var ARGB8888 = &PixelFormat{
	Format:        0,
	Name:          "ARGB8888",
	BitsPerPixel:  32,
	BytesPerPixel: 4,
	AMask:         0xFF000000,
	RMask:         0x00FF0000,
	GMask:         0x0000FF00,
	BMask:         0x000000FF,
	AShift:        24,
	RShift:        16,
	GShift:        8,
	BShift:        0,
}

// XRGB8888 is ARGB8888 with the alpha channel ignored.
var XRGB8888 = &PixelFormat{
	Format:        1,
	Name:          "XRGB8888",
	BitsPerPixel:  32,
	BytesPerPixel: 4,
	RMask:         0x00FF0000,
	GMask:         0x0000FF00,
	BMask:         0x000000FF,
	RShift:        16,
	GShift:        8,
	BShift:        0,
}

// MapRGBA packs c into a pixel value.
func (pf *PixelFormat) MapRGBA(c Color) uint32 {
	v := uint32(c.R)<<pf.RShift&pf.RMask |
		uint32(c.G)<<pf.GShift&pf.GMask |
		uint32(c.B)<<pf.BShift&pf.BMask
	if pf.AMask != 0 {
		v |= uint32(c.A) << pf.AShift & pf.AMask
	}
	return v
}

// GetRGBA unpacks a pixel value. Formats without alpha report opaque colors.
func (pf *PixelFormat) GetRGBA(v uint32) Color {
	c := Color{
		R: uint8((v & pf.RMask) >> pf.RShift),
		G: uint8((v & pf.GMask) >> pf.GShift),
		B: uint8((v & pf.BMask) >> pf.BShift),
		A: 0xFF,
	}
	if pf.AMask != 0 {
		c.A = uint8((v & pf.AMask) >> pf.AShift)
	}
	return c
}
