package wl

import (
	"math"

	"github.com/SamuelDevz/WaylandClientWindow/video"
	"github.com/SamuelDevz/WaylandClientWindow/wl/wlp"
	"github.com/justincormack/go-memfd"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// shmFile is an anonymous memory file mapped read-write into the process.
// Close unmaps before closing the descriptor.
type shmFile struct {
	mfd  *memfd.Memfd
	data []byte
}

func openShmFile(size int) (*shmFile, error) {
	mfd, err := memfd.Create()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create memfd")
	}
	if err := mfd.Truncate(int64(size)); err != nil {
		mfd.Close()
		return nil, errors.Wrapf(err, "unable to resize memfd to %d bytes", size)
	}
	data, err := unix.Mmap(int(mfd.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		mfd.Close()
		return nil, errors.Wrapf(err, "unable to mmap %d bytes", size)
	}
	return &shmFile{mfd: mfd, data: data}, nil
}

func (f *shmFile) fd() int {
	return int(f.mfd.Fd())
}

func (f *shmFile) Close() error {
	if f.data == nil {
		return nil
	}
	err := unix.Munmap(f.data)
	f.data = nil
	if cerr := f.mfd.Close(); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "unable to release shm file")
}

// Buffer is a wl_buffer together with the memory backing it.
type Buffer struct {
	*wlp.Buffer

	Width, Height, Stride int32
	Pixels                *video.Surface

	file *shmFile
	// busy is set from commit until the compositor releases the buffer.
	busy      bool
	onRelease func(b *Buffer)
}

// Release implements wlp.BufferListener
func (b *Buffer) Release() {
	b.busy = false
	if b.onRelease != nil {
		b.onRelease(b)
	}
}

// Busy reports whether the compositor may still read the buffer.
func (b *Buffer) Busy() bool {
	return b.busy
}

// Size returns the number of mapped bytes.
func (b *Buffer) Size() int {
	return int(b.Stride) * int(b.Height)
}

// Draw fills the whole buffer with c.
func (b *Buffer) Draw(c video.Color) {
	b.Pixels.Fill(c)
}

// destroy sends wl_buffer.destroy and releases the memory.
func (b *Buffer) destroy() error {
	err := b.Buffer.Destroy()
	if ferr := b.unmap(); err == nil {
		err = ferr
	}
	return err
}

// unmap releases the memory without telling the compositor.
func (b *Buffer) unmap() error {
	b.Pixels = nil
	return b.file.Close()
}

// CreateBuffer allocates a width x height ARGB8888 buffer. The pool used to
// create it is destroyed before returning; the compositor keeps the memory
// referenced through the buffer.
func (c *Client) CreateBuffer(width, height int32) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid buffer size %dx%d", width, height)
	}
	stride := int64(width) * 4
	size := stride * int64(height)
	if size > math.MaxInt32 {
		return nil, errors.Errorf("buffer %dx%d exceeds the maximum pool size", width, height)
	}
	c.checkFormat()

	f, err := openShmFile(int(size))
	if err != nil {
		return nil, err
	}
	pool, err := c.shm.CreatePool(f.fd(), int32(size))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "unable to create shm pool")
	}
	b := &Buffer{Width: width, Height: height, Stride: int32(stride), file: f}
	b.Buffer, err = pool.CreateBuffer(b, 0, width, height, int32(stride), wlp.ShmFormatArgb8888)
	if err != nil {
		pool.Destroy()
		f.Close()
		return nil, errors.Wrap(err, "unable to create buffer")
	}
	if err := pool.Destroy(); err != nil {
		b.destroy()
		return nil, errors.Wrap(err, "unable to destroy shm pool")
	}
	b.Pixels, err = video.NewSurface(video.ARGB8888, int(width), int(height), int(stride), f.data)
	if err != nil {
		b.destroy()
		return nil, err
	}
	c.log.Debug().Uint32("buffer", b.ID()).Int32("width", width).Int32("height", height).Int64("bytes", size).Msg("created shm buffer")
	return b, nil
}

// checkFormat warns once if the compositor listed its formats without
// ARGB8888. Every compositor must support it, so the buffer is still created.
func (c *Client) checkFormat() {
	if c.warnedFormat || len(c.formats) == 0 {
		return
	}
	for _, f := range c.formats {
		if f == wlp.ShmFormatArgb8888 {
			return
		}
	}
	c.warnedFormat = true
	c.log.Warn().Interface("formats", c.formats).Msg("compositor did not advertise ARGB8888")
}
