// License: MIT Copyright: 2026, jxltk contributors

// Package pixmap holds pixel data that may or may not be materialised yet:
// a Pixmap can be a plain in-memory buffer, a promise to decode one frame of
// an already-open Decoder, or a promise to open a file and decode one of its
// frames. Buffering is deferred until EnsureBuffered is called, so a caller
// assembling many pixmaps (for example the merge composer, spec.md §4.6)
// never pays decode cost for an input it ends up not needing.
package pixmap

import (
	"fmt"

	"github.com/alistair7/jxltk/jxl"
)

// Source identifies which of Pixmap's three backing variants is active.
type Source int

const (
	// SourceMemory pixmaps already own a fully decoded buffer.
	SourceMemory Source = iota
	// SourceDecoder pixmaps decode one frame of a Decoder the caller opened.
	SourceDecoder
	// SourceFile pixmaps lazily open their own Decoder on first access.
	SourceFile
)

// Pixmap is the lazy pixel holder described in spec.md §4.4.
type Pixmap struct {
	source Source

	buf    []byte
	xsize  uint32
	ysize  uint32
	format jxl.PixelFormat

	dec         *jxl.Decoder
	ownsDecoder bool
	frameIndex  int

	path    string
	flags   jxl.Flags
	hints   jxl.Hints
	workers int
}

// NewMemory wraps an already-decoded buffer. buf must already hold
// xsize*ysize pixels in format (see jxl.FrameBufferSize).
func NewMemory(buf []byte, xsize, ysize uint32, format jxl.PixelFormat) *Pixmap {
	return &Pixmap{source: SourceMemory, buf: buf, xsize: xsize, ysize: ysize, format: format}
}

// NewFromDecoder wraps one frame of dec, borrowed unless owned is true (in
// which case ReleaseDecoder later hands dec back to the caller instead of
// leaving it for the Pixmap to forget about).
func NewFromDecoder(dec *jxl.Decoder, frameIndex int, format jxl.PixelFormat, owned bool) *Pixmap {
	return &Pixmap{source: SourceDecoder, dec: dec, ownsDecoder: owned, frameIndex: frameIndex, format: format}
}

// NewFromFile defers opening path until EnsureBuffered is first called.
// workers is passed through to jxl.New for the eventual Decoder.
func NewFromFile(path string, frameIndex int, format jxl.PixelFormat, flags jxl.Flags, hints jxl.Hints, workers int) *Pixmap {
	return &Pixmap{source: SourceFile, path: path, frameIndex: frameIndex, format: format, flags: flags, hints: hints, workers: workers}
}

// Format reports the pixel format the buffer is (or will be) stored in.
func (p *Pixmap) Format() jxl.PixelFormat { return p.format }

// Dimensions reports xsize/ysize. Before EnsureBuffered has run on a
// Decoder- or File-backed Pixmap these are both zero: the true extent of a
// non-coalesced frame isn't known until its frame header has been read.
func (p *Pixmap) Dimensions() (xsize, ysize uint32) { return p.xsize, p.ysize }

// Buffer returns the backing buffer, or nil if EnsureBuffered hasn't run yet.
func (p *Pixmap) Buffer() []byte { return p.buf }

// EnsureBuffered materialises the pixel buffer if it isn't already present.
// For a Decoder- or File-backed Pixmap this queries the frame header for the
// real xsize/ysize (a non-coalesced frame's cropped layer can differ from
// the canvas), computes the buffer size, allocates it, and decodes into it.
func (p *Pixmap) EnsureBuffered() error {
	if p.buf != nil {
		return nil
	}
	if p.source == SourceMemory {
		return fmt.Errorf("pixmap: memory-backed pixmap has no buffer")
	}
	if p.source == SourceFile && p.dec == nil {
		d := jxl.New(p.workers)
		if err := d.OpenFile(p.path, p.flags, p.hints, 0); err != nil {
			return fmt.Errorf("pixmap: opening %s: %w", p.path, err)
		}
		p.dec = d
		p.ownsDecoder = true
	}

	xsize, ysize, err := p.dec.FrameDimensions(p.frameIndex)
	if err != nil {
		return err
	}
	need, err := jxl.FrameBufferSize(xsize, ysize, p.format)
	if err != nil {
		return err
	}
	buf := make([]byte, need)
	if err := p.dec.FramePixels(p.frameIndex, p.format, buf, nil); err != nil {
		return err
	}
	p.buf, p.xsize, p.ysize = buf, xsize, ysize
	return nil
}

// hasAlpha reports whether format's channel count already includes a
// trailing alpha channel (2 channels == gray+alpha, 4 == color+alpha).
func hasAlpha(format jxl.PixelFormat) bool {
	return format.NumChannels == 2 || format.NumChannels == 4
}

// AddInterleavedAlpha ensures the pixmap carries a trailing alpha channel,
// per spec.md §4.4. If buffering hasn't happened yet, it simply widens the
// format the eventual EnsureBuffered will decode into (the caller gets real
// decoded alpha, not a synthesised one). If the buffer already exists, a new
// buffer is allocated with a fully-opaque trailing channel spliced into
// every pixel, respecting the format's row alignment.
func (p *Pixmap) AddInterleavedAlpha() error {
	if hasAlpha(p.format) {
		return nil
	}
	if p.buf == nil {
		p.format.NumChannels++
		return nil
	}

	oldFormat := p.format
	newFormat := oldFormat
	newFormat.NumChannels++

	oldStride, err := jxl.RowStride(p.xsize, oldFormat)
	if err != nil {
		return err
	}
	newStride, err := jxl.RowStride(p.xsize, newFormat)
	if err != nil {
		return err
	}
	newSize, err := jxl.FrameBufferSize(p.xsize, p.ysize, newFormat)
	if err != nil {
		return err
	}
	newBuf := make([]byte, newSize)

	bps := oldFormat.BytesPerSample()
	oldChannelBytes := oldFormat.NumChannels * bps
	newChannelBytes := newFormat.NumChannels * bps
	maxSample := make([]byte, bps)
	fillMaxSample(maxSample, oldFormat)

	for y := uint32(0); y < p.ysize; y++ {
		oldRow := p.buf[uint64(y)*oldStride:]
		newRow := newBuf[uint64(y)*newStride:]
		for x := uint32(0); x < p.xsize; x++ {
			oldPix := oldRow[uint64(x)*uint64(oldChannelBytes):]
			newPix := newRow[uint64(x)*uint64(newChannelBytes):]
			copy(newPix, oldPix[:oldChannelBytes])
			copy(newPix[oldChannelBytes:], maxSample)
		}
	}

	p.buf = newBuf
	p.format = newFormat
	return nil
}

// IsFullyOpaque scans a 2- or 4-channel buffer's alpha channel for any
// non-maximal sample; 1- or 3-channel formats have no alpha and are
// trivially opaque (spec.md §4.4). EnsureBuffered must have already run.
func (p *Pixmap) IsFullyOpaque() (bool, error) {
	if p.buf == nil {
		return false, fmt.Errorf("pixmap: IsFullyOpaque called before EnsureBuffered")
	}
	if !hasAlpha(p.format) {
		return true, nil
	}

	stride, err := jxl.RowStride(p.xsize, p.format)
	if err != nil {
		return false, err
	}
	bps := p.format.BytesPerSample()
	channelBytes := p.format.NumChannels * bps
	alphaOffset := channelBytes - bps

	for y := uint32(0); y < p.ysize; y++ {
		row := p.buf[uint64(y)*stride:]
		for x := uint32(0); x < p.xsize; x++ {
			sample := row[uint64(x)*uint64(channelBytes)+uint64(alphaOffset):]
			if !isMaxSample(sample[:bps], p.format) {
				return false, nil
			}
		}
	}
	return true, nil
}

// DropAlphaChannel strips a buffered pixmap's trailing alpha channel,
// replacing its buffer with a newly allocated one without it. Callers are responsible for
// confirming the alpha channel is safe to drop (IsFullyOpaque); this is the
// opaque-alpha optimisation compose.ScanOpaqueAlpha identifies candidates
// for (spec.md §4.6's last bullet).
func (p *Pixmap) DropAlphaChannel() error {
	if p.buf == nil {
		return fmt.Errorf("pixmap: DropAlphaChannel called before EnsureBuffered")
	}
	if !hasAlpha(p.format) {
		return nil
	}

	oldFormat := p.format
	newFormat := oldFormat
	newFormat.NumChannels--

	oldStride, err := jxl.RowStride(p.xsize, oldFormat)
	if err != nil {
		return err
	}
	newStride, err := jxl.RowStride(p.xsize, newFormat)
	if err != nil {
		return err
	}
	newSize, err := jxl.FrameBufferSize(p.xsize, p.ysize, newFormat)
	if err != nil {
		return err
	}
	newBuf := make([]byte, newSize)

	bps := oldFormat.BytesPerSample()
	oldChannelBytes := oldFormat.NumChannels * bps
	newChannelBytes := newFormat.NumChannels * bps

	for y := uint32(0); y < p.ysize; y++ {
		oldRow := p.buf[uint64(y)*oldStride:]
		newRow := newBuf[uint64(y)*newStride:]
		for x := uint32(0); x < p.xsize; x++ {
			oldPix := oldRow[uint64(x)*uint64(oldChannelBytes):]
			newPix := newRow[uint64(x)*uint64(newChannelBytes):]
			copy(newPix, oldPix[:newChannelBytes])
		}
	}

	p.buf = newBuf
	p.format = newFormat
	return nil
}

// ReleaseDecoder relinquishes the pixmap's owned Decoder, returning it to
// the caller instead of leaving it bound to this Pixmap. Used when merging,
// so the decoder's boxes can still be read by its original owner after the
// pixmap itself has been consumed (spec.md §4.4). Returns nil if this
// Pixmap never owned a decoder.
func (p *Pixmap) ReleaseDecoder() *jxl.Decoder {
	if !p.ownsDecoder {
		return nil
	}
	dec := p.dec
	p.dec = nil
	p.ownsDecoder = false
	return dec
}
