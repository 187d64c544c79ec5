// License: MIT Copyright: 2026, jxltk contributors

package pixmap

import (
	"testing"

	"github.com/alistair7/jxltk/jxl"
)

func rgb3x2() *Pixmap {
	// 3x2 image, 3-channel u8, row-major, no row alignment.
	buf := []byte{
		10, 20, 30, 40, 50, 60, 70, 80, 90,
		1, 2, 3, 4, 5, 6, 7, 8, 9,
	}
	return NewMemory(buf, 3, 2, jxl.PixelFormat{NumChannels: 3, DataType: jxl.TypeUint8})
}

func TestMemoryPixmapAlreadyBuffered(t *testing.T) {
	p := rgb3x2()
	if err := p.EnsureBuffered(); err != nil {
		t.Fatalf("EnsureBuffered on memory pixmap: %v", err)
	}
	x, y := p.Dimensions()
	if x != 3 || y != 2 {
		t.Fatalf("Dimensions = %d,%d, want 3,2", x, y)
	}
}

func TestIsFullyOpaqueTrivialForColorOnlyFormats(t *testing.T) {
	p := rgb3x2()
	opaque, err := p.IsFullyOpaque()
	if err != nil {
		t.Fatal(err)
	}
	if !opaque {
		t.Fatal("3-channel format must be trivially opaque")
	}
}

func TestAddInterleavedAlphaAfterBufferingSplicesOpaqueChannel(t *testing.T) {
	p := rgb3x2()
	if err := p.AddInterleavedAlpha(); err != nil {
		t.Fatal(err)
	}
	if p.format.NumChannels != 4 {
		t.Fatalf("NumChannels = %d, want 4", p.format.NumChannels)
	}
	opaque, err := p.IsFullyOpaque()
	if err != nil {
		t.Fatal(err)
	}
	if !opaque {
		t.Fatal("spliced alpha channel must be fully opaque")
	}
	// First pixel's color samples must be preserved.
	if p.buf[0] != 10 || p.buf[1] != 20 || p.buf[2] != 30 || p.buf[3] != 0xFF {
		t.Fatalf("first pixel after splice = %v, want [10 20 30 255 ...]", p.buf[:4])
	}
	// Second row's first pixel.
	stride, _ := jxl.RowStride(3, p.format)
	row1 := p.buf[stride:]
	if row1[0] != 1 || row1[1] != 2 || row1[2] != 3 || row1[3] != 0xFF {
		t.Fatalf("second row first pixel = %v, want [1 2 3 255 ...]", row1[:4])
	}
}

func TestAddInterleavedAlphaBeforeBufferingWidensFormat(t *testing.T) {
	p := &Pixmap{source: SourceDecoder, format: jxl.PixelFormat{NumChannels: 1, DataType: jxl.TypeUint8}}
	if err := p.AddInterleavedAlpha(); err != nil {
		t.Fatal(err)
	}
	if p.format.NumChannels != 2 {
		t.Fatalf("NumChannels = %d, want 2 (widened, not buffered)", p.format.NumChannels)
	}
	if p.buf != nil {
		t.Fatal("widening must not allocate a buffer")
	}
}

func TestAddInterleavedAlphaNoopWhenAlreadyPresent(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	p := NewMemory(buf, 1, 1, jxl.PixelFormat{NumChannels: 4, DataType: jxl.TypeUint8})
	if err := p.AddInterleavedAlpha(); err != nil {
		t.Fatal(err)
	}
	if &p.buf[0] != &buf[0] {
		t.Fatal("buffer must be untouched when alpha already present")
	}
}

func TestIsFullyOpaqueDetectsTransparentPixel(t *testing.T) {
	buf := []byte{
		10, 20, 30, 0xFF,
		40, 50, 60, 0x00, // transparent pixel
	}
	p := NewMemory(buf, 2, 1, jxl.PixelFormat{NumChannels: 4, DataType: jxl.TypeUint8})
	opaque, err := p.IsFullyOpaque()
	if err != nil {
		t.Fatal(err)
	}
	if opaque {
		t.Fatal("expected non-opaque: second pixel has alpha 0")
	}
}

func TestIsFullyOpaqueBeforeBufferingErrors(t *testing.T) {
	p := &Pixmap{source: SourceDecoder, format: jxl.PixelFormat{NumChannels: 4, DataType: jxl.TypeUint8}}
	if _, err := p.IsFullyOpaque(); err == nil {
		t.Fatal("expected an error before EnsureBuffered has run")
	}
}

func TestReleaseDecoderReturnsNilWhenBorrowed(t *testing.T) {
	p := NewFromDecoder(jxl.New(0), 0, jxl.PixelFormat{NumChannels: 3, DataType: jxl.TypeUint8}, false)
	if dec := p.ReleaseDecoder(); dec != nil {
		t.Fatal("borrowed decoder must not be released")
	}
}

func TestReleaseDecoderReturnsOwnedDecoderOnce(t *testing.T) {
	dec := jxl.New(0)
	p := NewFromDecoder(dec, 0, jxl.PixelFormat{NumChannels: 3, DataType: jxl.TypeUint8}, true)
	got := p.ReleaseDecoder()
	if got != dec {
		t.Fatal("expected the owned decoder back")
	}
	if again := p.ReleaseDecoder(); again != nil {
		t.Fatal("second ReleaseDecoder call must return nil")
	}
}

func TestToImageGray(t *testing.T) {
	p := NewMemory([]byte{1, 2, 3, 4}, 2, 2, jxl.PixelFormat{NumChannels: 1, DataType: jxl.TypeUint8})
	img, err := p.ToImage()
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", img.Bounds())
	}
}

func TestToImageRejectsUnbufferedPixmap(t *testing.T) {
	p := &Pixmap{source: SourceDecoder, format: jxl.PixelFormat{NumChannels: 3, DataType: jxl.TypeUint8}}
	if _, err := p.ToImage(); err == nil {
		t.Fatal("expected an error before EnsureBuffered has run")
	}
}
