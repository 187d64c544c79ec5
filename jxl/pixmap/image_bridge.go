// License: MIT Copyright: 2026, jxltk contributors

package pixmap

import (
	"fmt"
	"image"
	"image/color"

	"github.com/kovidgoyal/imaging"

	"github.com/alistair7/jxltk/jxl"
)

// ToImage converts a buffered u8/u16 pixmap of 1, 2 or 4 channels, or a
// 3-channel u8 pixmap (as an imaging.NRGB), into an image.Image; a
// 3-channel u16 pixmap returns an error. It bridges the decoded raw buffer into Go's
// image ecosystem the way tools/utils/images loads frames into
// image.Image implementations. Alpha channels (2/4-channel formats) are
// treated as non-premultiplied, matching jxl.Flags.UnpremultiplyAlpha's
// documented output convention.
func (p *Pixmap) ToImage() (image.Image, error) {
	if p.buf == nil {
		return nil, fmt.Errorf("pixmap: ToImage called before EnsureBuffered")
	}
	if p.format.DataType != jxl.TypeUint8 && p.format.DataType != jxl.TypeUint16 {
		return nil, fmt.Errorf("pixmap: ToImage only supports uint8/uint16 samples, got %v", p.format.DataType)
	}

	stride, err := jxl.RowStride(p.xsize, p.format)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, int(p.xsize), int(p.ysize))

	switch {
	case p.format.NumChannels == 1 && p.format.DataType == jxl.TypeUint8:
		return &image.Gray{Pix: p.buf, Stride: int(stride), Rect: rect}, nil
	case p.format.NumChannels == 1 && p.format.DataType == jxl.TypeUint16:
		return &image.Gray16{Pix: p.buf, Stride: int(stride), Rect: rect}, nil
	case p.format.NumChannels == 3 && p.format.DataType == jxl.TypeUint8:
		return &imaging.NRGB{Pix: p.buf, Stride: int(stride), Rect: rect}, nil
	case p.format.NumChannels == 4 && p.format.DataType == jxl.TypeUint8:
		return &image.NRGBA{Pix: p.buf, Stride: int(stride), Rect: rect}, nil
	case p.format.NumChannels == 4 && p.format.DataType == jxl.TypeUint16:
		return &image.NRGBA64{Pix: p.buf, Stride: int(stride), Rect: rect}, nil
	case p.format.NumChannels == 2:
		return grayAlphaImage(p, rect)
	default:
		return nil, fmt.Errorf("pixmap: ToImage has no mapping for %d-channel %v", p.format.NumChannels, p.format.DataType)
	}
}

// grayAlphaImage handles the 2-channel (gray+alpha) formats. The standard
// library has no gray+alpha image type, so both 8- and 16-bit gray+alpha
// are expanded into an 8-bit image.NRGBA, each pixel set as a color.NRGBA64.
func grayAlphaImage(p *Pixmap, rect image.Rectangle) (image.Image, error) {
	bps := p.format.BytesPerSample()
	order := byteOrder(p.format.Endianness)
	img := image.NewNRGBA(rect)
	stride, err := jxl.RowStride(p.xsize, p.format)
	if err != nil {
		return nil, err
	}
	for y := 0; y < int(p.ysize); y++ {
		row := p.buf[y*int(stride):]
		for x := 0; x < int(p.xsize); x++ {
			pix := row[x*2*bps:]
			var gray, alpha uint32
			if bps == 1 {
				gray, alpha = uint32(pix[0]), uint32(pix[bps])
				gray, alpha = gray*0x101, alpha*0x101
			} else {
				gray, alpha = uint32(order.Uint16(pix)), uint32(order.Uint16(pix[bps:]))
			}
			c := color.NRGBA64{R: uint16(gray), G: uint16(gray), B: uint16(gray), A: uint16(alpha)}
			img.Set(x, y, c)
		}
	}
	return img, nil
}

// Thumbnail returns a resized copy as a new memory-backed Pixmap, via
// imaging.Resize with Lanczos resampling (tools/utils/images.(*ImageFrame)'s
// resize path). The result is always 8-bit NRGBA or Gray regardless of the
// source sample type, since imaging.Resize operates on image.Image.
func (p *Pixmap) Thumbnail(w, h int) (*Pixmap, error) {
	img, err := p.ToImage()
	if err != nil {
		return nil, err
	}
	resized := imaging.Resize(img, w, h, imaging.Lanczos)

	switch ti := resized.(type) {
	case *image.Gray:
		return NewMemory(ti.Pix, uint32(ti.Rect.Dx()), uint32(ti.Rect.Dy()), jxl.PixelFormat{NumChannels: 1, DataType: jxl.TypeUint8}), nil
	default:
		nrgba := imageToNRGBA(resized)
		return NewMemory(nrgba.Pix, uint32(nrgba.Rect.Dx()), uint32(nrgba.Rect.Dy()), jxl.PixelFormat{NumChannels: 4, DataType: jxl.TypeUint8}), nil
	}
}

func imageToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return out
}
