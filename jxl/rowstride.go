// License: MIT Copyright: 2026, jxltk contributors

package jxl

import "fmt"

var _ = fmt.Print

// RowStride computes the byte stride of one row of xsize pixels in format,
// rounded up to format.RowAlign (spec.md §4.3 "Row stride computation"). All
// multiplications are checked for overflow; overflow returns BufferTooLarge.
func RowStride(xsize uint32, format PixelFormat) (uint64, error) {
	bps := format.BytesPerSample()
	if bps == 0 {
		return 0, usageErr("unknown pixel format data type")
	}
	stride, ok := mulOverflows(uint64(xsize), uint64(format.NumChannels))
	if !ok {
		return 0, bufferTooLargeErr("row stride: xsize * num_channels overflows")
	}
	stride, ok = mulOverflows(stride, uint64(bps))
	if !ok {
		return 0, bufferTooLargeErr("row stride: * bytes_per_sample overflows")
	}
	if align := uint64(format.RowAlign); align > 1 {
		rem := stride % align
		if rem != 0 {
			padded, ok2 := addOverflows(stride, align-rem)
			if !ok2 {
				return 0, bufferTooLargeErr("row stride: alignment padding overflows")
			}
			stride = padded
		}
	}
	return stride, nil
}

// FrameBufferSize computes the minimum buffer size for a full frame of
// ysize rows at the given stride: padding on the last row is not required,
// per spec.md §4.3.
func FrameBufferSize(xsize, ysize uint32, format PixelFormat) (uint64, error) {
	stride, err := RowStride(xsize, format)
	if err != nil {
		return 0, err
	}
	if ysize == 0 {
		return 0, nil
	}
	lastRowUsed, ok := mulOverflows(uint64(xsize)*uint64(format.NumChannels), uint64(format.BytesPerSample()))
	if !ok {
		return 0, bufferTooLargeErr("frame buffer size: last row bytes overflow")
	}
	bodySize, ok := mulOverflows(stride, uint64(ysize-1))
	if !ok {
		return 0, bufferTooLargeErr("frame buffer size: stride * (ysize-1) overflows")
	}
	total, ok := addOverflows(bodySize, lastRowUsed)
	if !ok {
		return 0, bufferTooLargeErr("frame buffer size: total overflows")
	}
	return total, nil
}

func mulOverflows(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/a != b {
		return 0, false
	}
	return r, true
}

func addOverflows(a, b uint64) (uint64, bool) {
	r := a + b
	return r, r >= a
}
