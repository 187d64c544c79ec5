// License: MIT Copyright: 2026, jxltk contributors

package jxl

import (
	"math"
	"testing"
)

func TestRowStrideAlignment(t *testing.T) {
	for _, align := range []int{0, 1, 4, 16, 32} {
		fmtSpec := PixelFormat{NumChannels: 3, DataType: TypeUint8, RowAlign: align}
		stride, err := RowStride(17, fmtSpec)
		if err != nil {
			t.Fatalf("RowStride: %v", err)
		}
		if align > 1 && stride%uint64(align) != 0 {
			t.Fatalf("stride %d not divisible by row_align %d", stride, align)
		}
	}
}

func TestRowStrideNoPaddingNeeded(t *testing.T) {
	fmtSpec := PixelFormat{NumChannels: 4, DataType: TypeUint8, RowAlign: 4}
	stride, err := RowStride(4, fmtSpec)
	if err != nil {
		t.Fatal(err)
	}
	if stride != 16 {
		t.Fatalf("expected 16, got %d", stride)
	}
}

func TestFrameBufferSizeNoLastRowPadding(t *testing.T) {
	fmtSpec := PixelFormat{NumChannels: 3, DataType: TypeUint8, RowAlign: 16}
	size, err := FrameBufferSize(3, 2, fmtSpec)
	if err != nil {
		t.Fatal(err)
	}
	stride, _ := RowStride(3, fmtSpec)
	want := stride + 9 // one padded stride, then last row's 3*3=9 used bytes unpadded
	if size != want {
		t.Fatalf("expected %d, got %d", want, size)
	}
}

func TestRowStrideOverflow(t *testing.T) {
	fmtSpec := PixelFormat{NumChannels: math.MaxInt64 / 2, DataType: TypeFloat32}
	_, err := RowStride(math.MaxUint32, fmtSpec)
	if !Is(err, BufferTooLarge) {
		t.Fatalf("expected BufferTooLarge, got %v", err)
	}
}
