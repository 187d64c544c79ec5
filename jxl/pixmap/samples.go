// License: MIT Copyright: 2026, jxltk contributors

package pixmap

import (
	"encoding/binary"
	"math"

	"github.com/alistair7/jxltk/jxl"
)

// byteOrder resolves a PixelFormat's Endianness to a concrete ByteOrder for
// multi-byte sample access.
func byteOrder(e jxl.Endianness) binary.ByteOrder {
	switch e {
	case jxl.EndianBig:
		return binary.BigEndian
	case jxl.EndianLittle:
		return binary.LittleEndian
	default:
		return binary.NativeEndian
	}
}

// float16One is the IEEE 754 half-precision bit pattern for 1.0, the only
// value a synthesised opaque-alpha sample ever needs (spec.md §4.4's
// "fully-opaque trailing channel").
const float16One uint16 = 0x3C00

var float32One = math.Float32bits(1.0)

// fillMaxSample writes the maximum sample value for format (the integer
// maximum, or 1.0 for float types) into dst, which must be exactly format.BytesPerSample() long.
func fillMaxSample(dst []byte, format jxl.PixelFormat) {
	order := byteOrder(format.Endianness)
	switch format.DataType {
	case jxl.TypeUint8:
		dst[0] = 0xFF
	case jxl.TypeUint16:
		order.PutUint16(dst, 0xFFFF)
	case jxl.TypeFloat16:
		order.PutUint16(dst, float16One)
	case jxl.TypeFloat32:
		order.PutUint32(dst, float32One)
	}
}

// isMaxSample reports whether sample (exactly format.BytesPerSample() long)
// equals the maximum value for format's data type (the integer maximum, or
// 1.0 for float types).
func isMaxSample(sample []byte, format jxl.PixelFormat) bool {
	order := byteOrder(format.Endianness)
	switch format.DataType {
	case jxl.TypeUint8:
		return sample[0] == 0xFF
	case jxl.TypeUint16:
		return order.Uint16(sample) == 0xFFFF
	case jxl.TypeFloat16:
		return order.Uint16(sample) == float16One
	case jxl.TypeFloat32:
		return order.Uint32(sample) == float32One
	default:
		return false
	}
}
