// License: MIT Copyright: 2026, jxltk contributors

package jxl

import (
	"fmt"

	"github.com/alistair7/jxltk/jxl/codec"
)

var _ = fmt.Print

// The wire-level value types are defined once in jxl/codec (see its
// types.go) and re-exported here under their facade names, since
// jxl/codec cannot import jxl without an import cycle.
type (
	DataType              = codec.DataType
	Endianness            = codec.Endianness
	PixelFormat           = codec.PixelFormat
	Animation             = codec.Animation
	BasicInfo             = codec.BasicInfo
	BlendMode             = codec.BlendMode
	BlendInfo             = codec.BlendInfo
	LayerInfo             = codec.LayerInfo
	FrameHeader           = codec.FrameHeader
	ExtraChannelBlendInfo = codec.ExtraChannelBlendInfo
	ExtraChannelType      = codec.ExtraChannelType
	ExtraChannelInfo      = codec.ExtraChannelInfo
	Target                = codec.Target
)

const (
	TypeUint8   = codec.TypeUint8
	TypeUint16  = codec.TypeUint16
	TypeFloat16 = codec.TypeFloat16
	TypeFloat32 = codec.TypeFloat32

	EndianNative = codec.EndianNative
	EndianBig    = codec.EndianBig
	EndianLittle = codec.EndianLittle

	BlendReplace = codec.BlendReplace
	BlendAdd     = codec.BlendAdd
	BlendBlend   = codec.BlendBlend
	BlendMul     = codec.BlendMul
	BlendMulAdd  = codec.BlendMulAdd

	ExtraAlpha         = codec.ExtraAlpha
	ExtraDepth         = codec.ExtraDepth
	ExtraSpotColor     = codec.ExtraSpotColor
	ExtraSelectionMask = codec.ExtraSelectionMask
	ExtraBlack         = codec.ExtraBlack
	ExtraCFA           = codec.ExtraCFA
	ExtraThermal       = codec.ExtraThermal
	ExtraReserved0     = codec.ExtraReserved0
	ExtraReserved1     = codec.ExtraReserved1
	ExtraReserved2     = codec.ExtraReserved2
	ExtraReserved3     = codec.ExtraReserved3
	ExtraReserved4     = codec.ExtraReserved4
	ExtraReserved5     = codec.ExtraReserved5
	ExtraReserved6     = codec.ExtraReserved6
	ExtraReserved7     = codec.ExtraReserved7
	ExtraUnknown       = codec.ExtraUnknown
	ExtraOptional      = codec.ExtraOptional

	TargetOriginal = codec.TargetOriginal
	TargetData     = codec.TargetData
)

// FrameRecord is the cached result of observing one Frame codec event.
type FrameRecord struct {
	Header               FrameHeader
	Name                 string
	HasName              bool
	ExtraChannelBlend    []ExtraChannelBlendInfo // present iff !IsCoalescing
}

// BoxRecord is the cached result of observing one Box codec event. Type is
// always the decompressed inner type (invariant: brob wrapper is transparent
// to callers).
type BoxRecord struct {
	Type       [4]byte
	Compressed bool
	Size       uint64 // exact payload byte count, 0 when Unbounded
	Unbounded  bool
}

func (b BoxRecord) TypeString() string { return string(b.Type[:]) }

// DecoderState is the facade's state bitset, expressed as named booleans
// (design note in spec.md §9: readability over a raw bitmask).
type DecoderState struct {
	IsOpen             bool
	IsCoalescing        bool
	GotBasicInfo        bool
	GotColor            bool
	GotOrigColorEnc     bool
	GotDataColorEnc     bool
	SeenAllBoxes        bool
	SeenAllFrames       bool
	SeenAllJpeg         bool
	DecodedSomePixels   bool
	WholeFileBuffered   bool
	HaveCms             bool
}
