// License: MIT Copyright: 2026, jxltk contributors

package jxl

import (
	"fmt"
	"math"

	"github.com/alistair7/jxltk/jxl/codec"
)

var _ = fmt.Print

// More wire-level color types re-exported from jxl/codec (see types.go).
type (
	ColorSpace       = codec.ColorSpace
	WhitePoint       = codec.WhitePoint
	Primaries        = codec.Primaries
	TransferFunction = codec.TransferFunction
	RenderingIntent  = codec.RenderingIntent
	EncodedProfile   = codec.EncodedProfile
	xy2              = codec.XY
)

const (
	ColorSpaceRGB     = codec.ColorSpaceRGB
	ColorSpaceGray    = codec.ColorSpaceGray
	ColorSpaceXYB     = codec.ColorSpaceXYB
	ColorSpaceUnknown = codec.ColorSpaceUnknown

	WhiteD65    = codec.WhiteD65
	WhiteCustom = codec.WhiteCustom
	WhiteE      = codec.WhiteE
	WhiteDCI    = codec.WhiteDCI

	PrimariesSRGB   = codec.PrimariesSRGB
	PrimariesCustom = codec.PrimariesCustom
	Primaries2100   = codec.Primaries2100
	PrimariesP3     = codec.PrimariesP3

	TransferSRGB    = codec.TransferSRGB
	TransferLinear  = codec.TransferLinear
	TransferGamma   = codec.TransferGamma
	Transfer709     = codec.Transfer709
	TransferPQ      = codec.TransferPQ
	TransferDCI     = codec.TransferDCI
	TransferHLG     = codec.TransferHLG
	TransferUnknown = codec.TransferUnknown

	IntentPerceptual = codec.IntentPerceptual
	IntentRelative   = codec.IntentRelative
	IntentSaturation = codec.IntentSaturation
	IntentAbsolute   = codec.IntentAbsolute
)

// ColorProfile is a tagged union permitting both an Encoded and an ICC
// representation to be present simultaneously; consumers prefer Encoded.
type ColorProfile struct {
	Encoded   *EncodedProfile
	ICC       []byte
}

const equivEpsilonXY = 1e-9
const equivEpsilonGamma = 1e-6
const lossizeThreshold = 0.001 // distance below which a frame is considered lossless (compose §4.6)

var srgbXY = [3]xy2{{0.639998686, 0.330010138}, {0.300003784, 0.600003357}, {0.150002046, 0.059997204}}
var d65XY = xy2{0.3127, 0.3290}
var whiteE_XY = xy2{1.0 / 3.0, 1.0 / 3.0}
var dciXY = xy2{0.314, 0.351}

func canonicalWhiteXY(w WhitePoint) (xy2, bool) {
	switch w {
	case WhiteD65:
		return d65XY, true
	case WhiteE:
		return whiteE_XY, true
	case WhiteDCI:
		return dciXY, true
	default:
		return xy2{}, false
	}
}

func closeXY(a, b xy2, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}

// Equivalent reports whether two color profiles describe the same mapping
// from sample values to color, ignoring rendering intent (spec.md §4.5).
func Equivalent(a, b ColorProfile) bool {
	if a.Encoded != nil && b.Encoded != nil {
		return encodedEquivalent(*a.Encoded, *b.Encoded)
	}
	if len(a.ICC) > 0 && len(b.ICC) > 0 {
		return iccEquivalent(a.ICC, b.ICC)
	}
	return false
}

func encodedEquivalent(a, b EncodedProfile) bool {
	if a.ColorSpace == ColorSpaceUnknown || b.ColorSpace == ColorSpaceUnknown {
		return false
	}
	if a.ColorSpace != b.ColorSpace {
		return false
	}
	if !primariesEquivalent(a, b) {
		return false
	}
	if !transferEquivalent(a.TransferFunction, a.Gamma, b.TransferFunction, b.Gamma) {
		return false
	}
	if !whitePointEquivalent(a, b) {
		return false
	}
	return true
}

func primariesEquivalent(a, b EncodedProfile) bool {
	if a.Primaries != PrimariesCustom && b.Primaries != PrimariesCustom {
		return a.Primaries == b.Primaries
	}
	ax := a.PrimariesXY
	if a.Primaries != PrimariesCustom {
		ax = standardPrimariesXY(a.Primaries)
	}
	bx := b.PrimariesXY
	if b.Primaries != PrimariesCustom {
		bx = standardPrimariesXY(b.Primaries)
	}
	for i := 0; i < 3; i++ {
		if !closeXY(ax[i], bx[i], equivEpsilonXY) {
			return false
		}
	}
	return true
}

func standardPrimariesXY(p Primaries) [3]xy2 {
	switch p {
	case PrimariesSRGB:
		return srgbXY
	default:
		// Other standard primaries (2100, P3, ...) are out of scope for the
		// worked examples in spec.md §4.5; treat as their own custom value
		// so they only compare equal to an identical standard tag.
		return [3]xy2{}
	}
}

func transferEquivalent(ta TransferFunction, ga float64, tb TransferFunction, gb float64) bool {
	normalize := func(t TransferFunction, g float64) (TransferFunction, float64) {
		if t == TransferGamma && math.Abs(g-1.0) <= equivEpsilonGamma {
			return TransferLinear, 0
		}
		return t, g
	}
	ta, ga = normalize(ta, ga)
	tb, gb = normalize(tb, gb)
	if ta != tb {
		return false
	}
	if ta == TransferGamma {
		return math.Abs(ga-gb) <= equivEpsilonGamma
	}
	return true
}

func whitePointEquivalent(a, b EncodedProfile) bool {
	if a.WhitePoint != WhiteCustom && b.WhitePoint != WhiteCustom {
		return a.WhitePoint == b.WhitePoint
	}
	ax := a.WhitePointXY
	if a.WhitePoint != WhiteCustom {
		ax, _ = canonicalWhiteXY(a.WhitePoint)
	}
	bx := b.WhitePointXY
	if b.WhitePoint != WhiteCustom {
		bx, _ = canonicalWhiteXY(b.WhitePoint)
	}
	return closeXY(ax, bx, equivEpsilonXY)
}

// iccEquivalent compares the byte ranges of two ICC profiles that matter for
// color identity, skipping flags/rendering-intent/MD5 regions, per spec.md §4.5.
func iccEquivalent(a, b []byte) bool {
	const minLen = 128
	if len(a) < minLen || len(b) < minLen {
		return false
	}
	ranges := [][2]int{{0, 44}, {48, 64}, {68, 84}}
	for _, r := range ranges {
		if r[1] > len(a) || r[1] > len(b) {
			return false
		}
		if string(a[r[0]:r[1]]) != string(b[r[0]:r[1]]) {
			return false
		}
	}
	if len(a) != len(b) {
		return false
	}
	return string(a[100:]) == string(b[100:])
}
