// License: MIT Copyright: 2026, jxltk contributors

package jxl

import (
	"testing"
)

func srgbProfile() EncodedProfile {
	return EncodedProfile{
		ColorSpace:       ColorSpaceRGB,
		WhitePoint:       WhiteD65,
		Primaries:        PrimariesSRGB,
		TransferFunction: TransferSRGB,
		RenderingIntent:  IntentPerceptual,
	}
}

func TestEquivalentIgnoresRenderingIntent(t *testing.T) {
	a := srgbProfile()
	b := srgbProfile()
	b.RenderingIntent = IntentAbsolute
	if !Equivalent(ColorProfile{Encoded: &a}, ColorProfile{Encoded: &b}) {
		t.Fatal("expected profiles differing only in rendering intent to be equivalent")
	}
}

func TestEquivalentReflexiveAndSymmetric(t *testing.T) {
	a := srgbProfile()
	b := srgbProfile()
	b.Primaries = PrimariesCustom
	b.PrimariesXY = srgbXY
	b.WhitePoint = WhiteCustom
	b.WhitePointXY = d65XY
	pa := ColorProfile{Encoded: &a}
	pb := ColorProfile{Encoded: &b}
	if !Equivalent(pa, pa) {
		t.Fatal("not reflexive")
	}
	if Equivalent(pa, pb) != Equivalent(pb, pa) {
		t.Fatal("not symmetric")
	}
	if !Equivalent(pa, pb) {
		t.Fatal("custom xy matching canonical srgb/d65 should be equivalent")
	}
}

func TestLinearGammaOneEquivalent(t *testing.T) {
	a := srgbProfile()
	a.TransferFunction = TransferLinear
	b := srgbProfile()
	b.TransferFunction = TransferGamma
	b.Gamma = 1.0
	if !Equivalent(ColorProfile{Encoded: &a}, ColorProfile{Encoded: &b}) {
		t.Fatal("Linear and Gamma(1.0) should be equivalent")
	}
}

func TestUnknownColorSpaceNeverMatches(t *testing.T) {
	a := srgbProfile()
	a.ColorSpace = ColorSpaceUnknown
	b := srgbProfile()
	b.ColorSpace = ColorSpaceUnknown
	if Equivalent(ColorProfile{Encoded: &a}, ColorProfile{Encoded: &b}) {
		t.Fatal("Unknown color space must never match, even itself")
	}
}

func makeICC(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestICCEquivalentSkipsFlagsAndIntentAndMD5(t *testing.T) {
	a := makeICC(200, 7)
	b := makeICC(200, 7)
	// mutate the skipped ranges: [44,48) flags-ish, [64,68) rendering intent-ish, [84,100) md5-ish
	for _, r := range [][2]int{{44, 48}, {64, 68}, {84, 100}} {
		for i := r[0]; i < r[1]; i++ {
			b[i] ^= 0xFF
		}
	}
	if !iccEquivalent(a, b) {
		t.Fatal("ICC profiles differing only in skipped ranges should be equivalent")
	}
	b[150] ^= 0xFF
	if iccEquivalent(a, b) {
		t.Fatal("ICC profiles differing in payload should not be equivalent")
	}
}

func TestICCTooShortNeverEquivalent(t *testing.T) {
	a := makeICC(127, 1)
	b := makeICC(127, 1)
	if iccEquivalent(a, b) {
		t.Fatal("profiles under 128 bytes must never be considered equivalent")
	}
}
