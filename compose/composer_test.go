// License: MIT Copyright: 2026, jxltk contributors

package compose

import (
	"testing"

	"github.com/alistair7/jxltk/jxl"
)

func u32(v uint32) *uint32 { return &v }

func TestValidateInvariantsRequiresAtLeastOneFrame(t *testing.T) {
	if err := ValidateInvariants(Config{}); err == nil {
		t.Fatal("expected an error for zero frames")
	}
}

func TestValidateInvariantsRejectsMismatchedCanvasDims(t *testing.T) {
	cfg := Config{Frames: []FrameSpec{{}}, Xsize: 100}
	if err := ValidateInvariants(cfg); err == nil {
		t.Fatal("expected an error when only Xsize is set")
	}
}

func TestValidateInvariantsAcceptsCompleteConfig(t *testing.T) {
	cfg := Config{Frames: []FrameSpec{{}}, Xsize: 100, Ysize: 50}
	if err := ValidateInvariants(cfg); err != nil {
		t.Fatal(err)
	}
}

func TestValidateInvariantsRejectsReservedBoxType(t *testing.T) {
	cfg := Config{
		Frames: []FrameSpec{{}},
		Boxes:  []BoxSpec{{Type: [4]byte{'j', 'x', 'l', 'x'}}},
	}
	if err := ValidateInvariants(cfg); err == nil {
		t.Fatal("expected an error for a reserved box type")
	}
}

func TestValidateInvariantsRejectsFtypBox(t *testing.T) {
	cfg := Config{
		Frames: []FrameSpec{{}},
		Boxes:  []BoxSpec{{Type: [4]byte{'f', 't', 'y', 'p'}}},
	}
	if err := ValidateInvariants(cfg); err == nil {
		t.Fatal("expected an error for the ftyp box type")
	}
}

func TestIsAnimatedTrueWhenAnyFrameHasDuration(t *testing.T) {
	frames := []FrameSpec{{}, {DurationMs: u32(40)}}
	if !IsAnimated(frames) {
		t.Fatal("expected animated")
	}
}

func TestIsAnimatedFalseWhenAllDurationsZero(t *testing.T) {
	frames := []FrameSpec{{DurationMs: u32(0)}, {}}
	if IsAnimated(frames) {
		t.Fatal("expected not animated")
	}
}

func TestUsesOriginalProfileBelowThreshold(t *testing.T) {
	frames := []FrameSpec{{Distance: 1.0}, {Distance: 0.0005}}
	if !UsesOriginalProfile(frames) {
		t.Fatal("expected original profile due to near-lossless frame")
	}
}

func TestUsesOriginalProfileFalseWhenAllLossy(t *testing.T) {
	frames := []FrameSpec{{Distance: 1.0}, {Distance: 2.0}}
	if UsesOriginalProfile(frames) {
		t.Fatal("expected lossy, no original profile")
	}
}

func TestPatchesGloballyDisabledBySlot3(t *testing.T) {
	frames := []FrameSpec{{SaveAsReference: 1}, {SaveAsReference: 3}}
	if !PatchesGloballyDisabled(frames) {
		t.Fatal("expected patches disabled due to slot-3 save")
	}
}

func TestAutoCanvasSizeUsesExplicitConfigWhenPresent(t *testing.T) {
	cfg := Config{Xsize: 640, Ysize: 480}
	x, y := AutoCanvasSize(cfg, nil)
	if x != 640 || y != 480 {
		t.Fatalf("got %d,%d want 640,480", x, y)
	}
}

func TestAutoCanvasSizeExpandsAcrossFrames(t *testing.T) {
	frames := []FrameSpec{
		{Xsize: 100, Ysize: 100},
		{CropX0: 50, CropY0: 50, Xsize: 100, Ysize: 100}, // extends to 150x150
	}
	x, y := AutoCanvasSize(Config{}, frames)
	if x != 150 || y != 150 {
		t.Fatalf("got %d,%d want 150,150", x, y)
	}
}

func TestReconcileTicksPerSecondExplicitOverride(t *testing.T) {
	cfg := Config{TicksPerSecond: "30/1"}
	num, den, err := ReconcileTicksPerSecond(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if num != 30 || den != 1 {
		t.Fatalf("got %d/%d want 30/1", num, den)
	}
}

func TestReconcileTicksPerSecondExplicitBareNumerator(t *testing.T) {
	cfg := Config{TicksPerSecond: "24"}
	num, den, err := ReconcileTicksPerSecond(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if num != 24 || den != 1 {
		t.Fatalf("got %d/%d want 24/1", num, den)
	}
}

func TestReconcileTicksPerSecondGcdOfDurations(t *testing.T) {
	frames := []FrameSpec{{DurationMs: u32(40)}, {DurationMs: u32(60)}}
	num, den, err := ReconcileTicksPerSecond(Config{}, frames)
	if err != nil {
		t.Fatal(err)
	}
	// gcd(40,60) = 20, so 1000/20 = 50.
	if num != 50 || den != 1 {
		t.Fatalf("got %d/%d want 50/1", num, den)
	}
}

func TestReconcileTicksPerSecondDefaultsWhenNoDurations(t *testing.T) {
	num, den, err := ReconcileTicksPerSecond(Config{}, []FrameSpec{{}})
	if err != nil {
		t.Fatal(err)
	}
	if num != defaultTicksNumerator || den != defaultTicksDenom {
		t.Fatalf("got %d/%d want %d/%d", num, den, defaultTicksNumerator, defaultTicksDenom)
	}
}

func TestMaxFieldsTakePerFieldMaximum(t *testing.T) {
	frames := []FrameSpec{
		{BitDepth: 8, AlphaBits: 0, NumColorChannels: 1},
		{BitDepth: 16, AlphaBits: 8, NumColorChannels: 3},
	}
	if MaxBitDepth(frames) != 16 {
		t.Fatal("MaxBitDepth")
	}
	if MaxAlphaBits(frames) != 8 {
		t.Fatal("MaxAlphaBits")
	}
	if MaxColorChannels(frames) != 3 {
		t.Fatal("MaxColorChannels")
	}
}

func TestHasAnyAlpha(t *testing.T) {
	if HasAnyAlpha([]FrameSpec{{HasAlpha: false}, {HasAlpha: false}}) {
		t.Fatal("expected false")
	}
	if !HasAnyAlpha([]FrameSpec{{HasAlpha: false}, {HasAlpha: true}}) {
		t.Fatal("expected true")
	}
}

func srgb() *jxl.ColorProfile {
	return &jxl.ColorProfile{Encoded: &jxl.EncodedProfile{
		ColorSpace: jxl.ColorSpaceRGB, WhitePoint: jxl.WhiteD65,
		Primaries: jxl.PrimariesSRGB, TransferFunction: jxl.TransferSRGB,
	}}
}

func TestChooseColorProfilePrefersExplicit(t *testing.T) {
	explicit := srgb()
	got := ChooseColorProfile(explicit, []*jxl.ColorProfile{nil}, false)
	if got.Encoded == nil || got.Encoded.ColorSpace != jxl.ColorSpaceRGB {
		t.Fatal("expected explicit profile")
	}
}

func TestChooseColorProfileFallsBackToDefaultSRGB(t *testing.T) {
	got := ChooseColorProfile(nil, []*jxl.ColorProfile{nil, nil}, false)
	if got.Encoded == nil || got.Encoded.ColorSpace != jxl.ColorSpaceRGB {
		t.Fatal("expected default sRGB")
	}
}

func TestChooseColorProfileGraySRGBWhenAllGray(t *testing.T) {
	got := ChooseColorProfile(nil, nil, true)
	if got.Encoded == nil || got.Encoded.ColorSpace != jxl.ColorSpaceGray {
		t.Fatal("expected gray default")
	}
}

func TestCheckProfileCompatibilityWarnsOnce(t *testing.T) {
	a := srgb()
	b := &jxl.ColorProfile{Encoded: &jxl.EncodedProfile{
		ColorSpace: jxl.ColorSpaceRGB, WhitePoint: jxl.WhiteE,
		Primaries: jxl.PrimariesSRGB, TransferFunction: jxl.TransferSRGB,
	}}
	warning, ok := CheckProfileCompatibility([]*jxl.ColorProfile{a, b})
	if !ok || warning == "" {
		t.Fatal("expected a warning for mismatched white points")
	}
}

func TestCheckProfileCompatibilitySilentWhenAllEquivalent(t *testing.T) {
	a, b := srgb(), srgb()
	_, ok := CheckProfileCompatibility([]*jxl.ColorProfile{a, b})
	if ok {
		t.Fatal("expected no warning for equivalent profiles")
	}
}
