// License: MIT Copyright: 2026, jxltk contributors

package compose

import (
	"context"
	"fmt"

	"github.com/alistair7/jxltk/jxl"
	"github.com/alistair7/jxltk/jxl/pixmap"
)

// Composer orchestrates N input frames and M metadata boxes into one output
// JXL (spec.md §4.6). Run is shaped around a low-level encoder collaborator
// that is itself out of scope for this module (spec.md §1); Composer only
// fixes the call's signature so a real encoder can be plugged in later.
type Composer interface {
	Run(ctx context.Context, enc jxl.Encoder, cfg Config) error
}

// Encoder is declared in the jxl package; compose only references its name
// here so Composer's signature is concrete without importing an
// implementation.

const losslessDistanceThreshold = 0.001

// ValidateInvariants checks the composer's pre-encode invariants that don't
// depend on decoding any pixels (spec.md §4.6): at least one frame; canvas
// and intrinsic dimensions are each either both present or both absent;
// the ticks-per-second denominator, once reconciled, is nonzero.
func ValidateInvariants(cfg Config) error {
	if len(cfg.Frames) == 0 {
		return invalidConfigErr("at least one frame is required")
	}
	if (cfg.Xsize == 0) != (cfg.Ysize == 0) {
		return invalidConfigErr("xsize and ysize must be both present or both absent")
	}
	if (cfg.IntrinsicXsize == 0) != (cfg.IntrinsicYsize == 0) {
		return invalidConfigErr("intrinsicXsize and intrinsicYsize must be both present or both absent")
	}
	for _, b := range cfg.Boxes {
		if isReservedBoxType(b.Type) {
			return invalidConfigErr(fmt.Sprintf("box type %q is reserved", string(b.Type[:])))
		}
	}
	if _, _, err := ReconcileTicksPerSecond(cfg, cfg.Frames); err != nil {
		return err
	}
	return nil
}

func invalidConfigErr(msg string) error { return fmt.Errorf("compose: %s", msg) }

// IsAnimated reports whether any frame has a positive duration, which forces
// the output to be marked as animated (spec.md §4.6).
func IsAnimated(frames []FrameSpec) bool {
	for _, f := range frames {
		if f.DurationMs != nil && *f.DurationMs > 0 {
			return true
		}
		if f.DurationTicks != nil && *f.DurationTicks > 0 {
			return true
		}
	}
	return false
}

// UsesOriginalProfile reports whether any frame's distance is below the
// lossless threshold (0.001), which requires the output to carry the
// original (not XYB) color profile (spec.md §4.6).
func UsesOriginalProfile(frames []FrameSpec) bool {
	for _, f := range frames {
		if f.Distance < losslessDistanceThreshold {
			return true
		}
	}
	return false
}

// PatchesGloballyDisabled reports whether any frame saves itself as
// reference slot 3, which forcibly disables patch generation for every
// frame in the output, not just that one (spec.md §4.6).
func PatchesGloballyDisabled(frames []FrameSpec) bool {
	for _, f := range frames {
		if f.SaveAsReference == referenceSlotDisablingPatches {
			return true
		}
	}
	return false
}

// AutoCanvasSize computes the canvas size when the config omits one: the
// max of x0+frame.xsize and y0+frame.ysize across all frames, considering
// only the positive axes (spec.md §4.6). If the config specifies an
// explicit size, that value is returned unchanged.
func AutoCanvasSize(cfg Config, frames []FrameSpec) (xsize, ysize uint32) {
	if cfg.Xsize != 0 && cfg.Ysize != 0 {
		return cfg.Xsize, cfg.Ysize
	}
	var maxX, maxY int64
	for _, f := range frames {
		if f.CropX0 > 0 {
			if right := int64(f.CropX0) + int64(f.Xsize); right > maxX {
				maxX = right
			}
		} else if int64(f.Xsize) > maxX {
			maxX = int64(f.Xsize)
		}
		if f.CropY0 > 0 {
			if bottom := int64(f.CropY0) + int64(f.Ysize); bottom > maxY {
				maxY = bottom
			}
		} else if int64(f.Ysize) > maxY {
			maxY = int64(f.Ysize)
		}
	}
	return uint32(maxX), uint32(maxY)
}

func gcdU32(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

const defaultTicksNumerator = 100
const defaultTicksDenom = 1

// ReconcileTicksPerSecond derives the output's ticks-per-second fraction:
// the config's explicit value when present, else 1000/gcd(durations_ms)
// reduced by that gcd when any frame supplies a millisecond duration, else
// the default 100/1 (spec.md §4.6). An explicit value is parsed by
// parseTicksPerSecond (config.go); a malformed "N/D" string or a zero
// denominator is returned as this package's plain "compose:"-prefixed
// error, which does not carry the jxl package's InvalidConfig kind.
func ReconcileTicksPerSecond(cfg Config, frames []FrameSpec) (numerator, denom uint32, err error) {
	if cfg.TicksPerSecond != "" {
		num, den, perr := parseTicksPerSecond(cfg.TicksPerSecond)
		if perr != nil {
			return 0, 0, perr
		}
		if den == 0 {
			return 0, 0, invalidConfigErr("ticksPerSecond denominator must not be zero")
		}
		return num, den, nil
	}

	var g uint32
	haveMs := false
	for _, f := range frames {
		if f.DurationMs == nil {
			continue
		}
		haveMs = true
		if *f.DurationMs == 0 {
			continue
		}
		if g == 0 {
			g = *f.DurationMs
		} else {
			g = gcdU32(g, *f.DurationMs)
		}
	}
	if haveMs && g != 0 {
		r := gcdU32(1000, g)
		return 1000 / r, g / r, nil
	}
	return defaultTicksNumerator, defaultTicksDenom, nil
}

// MaxBitDepth, MaxAlphaBits and MaxColorChannels each take the per-field
// maximum over all inputs (spec.md §4.6): the output's format must be able
// to represent every input frame without loss.
func MaxBitDepth(frames []FrameSpec) int {
	max := 0
	for _, f := range frames {
		if f.BitDepth > max {
			max = f.BitDepth
		}
	}
	return max
}

func MaxAlphaBits(frames []FrameSpec) int {
	max := 0
	for _, f := range frames {
		if f.AlphaBits > max {
			max = f.AlphaBits
		}
	}
	return max
}

func MaxColorChannels(frames []FrameSpec) int {
	max := 0
	for _, f := range frames {
		if f.NumColorChannels > max {
			max = f.NumColorChannels
		}
	}
	return max
}

// HasAnyAlpha reports whether the output needs one alpha extra channel:
// true iff at least one input frame carries alpha (spec.md §4.6).
func HasAnyAlpha(frames []FrameSpec) bool {
	for _, f := range frames {
		if f.HasAlpha {
			return true
		}
	}
	return false
}

// ChooseColorProfile implements spec.md §4.6's precedence: an explicit
// config color profile wins; else the first non-empty input's profile;
// else sRGB (gray sRGB if every input is gray). profiles[i] is nil for a
// frame whose profile is unknown/empty. allGray controls which default
// sRGB variant is picked when no input supplies a profile at all.
func ChooseColorProfile(explicit *jxl.ColorProfile, profiles []*jxl.ColorProfile, allGray bool) jxl.ColorProfile {
	if explicit != nil {
		return *explicit
	}
	for _, p := range profiles {
		if p != nil {
			return *p
		}
	}
	return defaultSRGB(allGray)
}

func defaultSRGB(gray bool) jxl.ColorProfile {
	space := jxl.ColorSpaceRGB
	if gray {
		space = jxl.ColorSpaceGray
	}
	return jxl.ColorProfile{Encoded: &jxl.EncodedProfile{
		ColorSpace:       space,
		WhitePoint:       jxl.WhiteD65,
		Primaries:        jxl.PrimariesSRGB,
		TransferFunction: jxl.TransferSRGB,
		RenderingIntent:  jxl.IntentRelative,
	}}
}

// CheckProfileCompatibility scans profiles pairwise against the first
// non-nil one, using jxl.Equivalent, and returns at most one warning: the
// spec's "warn once on the first non-equivalent pair and stop checking"
// rule (spec.md §4.6).
func CheckProfileCompatibility(profiles []*jxl.ColorProfile) (warning string, ok bool) {
	var reference *jxl.ColorProfile
	for i, p := range profiles {
		if p == nil {
			continue
		}
		if reference == nil {
			reference = p
			continue
		}
		if !jxl.Equivalent(*reference, *p) {
			return fmt.Sprintf("frame %d's color profile differs from the output profile; colors may shift", i), true
		}
	}
	return "", false
}

// ScanOpaqueAlpha reports, for each buffered pixmap, whether its alpha
// channel is uniformly maximal and can therefore be dropped by the
// opaque-alpha optimisation (spec.md §4.6's last bullet). Each pixmap must
// already be buffered (pixmap.Pixmap.EnsureBuffered).
func ScanOpaqueAlpha(pixmaps []*pixmap.Pixmap) ([]bool, error) {
	result := make([]bool, len(pixmaps))
	for i, p := range pixmaps {
		opaque, err := p.IsFullyOpaque()
		if err != nil {
			return nil, err
		}
		result[i] = opaque
	}
	return result, nil
}

// DropAlphaChannel applies the opaque-alpha optimisation to every pixmap
// ScanOpaqueAlpha flagged as uniformly opaque, stripping their alpha
// channel so the output never encodes a channel that carries no
// information (spec.md §4.6's last bullet).
func DropAlphaChannel(pixmaps []*pixmap.Pixmap, opaque []bool) error {
	for i, p := range pixmaps {
		if !opaque[i] {
			continue
		}
		if err := p.DropAlphaChannel(); err != nil {
			return err
		}
	}
	return nil
}
