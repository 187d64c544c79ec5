// License: MIT Copyright: 2026, jxltk contributors

// Package compose implements the merge-composer invariants of spec.md §4.6
// at the interface level: the pure transforms a real encoder would need
// (canvas sizing, ticks-per-second reconciliation, output bit depth/alpha
// derivation, color profile selection) are concrete, but Composer.Run itself
// only declares the shape of the call into the low-level encoder, which is
// out of scope (spec.md §1).
package compose

import (
	"strconv"
	"strings"
)

// Config is the merge configuration document's recognised top-level keys
// (spec.md §6). Decoding the document itself from JSON/YAML/etc. is out of
// scope; Config is the in-memory shape a caller builds and hands to a
// Composer.
type Config struct {
	Loops             uint32     `json:"loops,omitempty"`
	TicksPerSecond    string     `json:"ticksPerSecond,omitempty"` // "N" or "N/D"
	Orientation       int        `json:"orientation,omitempty"`
	Xsize             uint32     `json:"xsize,omitempty"`
	Ysize             uint32     `json:"ysize,omitempty"`
	IntrinsicXsize    uint32     `json:"intrinsicXsize,omitempty"`
	IntrinsicYsize    uint32     `json:"intrinsicYsize,omitempty"`
	// CodestreamLevel is passed to the encoder; whether a "jxll" box is
	// written is decided by the encoder library, not by this field.
	CodestreamLevel   int        `json:"codestreamLevel,omitempty"`
	BrotliEffort      int        `json:"brotliEffort,omitempty"`
	Color             ColorSpec  `json:"color,omitempty"`
	Frames            []FrameSpec `json:"frames,omitempty"`
	Boxes             []BoxSpec  `json:"boxes,omitempty"`
	FrameDefaults     *FrameSpec `json:"frameDefaults,omitempty"`
	BoxDefaults       *BoxSpec   `json:"boxDefaults,omitempty"`
}

// ColorSpec selects the output color profile: either copied verbatim from a
// file, or built field-by-field from CICP-style enumerated names.
type ColorSpec struct {
	File       string            `json:"file,omitempty"`
	CICP       map[string]string `json:"cicp,omitempty"`
}

// FrameSpec is one input frame and the per-frame encoding controls spec.md
// §6 lists. DurationMs and DurationTicks are mutually exclusive.
type FrameSpec struct {
	File            string `json:"file,omitempty"`
	Name            string `json:"name,omitempty"`
	BlendMode       string `json:"blendMode,omitempty"`
	BlendSource     int    `json:"blendSource,omitempty"`
	CopyBoxes       bool   `json:"copyBoxes,omitempty"`
	CropX0          int32  `json:"cropX0,omitempty"`
	CropY0          int32  `json:"cropY0,omitempty"`
	Xsize           uint32 `json:"xsize,omitempty"`
	Ysize           uint32 `json:"ysize,omitempty"`
	Distance        float64 `json:"distance,omitempty"`
	DurationMs      *uint32 `json:"durationMs,omitempty"`
	DurationTicks   *uint32 `json:"durationTicks,omitempty"`
	Effort          int    `json:"effort,omitempty"`
	MaPrevChannels  int    `json:"maPrevChannels,omitempty"`
	MaTreeLearnPct  float64 `json:"maTreeLearnPct,omitempty"`
	Patches         bool   `json:"patches,omitempty"`
	SaveAsReference int    `json:"saveAsReference,omitempty"`

	// NumColorChannels, BitDepth, AlphaBits and HasAlpha describe the
	// decoded input's format and are filled in by the caller (normally by
	// inspecting a pixmap.Pixmap), not parsed from the document.
	NumColorChannels int  `json:"-"`
	BitDepth         int  `json:"-"`
	AlphaBits        int  `json:"-"`
	HasAlpha         bool `json:"-"`
}

// BoxSpec is one metadata box to splice into the output container.
type BoxSpec struct {
	Type     [4]byte `json:"type"`
	File     string  `json:"file,omitempty"`
	Compress bool    `json:"compress,omitempty"`
}

const referenceSlotDisablingPatches = 3

// reservedBoxTypes are the two fully-reserved box types spec.md §6
// disallows a caller from specifying directly, in addition to any type
// beginning with "JXL" (case-insensitive).
var reservedBoxTypes = map[string]bool{"ftyp": true, "jbrd": true}

func isReservedBoxType(t [4]byte) bool {
	s := string(t[:])
	if len(s) >= 3 && strings.EqualFold(s[:3], "JXL") {
		return true
	}
	return reservedBoxTypes[s]
}

// parseTicksPerSecond parses the "N" or "N/D" forms of Config.TicksPerSecond
// (spec.md §6).
func parseTicksPerSecond(s string) (numerator, denom uint32, err error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return 0, 0, invalidConfigErr("ticksPerSecond: " + err.Error())
	}
	if !found {
		return uint32(n), 1, nil
	}
	d, err := strconv.ParseUint(den, 10, 32)
	if err != nil {
		return 0, 0, invalidConfigErr("ticksPerSecond: " + err.Error())
	}
	return uint32(n), uint32(d), nil
}
