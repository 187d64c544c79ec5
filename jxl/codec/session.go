// License: MIT Copyright: 2026, jxltk contributors

// Package codec declares the CodecSession adapter contract (spec.md §4.2):
// a thin, pure translation of the underlying event-driven native JXL
// decoding library. jxl.Decoder drives a Session; it never talks to the
// native library directly.
package codec

import (
	"errors"
	"fmt"

	"golang.org/x/exp/maps"
)

var _ = fmt.Print

// ErrUnavailable is returned by NewLibjxlSession when this build has no
// native codec backend linked in (cgo disabled). jxl.Decoder converts it to
// jxl.ErrCodecUnavailable.
var ErrUnavailable = errors.New("codec: built without a libjxl backend (cgo disabled)")

// Event is one of the surface events the session's Process loop can report.
type Event int

const (
	EventSuccess Event = iota
	EventNeedMoreInput
	EventNeedOutBuffer
	EventNeedJpegOutBuffer
	EventBoxNeedMoreOutput
	EventJpegNeedMoreOutput
	EventBasicInfo
	EventFrame
	EventColor
	EventBox
	EventJpegReconstruction
	EventFullImage
	EventError
)

func (e Event) String() string {
	switch e {
	case EventSuccess:
		return "Success"
	case EventNeedMoreInput:
		return "NeedMoreInput"
	case EventNeedOutBuffer:
		return "NeedOutBuffer"
	case EventNeedJpegOutBuffer:
		return "NeedJpegOutBuffer"
	case EventBoxNeedMoreOutput:
		return "BoxNeedMoreOutput"
	case EventJpegNeedMoreOutput:
		return "JpegNeedMoreOutput"
	case EventBasicInfo:
		return "BasicInfo"
	case EventFrame:
		return "Frame"
	case EventColor:
		return "Color"
	case EventBox:
		return "Box"
	case EventJpegReconstruction:
		return "JpegReconstruction"
	case EventFullImage:
		return "FullImage"
	case EventError:
		return "Error"
	default:
		return "Unknown"
	}
}

// EventSet is a small generic set, adapted from the teacher's
// tools/utils/set.go (itself built on golang.org/x/exp/maps).
type EventSet struct {
	items map[Event]struct{}
}

func NewEventSet(initial ...Event) *EventSet {
	s := &EventSet{items: make(map[Event]struct{}, len(initial))}
	s.AddItems(initial...)
	return s
}

func (s *EventSet) AddItems(vals ...Event) {
	for _, v := range vals {
		s.items[v] = struct{}{}
	}
}

func (s *EventSet) Remove(val Event) { delete(s.items, val) }
func (s *EventSet) Has(val Event) bool {
	_, ok := s.items[val]
	return ok
}
func (s *EventSet) Len() int { return len(s.items) }

func (s *EventSet) Clone() *EventSet {
	c := NewEventSet()
	for k := range s.items {
		c.items[k] = struct{}{}
	}
	return c
}

func (s *EventSet) AsSlice() []Event { return maps.Keys(s.items) }

// ICCSizeKind distinguishes the two ICC-size getters the native library
// exposes: the size after JXL's own re-serialisation ("exact") and the raw
// embedded size as found in the stream ("raw").
type ICCSizeKind int

const (
	ICCSizeExact ICCSizeKind = iota
	ICCSizeRaw
)

// Session is the CodecSession adapter contract (spec.md §4.2). All methods
// return native-ish errors; jxl.Decoder is responsible for converting those
// into the *jxl.Error taxonomy per spec.md §7.
type Session interface {
	Subscribe(events *EventSet) error

	SetInput(b []byte) error
	CloseInput()
	// ReleaseInput returns the number of bytes of the last SetInput call the
	// codec had not yet consumed.
	ReleaseInput() int

	Process() (Event, error)

	BasicInfo() (BasicInfo, error)
	FrameHeader() (FrameHeader, error)
	FrameName() (string, bool, error)
	ExtraChannelInfo(index int) (ExtraChannelInfo, error)
	ExtraChannelName(index int) (string, bool, error)
	ExtraChannelBlendInfo(index int) (ExtraChannelBlendInfo, error)

	// BoxType reports the current box's type. decompressed mirrors
	// JxlDecoderGetBoxType's own parameter: false returns the raw on-disk
	// type (which is "brob" for a Brotli-wrapped box), true resolves through
	// to the type the box decompresses to.
	BoxType(decompressed bool) (raw [4]byte, err error)
	BoxSize(kind ICCSizeKind) (uint64, error)

	ICCProfileSize(target Target, kind ICCSizeKind) (int, error)
	ICCProfile(target Target) ([]byte, error)
	EncodedColorProfile(target Target) (EncodedProfile, bool, error)

	CodestreamLevel() (int, error)
	Orientation() (int, error)

	SetImageOutBuffer(format PixelFormat, buf []byte) error
	ReleaseImageOutBuffer() (unwritten int)
	SetExtraChannelOutBuffer(index int, format PixelFormat, buf []byte) error
	ReleaseExtraChannelOutBuffer(index int) (unwritten int)
	SetBoxOutBuffer(buf []byte) error
	ReleaseBoxOutBuffer() (unwritten int)
	SetJpegOutBuffer(buf []byte) error
	ReleaseJpegOutBuffer() (unwritten int)

	SetDecompressBoxes(enabled bool) error
	SetCoalescing(enabled bool) error
	SetKeepOrientation(enabled bool) error
	SetUnpremultiplyAlpha(enabled bool) error
	SetPreferredColorProfile(enc *EncodedProfile, icc []byte) (accepted bool, err error)

	Rewind() error
	SkipFrames(n int) error
	SkipCurrentFrame() error
	SetParallelRunner(runner ParallelRunner) error

	Close() error
}

// ParallelRunner is a worker pool a Session may use to parallelise pixel
// decoding of a single frame (spec.md §5). It is implemented by
// internal/workerpool.Pool. LibjxlSession ignores it and drives libjxl with
// its own JxlThreadParallelRunner.
type ParallelRunner interface {
	// Run executes fn(start, end) across implementation-chosen concurrent
	// slices covering [0, n).
	Run(n int, fn func(start, end int)) error
	NumWorkers() int
}

// HaveBrotli reports whether this build can decompress "brob" boxes. This
// build never links a Brotli-capable dependency (see DESIGN.md's dropped
// dependency ledger), so it is always false; BoxContent callers asking for
// decompression always get jxl.NoBrotli.
const HaveBrotli = false
