// License: MIT Copyright: 2026, jxltk contributors

package jxl

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/alistair7/jxltk/internal/workerpool"
	"github.com/alistair7/jxltk/jxl/codec"
	"github.com/alistair7/jxltk/jxl/inputbuffer"
)

var _ = fmt.Print

// Flags affect decoded values (spec.md §4.3).
type Flags struct {
	NoCoalesce         bool
	KeepOrientation    bool
	UnpremultiplyAlpha bool
}

// Hints affect subscription and buffering strategy only, never correctness.
type Hints struct {
	WantBoxes     bool
	NoPixels      bool
	NoColorProfile bool
	WantJpeg      bool
}

// ExtraChannelRequest asks frame_pixels to also decode one extra channel.
type ExtraChannelRequest struct {
	Index  int
	Format PixelFormat
	Buf    []byte
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
var codestreamSignature = []byte{0xFF, 0x0A}
var containerSignature = []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' ', 0x0D, 0x0A, 0x87, 0x0A}

// Decoder is the lazy, random-access facade over a streaming codec session
// (spec.md §4.3). It is not concurrency-safe: one goroutine at a time.
type Decoder struct {
	// id distinguishes one Decoder instance from another in error messages
	// and logs when several are alive at once, e.g. one per input of a
	// merge (spec.md §4.6).
	id string

	workers int
	session codec.Session

	ib *inputbuffer.InputBuffer

	flags Flags
	hints Hints

	state DecoderState

	basicInfo     BasicInfo
	extraChannels []ExtraChannelInfo

	frames []FrameRecord
	boxes  []BoxRecord
	jpegCount int

	origProfile ColorProfile
	dataProfile ColorProfile

	nextFrameIndex, nextBoxIndex, nextJpegIndex int
	eventsSubbed                                *codec.EventSet

	codestreamLevel         int
	codestreamLevelComputed bool

	// fedFrom/fedLen track the slice of the InputBuffer window last handed
	// to the codec session via SetInput, so NeedMoreInput can compute how
	// much was actually consumed via Session.ReleaseInput.
	fedFrom, fedLen int
}

// New creates an empty Decoder. workers is the size of the worker pool
// handed to the codec session for single-frame pixel decoding; 0 picks the
// codec's own default (spec.md §5).
func New(workers int) *Decoder {
	return &Decoder{id: uuid.NewString(), workers: workers, codestreamLevel: -1}
}

// NewWithSession is for tests: it injects a codec.Session directly instead
// of constructing the real libjxl-backed one.
func NewWithSession(session codec.Session) *Decoder {
	return &Decoder{id: uuid.NewString(), session: session, codestreamLevel: -1}
}

// ID is an opaque, process-unique identifier for this Decoder instance, for
// disambiguating one of several concurrently open decoders in logs and
// error messages (e.g. one per source frame in a merge, spec.md §4.6).
func (d *Decoder) ID() string { return d.id }

func newStop(events *codec.EventSet, frameIndex, boxIndex, jpegIndex int) stopConditions {
	return stopConditions{events: events, frameIndex: frameIndex, boxIndex: boxIndex, jpegIndex: jpegIndex}
}

func stopNone() stopConditions { return newStop(nil, -1, -1, -1) }

type stopConditions struct {
	events                         *codec.EventSet
	frameIndex, boxIndex, jpegIndex int
}

func addEvent(s *codec.EventSet, ev codec.Event) *codec.EventSet {
	c := s.Clone()
	c.AddItems(ev)
	return c
}

// --- Opening -----------------------------------------------------------

func (d *Decoder) initialSubscription() *codec.EventSet {
	evs := []codec.Event{codec.EventBasicInfo, codec.EventFrame}
	if !d.hints.NoColorProfile {
		evs = append(evs, codec.EventColor)
	}
	if d.hints.WantBoxes {
		evs = append(evs, codec.EventBox)
	}
	if d.hints.WantJpeg {
		evs = append(evs, codec.EventJpegReconstruction)
	}
	return codec.NewEventSet(evs...)
}

func (d *Decoder) openCommon(flags Flags, hints Hints) error {
	d.flags = flags
	d.hints = hints
	d.frames = nil
	d.boxes = nil
	d.jpegCount = 0
	d.nextFrameIndex, d.nextBoxIndex, d.nextJpegIndex = 0, 0, 0
	d.codestreamLevelComputed = false
	d.codestreamLevel = -1
	d.state = DecoderState{IsCoalescing: !flags.NoCoalesce}

	if d.session == nil {
		s, err := codec.NewLibjxlSession(d.workers)
		if err != nil {
			if err == codec.ErrUnavailable {
				return ErrCodecUnavailable
			}
			return ioErr("creating codec session", err)
		}
		d.session = s
	}
	d.eventsSubbed = d.initialSubscription()
	if err := d.session.Subscribe(d.eventsSubbed); err != nil {
		return ioErr("subscribing to codec events", err)
	}
	if err := d.session.SetParallelRunner(workerpool.New(d.workers)); err != nil {
		return ioErr("wiring worker pool", err)
	}
	if err := d.session.SetCoalescing(!flags.NoCoalesce); err != nil {
		return ioErr("setting coalescing", err)
	}
	if err := d.session.SetKeepOrientation(flags.KeepOrientation); err != nil {
		return ioErr("setting keep-orientation", err)
	}
	if err := d.session.SetUnpremultiplyAlpha(flags.UnpremultiplyAlpha); err != nil {
		return ioErr("setting unpremultiply-alpha", err)
	}

	if err := d.ib.Prime(); err != nil {
		return ioErr("priming input buffer", err)
	}
	if err := d.checkSignature(); err != nil {
		return err
	}
	data, decOff := d.ib.Window()
	d.fedFrom, d.fedLen = decOff, len(data)-decOff
	if err := d.session.SetInput(data[decOff:]); err != nil {
		return ioErr("feeding initial input", err)
	}
	if d.ib.IsFullyBuffered() {
		d.session.CloseInput()
		d.state.WholeFileBuffered = true
	}
	d.state.IsOpen = true
	return nil
}

func (d *Decoder) checkSignature() error {
	data, _ := d.ib.Window()
	if hasPrefix(data, containerSignature) {
		return nil
	}
	if hasPrefix(data, codestreamSignature) {
		d.state.SeenAllBoxes = true
		return nil
	}
	if hasPrefix(data, pngSignature) {
		return notJxlErr("this is a PNG file — convert it to JXL first")
	}
	return notJxlErr("input does not start with a recognised JXL signature")
}

func hasPrefix(data, sig []byte) bool {
	return len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig)
}

// OpenFile opens a JXL file from a path.
func (d *Decoder) OpenFile(path string, flags Flags, hints Hints, bufKiB int) error {
	f, err := os.Open(path)
	if err != nil {
		return ioErr("opening file", err)
	}
	var sizeHint int64 = -1
	if st, err := f.Stat(); err == nil {
		sizeHint = st.Size()
	}
	d.ib = inputbuffer.NewStream(f, bufKiB, sizeHint)
	return d.openCommon(flags, hints)
}

// OpenStream opens a JXL source from a possibly non-seekable reader. The
// reader is borrowed, not owned: the caller remains responsible for closing it.
func (d *Decoder) OpenStream(r io.Reader, flags Flags, hints Hints, bufKiB int) error {
	d.ib = inputbuffer.NewStream(r, bufKiB, -1)
	return d.openCommon(flags, hints)
}

// OpenMemory opens a JXL source from a caller-owned byte range. The whole
// file is buffered immediately.
func (d *Decoder) OpenMemory(b []byte, flags Flags, hints Hints) error {
	d.ib = inputbuffer.NewMemory(b)
	return d.openCommon(flags, hints)
}

// Close idempotently releases the decoder's buffers and codec session.
func (d *Decoder) Close() error {
	if !d.state.IsOpen {
		return nil
	}
	var err error
	if d.session != nil {
		err = d.session.Close()
	}
	*d = Decoder{id: d.id, workers: d.workers, codestreamLevel: -1}
	return err
}

// IsFullyBuffered reports whether the whole source is contiguous in memory.
func (d *Decoder) IsFullyBuffered() bool { return d.state.WholeFileBuffered }

// SetCms records that a color-management module is available, required
// before requesting an ICC output profile override (spec.md §4.3).
func (d *Decoder) SetCms(have bool) { d.state.HaveCms = have }

// --- Central event loop --------------------------------------------------

func (d *Decoder) handleFatal(err error) error {
	_ = d.rewind(d.eventsSubbed)
	return corruptedErrw(fmt.Sprintf("decoder %s: codec reported a fatal condition", d.id), err)
}

func (d *Decoder) feedMore() error {
	unconsumed := d.session.ReleaseInput()
	consumed := d.fedLen - unconsumed
	if consumed < 0 {
		consumed = 0
	}
	d.ib.MarkConsumed(d.fedFrom + consumed)
	noMore, err := d.ib.Replenish()
	if err != nil {
		if inputbuffer.IsStall(err) {
			return corruptedErr("codec stalled: consumed zero bytes of a non-empty buffer")
		}
		return ioErr("replenishing input", err)
	}
	data, decOff := d.ib.Window()
	d.fedFrom, d.fedLen = decOff, len(data)-decOff
	if err := d.session.SetInput(data[decOff:]); err != nil {
		return ioErr("feeding input", err)
	}
	if noMore {
		d.session.CloseInput()
		d.state.WholeFileBuffered = true
	}
	return nil
}

func (d *Decoder) onBasicInfo() error {
	bi, err := d.session.BasicInfo()
	if err != nil {
		return err
	}
	d.basicInfo = bi
	d.state.GotBasicInfo = true
	d.eventsSubbed.Remove(codec.EventBasicInfo)
	return nil
}

func (d *Decoder) onColor() error {
	d.eventsSubbed.Remove(codec.EventColor)
	d.state.GotColor = true
	for _, target := range []Target{TargetOriginal, TargetData} {
		profile := &d.origProfile
		gotFlag := &d.state.GotOrigColorEnc
		if target == TargetData {
			profile = &d.dataProfile
			gotFlag = &d.state.GotDataColorEnc
		}
		if enc, ok, err := d.session.EncodedColorProfile(target); err == nil && ok {
			e := enc
			profile.Encoded = &e
			*gotFlag = true
		}
		if icc, err := d.session.ICCProfile(target); err == nil && icc != nil {
			profile.ICC = icc
		}
	}
	return nil
}

func (d *Decoder) onFrame() error {
	idx := d.nextFrameIndex
	if idx >= len(d.frames) {
		hdr, err := d.session.FrameHeader()
		if err != nil {
			return err
		}
		rec := FrameRecord{Header: hdr}
		if d.flags.NoCoalesce && d.basicInfo.NumExtraChannels > 0 {
			blends := make([]ExtraChannelBlendInfo, d.basicInfo.NumExtraChannels)
			for i := range blends {
				bi, err := d.session.ExtraChannelBlendInfo(i)
				if err != nil {
					return err
				}
				blends[i] = bi
			}
			rec.ExtraChannelBlend = blends
		}
		if hdr.NameLength > 0 {
			name, ok, err := d.session.FrameName()
			if err != nil {
				return err
			}
			rec.Name, rec.HasName = name, ok
		}
		d.frames = append(d.frames, rec)
	}
	d.nextFrameIndex++
	if !d.flags.NoCoalesce && d.frames[idx].Header.IsLast {
		d.state.SeenAllFrames = true
	}
	return nil
}

func (d *Decoder) onBox() error {
	idx := d.nextBoxIndex
	if idx >= len(d.boxes) {
		raw, err := d.session.BoxType(false)
		if err != nil {
			return err
		}
		rec := BoxRecord{Type: raw}
		if string(raw[:]) == "brob" {
			rec.Compressed = true
			inner, err := d.session.BoxType(true)
			if err != nil {
				return err
			}
			rec.Type = inner
		}
		size, err := d.session.BoxSize(codec.ICCSizeExact)
		if err != nil {
			return err
		}
		if size == 0 {
			raw2, err := d.session.BoxSize(codec.ICCSizeRaw)
			if err != nil {
				return err
			}
			if raw2 == 0 {
				rec.Unbounded = true
			}
		}
		rec.Size = size
		d.boxes = append(d.boxes, rec)
	}
	d.nextBoxIndex++
	return nil
}

// processUntil drives the codec session, performing the documented side
// effect for each surface event exactly once, until one of the stop
// conditions holds or the codec reports Success (spec.md §4.3).
func (d *Decoder) processUntil(sc stopConditions) (codec.Event, error) {
	for {
		ev, err := d.session.Process()
		if err != nil {
			return ev, d.handleFatal(err)
		}
		switch ev {
		case codec.EventError:
			return ev, d.handleFatal(fmt.Errorf("codec reported JXL_DEC_ERROR"))
		case codec.EventNeedMoreInput:
			if err := d.feedMore(); err != nil {
				return ev, err
			}
			continue
		case codec.EventBasicInfo:
			if err := d.onBasicInfo(); err != nil {
				return ev, d.handleFatal(err)
			}
		case codec.EventColor:
			if err := d.onColor(); err != nil {
				return ev, d.handleFatal(err)
			}
		case codec.EventFrame:
			if err := d.onFrame(); err != nil {
				return ev, d.handleFatal(err)
			}
		case codec.EventBox:
			if err := d.onBox(); err != nil {
				return ev, d.handleFatal(err)
			}
		case codec.EventNeedOutBuffer:
			if err := d.session.SkipCurrentFrame(); err != nil {
				return ev, d.handleFatal(err)
			}
			continue
		case codec.EventJpegReconstruction:
			d.jpegCount++
			d.nextJpegIndex++
		case codec.EventFullImage:
		case codec.EventSuccess:
			if d.eventsSubbed.Has(codec.EventFrame) {
				d.state.SeenAllFrames = true
			}
			if d.eventsSubbed.Has(codec.EventBox) {
				d.state.SeenAllBoxes = true
			}
			if d.eventsSubbed.Has(codec.EventJpegReconstruction) {
				d.state.SeenAllJpeg = true
			}
			return ev, nil
		default:
			return ev, d.handleFatal(fmt.Errorf("unexpected codec event %v outside its dedicated reader", ev))
		}
		if sc.events != nil && sc.events.Has(ev) {
			return ev, nil
		}
		if sc.frameIndex >= 0 && len(d.frames) > sc.frameIndex {
			return ev, nil
		}
		if sc.boxIndex >= 0 && d.nextBoxIndex > sc.boxIndex {
			return ev, nil
		}
		if sc.jpegIndex >= 0 && d.nextJpegIndex > sc.jpegIndex {
			return ev, nil
		}
	}
}

// rewind implements the rewind protocol of spec.md §4.3: cached
// FrameRecords/BoxRecords/profiles/extra-channel info survive, only the
// per-rewind counters and status reset.
func (d *Decoder) rewind(newSubscription *codec.EventSet) error {
	if err := d.session.Rewind(); err != nil {
		return ioErr("rewinding codec", err)
	}
	d.eventsSubbed = newSubscription.Clone()
	if err := d.session.Subscribe(d.eventsSubbed); err != nil {
		return ioErr("re-subscribing after rewind", err)
	}
	d.nextFrameIndex, d.nextBoxIndex, d.nextJpegIndex = 0, 0, 0
	d.state.SeenAllFrames = false
	d.state.SeenAllBoxes = false
	d.state.SeenAllJpeg = false

	if err := d.ib.Rewind(); err != nil {
		if inputbuffer.IsNotSeekable(err) {
			return notSeekableErr("source does not support seeking back to the start")
		}
		return ioErr("rewinding input source", err)
	}
	data, decOff := d.ib.Window()
	d.fedFrom, d.fedLen = decOff, len(data)-decOff
	if err := d.session.SetInput(data[decOff:]); err != nil {
		return ioErr("re-feeding input after rewind", err)
	}
	if d.ib.IsFullyBuffered() {
		d.session.CloseInput()
	}
	return nil
}

// --- Basic info / extra channels / color profile ------------------------

func (d *Decoder) ensureBasicInfo() error {
	if !d.state.IsOpen {
		return usageErr("no file is open")
	}
	if d.state.GotBasicInfo {
		return nil
	}
	_, err := d.processUntil(newStop(codec.NewEventSet(codec.EventBasicInfo), -1, -1, -1))
	return err
}

func (d *Decoder) BasicInfo() (BasicInfo, error) {
	if err := d.ensureBasicInfo(); err != nil {
		return BasicInfo{}, err
	}
	return d.basicInfo, nil
}

func (d *Decoder) Xsize() (uint32, error) {
	bi, err := d.BasicInfo()
	return bi.Xsize, err
}

func (d *Decoder) Ysize() (uint32, error) {
	bi, err := d.BasicInfo()
	return bi.Ysize, err
}

func (d *Decoder) ExtraChannelInfo() ([]ExtraChannelInfo, error) {
	bi, err := d.BasicInfo()
	if err != nil {
		return nil, err
	}
	if d.extraChannels == nil {
		d.extraChannels = make([]ExtraChannelInfo, bi.NumExtraChannels)
		for i := range d.extraChannels {
			info, err := d.session.ExtraChannelInfo(i)
			if err != nil {
				return nil, d.handleFatal(err)
			}
			if name, ok, err := d.session.ExtraChannelName(i); err == nil && ok {
				info.Name, info.HasName = name, true
			}
			d.extraChannels[i] = info
		}
	}
	return d.extraChannels, nil
}

func (d *Decoder) ensureColor() error {
	if d.state.GotColor {
		return nil
	}
	if err := d.ensureBasicInfo(); err != nil {
		return err
	}
	if !d.eventsSubbed.Has(codec.EventColor) {
		if err := d.rewind(addEvent(d.eventsSubbed, codec.EventColor)); err != nil {
			return err
		}
	}
	_, err := d.processUntil(newStop(codec.NewEventSet(codec.EventColor), -1, -1, -1))
	return err
}

func (d *Decoder) ICCProfile(target Target) ([]byte, error) {
	if err := d.ensureColor(); err != nil {
		return nil, err
	}
	if target == TargetOriginal {
		return d.origProfile.ICC, nil
	}
	return d.dataProfile.ICC, nil
}

func (d *Decoder) EncodedColorProfile(target Target) (*EncodedProfile, error) {
	if err := d.ensureColor(); err != nil {
		return nil, err
	}
	if target == TargetOriginal {
		return d.origProfile.Encoded, nil
	}
	return d.dataProfile.Encoded, nil
}

// SetPreferredOutputProfile overrides the Data-target output profile
// (spec.md §4.3's "Output color profile override"). At most one of enc/icc
// should be set.
func (d *Decoder) SetPreferredOutputProfile(enc *EncodedProfile, icc []byte) (bool, error) {
	if d.state.DecodedSomePixels {
		return false, usageErr("cannot change the output profile after pixels have been decoded")
	}
	if icc != nil && !d.state.HaveCms {
		return false, usageErr("an ICC output profile requires a CMS to be set first")
	}
	d.dataProfile = ColorProfile{}
	d.state.GotDataColorEnc = false
	accepted, err := d.session.SetPreferredColorProfile(enc, icc)
	if err != nil {
		return false, d.handleFatal(err)
	}
	if !accepted {
		// Matches the backing library's documented silent-failure interaction
		// with non-XYB images (spec.md §9 open question #2): a plain false,
		// not an error.
		return false, nil
	}
	if e, ok, err := d.session.EncodedColorProfile(TargetData); err == nil && ok {
		d.dataProfile.Encoded = &e
		d.state.GotDataColorEnc = true
	}
	if iccBytes, err := d.session.ICCProfile(TargetData); err == nil && iccBytes != nil {
		d.dataProfile.ICC = iccBytes
	}
	return true, nil
}

// --- Frames ---------------------------------------------------------------

func (d *Decoder) gotoFrame(i int) error {
	if err := d.ensureBasicInfo(); err != nil {
		return err
	}
	if i < 0 {
		return indexOutOfRangeErr("negative frame index")
	}
	if i < len(d.frames) {
		return nil
	}
	if d.state.SeenAllFrames {
		return indexOutOfRangeErr(fmt.Sprintf("frame index %d is out of range", i))
	}
	if i < d.nextFrameIndex || !d.eventsSubbed.Has(codec.EventFrame) {
		if err := d.rewind(addEvent(d.eventsSubbed, codec.EventFrame)); err != nil {
			return err
		}
	}
	if toSkip := len(d.frames) - d.nextFrameIndex; toSkip > 0 {
		if err := d.session.SkipFrames(toSkip); err != nil {
			return d.handleFatal(err)
		}
		d.nextFrameIndex += toSkip
	}
	if _, err := d.processUntil(newStop(nil, i, -1, -1)); err != nil {
		return err
	}
	if i >= len(d.frames) {
		return indexOutOfRangeErr(fmt.Sprintf("frame index %d is out of range", i))
	}
	return nil
}

func (d *Decoder) ensureAllFrames() error {
	if err := d.ensureBasicInfo(); err != nil {
		return err
	}
	if d.state.SeenAllFrames {
		return nil
	}
	if !d.eventsSubbed.Has(codec.EventFrame) {
		if err := d.rewind(addEvent(d.eventsSubbed, codec.EventFrame)); err != nil {
			return err
		}
	}
	for !d.state.SeenAllFrames {
		if _, err := d.processUntil(stopNone()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) FrameCount() (int, error) {
	if err := d.ensureAllFrames(); err != nil {
		return 0, err
	}
	return len(d.frames), nil
}

func (d *Decoder) FrameInfo(i int) (FrameRecord, error) {
	if err := d.gotoFrame(i); err != nil {
		return FrameRecord{}, err
	}
	return d.frames[i], nil
}

func (d *Decoder) frameDims(i int) (xsize, ysize uint32) {
	xsize, ysize = d.basicInfo.Xsize, d.basicInfo.Ysize
	if d.flags.NoCoalesce {
		lay := d.frames[i].Header.LayerInfo
		if lay.Xsize > 0 {
			xsize = lay.Xsize
		}
		if lay.Ysize > 0 {
			ysize = lay.Ysize
		}
	}
	return
}

// FrameDimensions reports the pixel dimensions frame i will decode at: the
// canvas size when coalescing, or the frame's own cropped layer size
// otherwise (spec.md §4.4, used by pixmap.Pixmap.EnsureBuffered to size its
// allocation before a non-coalesced frame's true extent is known).
func (d *Decoder) FrameDimensions(i int) (xsize, ysize uint32, err error) {
	if err = d.gotoFrame(i); err != nil {
		return 0, 0, err
	}
	xsize, ysize = d.frameDims(i)
	return xsize, ysize, nil
}

// FramePixels fills buf (and any requested extra-channel buffers) with
// frame i's pixels in the given format (spec.md §4.3 "Pixels").
func (d *Decoder) FramePixels(i int, format PixelFormat, buf []byte, extra []ExtraChannelRequest) error {
	if err := d.gotoFrame(i); err != nil {
		return err
	}
	xsize, ysize := d.frameDims(i)

	for _, er := range extra {
		if er.Index < 0 || er.Index >= d.basicInfo.NumExtraChannels {
			return indexOutOfRangeErr("extra channel index out of range")
		}
		need, err := FrameBufferSize(xsize, ysize, er.Format)
		if err != nil {
			return err
		}
		if uint64(len(er.Buf)) < need {
			return bufferTooSmallErr("extra channel buffer too small")
		}
		if err := d.session.SetExtraChannelOutBuffer(er.Index, er.Format, er.Buf); err != nil {
			return d.handleFatal(err)
		}
	}

	mainBuf := buf
	mainFormat := format
	if mainBuf == nil {
		if len(extra) == 0 {
			return usageErr("frame_pixels needs either a main buffer or extra-channel requests")
		}
		// The underlying library emits nothing until a main image output
		// buffer is set, even if the caller only wants extra channels
		// (spec.md §9's documented "dummy buffer" workaround).
		mainFormat = PixelFormat{NumChannels: d.basicInfo.NumColorChannels, DataType: TypeUint8}
		need, err := FrameBufferSize(xsize, ysize, mainFormat)
		if err != nil {
			return err
		}
		mainBuf = make([]byte, need)
	} else {
		need, err := FrameBufferSize(xsize, ysize, format)
		if err != nil {
			return err
		}
		if uint64(len(buf)) < need {
			return bufferTooSmallErr("pixel buffer too small")
		}
	}
	if err := d.session.SetImageOutBuffer(mainFormat, mainBuf); err != nil {
		return d.handleFatal(err)
	}
	d.state.DecodedSomePixels = true
	_, err := d.processUntil(newStop(codec.NewEventSet(codec.EventFullImage), -1, -1, -1))
	d.session.ReleaseImageOutBuffer()
	for _, er := range extra {
		d.session.ReleaseExtraChannelOutBuffer(er.Index)
	}
	return err
}

// --- Boxes ------------------------------------------------------------

func (d *Decoder) gotoBox(i int) error {
	if err := d.ensureBasicInfo(); err != nil {
		return err
	}
	if i < 0 {
		return indexOutOfRangeErr("negative box index")
	}
	if i < len(d.boxes) {
		return nil
	}
	if d.state.SeenAllBoxes {
		return indexOutOfRangeErr(fmt.Sprintf("box index %d is out of range", i))
	}
	if i < d.nextBoxIndex || !d.eventsSubbed.Has(codec.EventBox) {
		if err := d.rewind(addEvent(d.eventsSubbed, codec.EventBox)); err != nil {
			return err
		}
	}
	if _, err := d.processUntil(newStop(nil, -1, i, -1)); err != nil {
		return err
	}
	if i >= len(d.boxes) {
		return indexOutOfRangeErr(fmt.Sprintf("box index %d is out of range", i))
	}
	return nil
}

func (d *Decoder) ensureAllBoxes() error {
	if err := d.ensureBasicInfo(); err != nil {
		return err
	}
	if d.state.SeenAllBoxes {
		return nil
	}
	if !d.eventsSubbed.Has(codec.EventBox) {
		if err := d.rewind(addEvent(d.eventsSubbed, codec.EventBox)); err != nil {
			return err
		}
	}
	for !d.state.SeenAllBoxes {
		if _, err := d.processUntil(stopNone()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) BoxCount() (int, error) {
	if err := d.ensureAllBoxes(); err != nil {
		return 0, err
	}
	return len(d.boxes), nil
}

func (d *Decoder) BoxInfo(i int) (BoxRecord, error) {
	if err := d.gotoBox(i); err != nil {
		return BoxRecord{}, err
	}
	return d.boxes[i], nil
}

// positionForBoxContent re-walks from the start of the stream up to and
// including box i's header, so the codec is positioned to stream its
// content (a cache hit in gotoBox does not guarantee this).
func (d *Decoder) positionForBoxContent(i int) error {
	if err := d.rewind(addEvent(d.eventsSubbed, codec.EventBox)); err != nil {
		return err
	}
	_, err := d.processUntil(newStop(nil, -1, i, -1))
	return err
}

// BoxContent streams box i's payload into sink, stopping after max bytes
// (max < 0 means len(sink)). It returns true iff the box was read to
// completion; hitting the cap is not an error (spec.md §7).
func (d *Decoder) BoxContent(i int, sink []byte, max int, decompress bool) (bool, error) {
	rec, err := d.BoxInfo(i)
	if err != nil {
		return false, err
	}
	if decompress && rec.Compressed && !codec.HaveBrotli {
		return false, noBrotliErr("brotli decompression is not supported by this build")
	}
	if err := d.session.SetDecompressBoxes(decompress); err != nil {
		return false, d.handleFatal(err)
	}
	if err := d.positionForBoxContent(i); err != nil {
		return false, err
	}
	limit := len(sink)
	if max >= 0 && max < limit {
		limit = max
	}
	if limit == 0 {
		return rec.Size == 0 && !rec.Unbounded, nil
	}
	written := 0
	if err := d.session.SetBoxOutBuffer(sink[:limit]); err != nil {
		return false, d.handleFatal(err)
	}
	for {
		ev, err := d.session.Process()
		if err != nil {
			return false, d.handleFatal(err)
		}
		switch ev {
		case codec.EventNeedMoreInput:
			if err := d.feedMore(); err != nil {
				return false, err
			}
		case codec.EventBoxNeedMoreOutput:
			unwritten := d.session.ReleaseBoxOutBuffer()
			written += limit - written - unwritten
			if written >= limit {
				return false, nil
			}
			if err := d.session.SetBoxOutBuffer(sink[written:limit]); err != nil {
				return false, d.handleFatal(err)
			}
		case codec.EventSuccess, codec.EventBox:
			d.session.ReleaseBoxOutBuffer()
			return true, nil
		case codec.EventError:
			return false, d.handleFatal(fmt.Errorf("codec reported an error while reading box content"))
		default:
			return false, d.handleFatal(fmt.Errorf("unexpected event %v while reading box content", ev))
		}
	}
}

// CodestreamLevel scans boxes from index 2 for a "jxll" box (spec.md §6);
// returns -1 when the file is a bare codestream or no such box exists.
func (d *Decoder) CodestreamLevel() (int, error) {
	if d.codestreamLevelComputed {
		return d.codestreamLevel, nil
	}
	bi, err := d.BasicInfo()
	if err != nil {
		return 0, err
	}
	if !bi.HaveContainer {
		d.codestreamLevel, d.codestreamLevelComputed = -1, true
		return -1, nil
	}
	for i := 2; ; i++ {
		rec, err := d.BoxInfo(i)
		if err != nil {
			if Is(err, IndexOutOfRange) {
				d.codestreamLevel, d.codestreamLevelComputed = -1, true
				return -1, nil
			}
			return 0, err
		}
		if rec.TypeString() == "jxll" {
			buf := make([]byte, 1)
			if _, err := d.BoxContent(i, buf, 1, false); err != nil {
				return 0, err
			}
			d.codestreamLevel, d.codestreamLevelComputed = int(buf[0]), true
			return d.codestreamLevel, nil
		}
	}
}

// --- JPEG reconstruction -------------------------------------------------

func (d *Decoder) ensureJpegKnown() error {
	if err := d.ensureBasicInfo(); err != nil {
		return err
	}
	if d.jpegCount > 0 || d.state.SeenAllJpeg {
		return nil
	}
	if !d.eventsSubbed.Has(codec.EventJpegReconstruction) {
		if err := d.rewind(addEvent(d.eventsSubbed, codec.EventJpegReconstruction)); err != nil {
			return err
		}
	}
	_, err := d.processUntil(newStop(codec.NewEventSet(codec.EventJpegReconstruction), -1, -1, -1))
	return err
}

func (d *Decoder) HasJpegReconstruction() (bool, error) {
	if err := d.ensureJpegKnown(); err != nil {
		return false, err
	}
	return d.jpegCount > 0, nil
}

// ReconstructedJPEG streams the reconstructed JPEG bytes into sink, per the
// chunked-output protocol of spec.md §4.2/§4.3.
func (d *Decoder) ReconstructedJPEG(sink []byte, max int) (bool, error) {
	has, err := d.HasJpegReconstruction()
	if err != nil {
		return false, err
	}
	if !has {
		return false, usageErr("this file has no embedded JPEG reconstruction data")
	}
	if !d.eventsSubbed.Has(codec.EventFullImage) {
		if err := d.rewind(addEvent(addEvent(d.eventsSubbed, codec.EventJpegReconstruction), codec.EventFullImage)); err != nil {
			return false, err
		}
		if _, err := d.processUntil(newStop(codec.NewEventSet(codec.EventJpegReconstruction), -1, -1, -1)); err != nil {
			return false, err
		}
	}
	limit := len(sink)
	if max >= 0 && max < limit {
		limit = max
	}
	if limit == 0 {
		return false, nil
	}
	if err := d.session.SetJpegOutBuffer(sink[:limit]); err != nil {
		return false, d.handleFatal(err)
	}
	written := 0
	for {
		ev, err := d.session.Process()
		if err != nil {
			return false, d.handleFatal(err)
		}
		switch ev {
		case codec.EventNeedMoreInput:
			if err := d.feedMore(); err != nil {
				return false, err
			}
		case codec.EventJpegNeedMoreOutput, codec.EventNeedJpegOutBuffer:
			unwritten := d.session.ReleaseJpegOutBuffer()
			written += limit - written - unwritten
			if written >= limit {
				return false, nil
			}
			if err := d.session.SetJpegOutBuffer(sink[written:limit]); err != nil {
				return false, d.handleFatal(err)
			}
		case codec.EventSuccess, codec.EventFullImage:
			d.session.ReleaseJpegOutBuffer()
			return true, nil
		case codec.EventError:
			return false, d.handleFatal(fmt.Errorf("codec reported an error while reconstructing the JPEG"))
		default:
			return false, d.handleFatal(fmt.Errorf("unexpected event %v while reconstructing the JPEG", ev))
		}
	}
}
