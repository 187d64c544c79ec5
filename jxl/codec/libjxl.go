// License: MIT Copyright: 2026, jxltk contributors

//go:build cgo

package codec

/*
#cgo pkg-config: libjxl libjxl_threads
#include <stdlib.h>
#include <string.h>
#include <jxl/decode.h>
#include <jxl/thread_parallel_runner.h>

static JxlDecoderStatus jxltk_subscribe(JxlDecoder *dec, int events) {
    return JxlDecoderSubscribeEvents(dec, events);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"
)

var _ = fmt.Print

// eventsToNative converts the contract's EventSet into the bitmask
// JxlDecoderSubscribeEvents expects. Only events the native decoder can be
// asked about are included; EventSuccess, EventNeedOutBuffer and friends are
// always reported and never subscribed explicitly.
func eventsToNative(s *EventSet) C.int {
	var mask C.int
	if s.Has(EventBasicInfo) {
		mask |= C.JXL_DEC_BASIC_INFO
	}
	if s.Has(EventColor) {
		mask |= C.JXL_DEC_COLOR_ENCODING
	}
	if s.Has(EventFrame) {
		mask |= C.JXL_DEC_FRAME
	}
	if s.Has(EventBox) {
		mask |= C.JXL_DEC_BOX
	}
	if s.Has(EventJpegReconstruction) {
		mask |= C.JXL_DEC_JPEG_RECONSTRUCTION
	}
	if s.Has(EventFullImage) {
		mask |= C.JXL_DEC_FULL_IMAGE
	}
	return mask
}

func nativeToEvent(status C.JxlDecoderStatus) Event {
	switch status {
	case C.JXL_DEC_SUCCESS:
		return EventSuccess
	case C.JXL_DEC_ERROR:
		return EventError
	case C.JXL_DEC_NEED_MORE_INPUT:
		return EventNeedMoreInput
	case C.JXL_DEC_NEED_IMAGE_OUT_BUFFER:
		return EventNeedOutBuffer
	case C.JXL_DEC_JPEG_RECONSTRUCTION:
		return EventJpegReconstruction
	case C.JXL_DEC_NEED_JPEG_RECONSTRUCTION_OUT_BUFFER:
		return EventNeedJpegOutBuffer
	case C.JXL_DEC_BOX_NEED_MORE_OUTPUT:
		return EventBoxNeedMoreOutput
	case C.JXL_DEC_BASIC_INFO:
		return EventBasicInfo
	case C.JXL_DEC_COLOR_ENCODING:
		return EventColor
	case C.JXL_DEC_FRAME:
		return EventFrame
	case C.JXL_DEC_BOX:
		return EventBox
	case C.JXL_DEC_FULL_IMAGE:
		return EventFullImage
	default:
		return EventError
	}
}

// LibjxlSession implements Session against the native libjxl decoder,
// generalizing tools/utils/images/jxl.go's single-shot RGBA decode
// into the full event loop Decoder drives.
type LibjxlSession struct {
	dec       *C.JxlDecoder
	runner    unsafe.Pointer // JxlThreadParallelRunner* handle
	pinner    runtime.Pinner
	subscribed *EventSet

	imageBuf   []byte
	extraBufs  map[int][]byte
	boxBuf     []byte
	jpegBuf    []byte
}

// NewLibjxlSession creates a native decoder bound to a thread pool sized by
// numWorkers (0 picks libjxl's own default), mirroring
// JxlThreadParallelRunnerDefaultNumWorkerThreads in the teacher's jxl.go.
func NewLibjxlSession(numWorkers int) (*LibjxlSession, error) {
	dec := C.JxlDecoderCreate(nil)
	if dec == nil {
		return nil, fmt.Errorf("jxl: JxlDecoderCreate failed")
	}
	n := C.size_t(numWorkers)
	if numWorkers <= 0 {
		n = C.JxlThreadParallelRunnerDefaultNumWorkerThreads()
	}
	runner := C.JxlThreadParallelRunnerCreate(nil, n)
	if runner == nil {
		C.JxlDecoderDestroy(dec)
		return nil, fmt.Errorf("jxl: JxlThreadParallelRunnerCreate failed")
	}
	if C.JxlDecoderSetParallelRunner(dec, C.JxlThreadParallelRunner, runner) != C.JXL_DEC_SUCCESS {
		C.JxlThreadParallelRunnerDestroy(runner)
		C.JxlDecoderDestroy(dec)
		return nil, fmt.Errorf("jxl: JxlDecoderSetParallelRunner failed")
	}
	return &LibjxlSession{dec: dec, runner: runner, extraBufs: map[int][]byte{}}, nil
}

func (s *LibjxlSession) Subscribe(events *EventSet) error {
	s.subscribed = events.Clone()
	if C.jxltk_subscribe(s.dec, eventsToNative(events)) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSubscribeEvents failed")
	}
	return nil
}

func (s *LibjxlSession) SetInput(b []byte) error {
	if len(b) == 0 {
		if C.JxlDecoderSetInput(s.dec, nil, 0) != C.JXL_DEC_SUCCESS {
			return fmt.Errorf("jxl: JxlDecoderSetInput(empty) failed")
		}
		return nil
	}
	s.pinner.Pin(&b[0])
	if C.JxlDecoderSetInput(s.dec, (*C.uint8_t)(unsafe.Pointer(&b[0])), C.size_t(len(b))) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetInput failed")
	}
	return nil
}

func (s *LibjxlSession) CloseInput() { C.JxlDecoderCloseInput(s.dec) }

func (s *LibjxlSession) ReleaseInput() int {
	return int(C.JxlDecoderReleaseInput(s.dec))
}

func (s *LibjxlSession) Process() (Event, error) {
	status := C.JxlDecoderProcessInput(s.dec)
	return nativeToEvent(status), nil
}

func (s *LibjxlSession) BasicInfo() (BasicInfo, error) {
	var info C.JxlBasicInfo
	if C.JxlDecoderGetBasicInfo(s.dec, &info) != C.JXL_DEC_SUCCESS {
		return BasicInfo{}, fmt.Errorf("jxl: JxlDecoderGetBasicInfo failed")
	}
	bi := BasicInfo{
		Xsize:                      uint32(info.xsize),
		Ysize:                      uint32(info.ysize),
		IntrinsicXsize:             uint32(info.intrinsic_xsize),
		IntrinsicYsize:             uint32(info.intrinsic_ysize),
		NumColorChannels:           int(info.num_color_channels),
		NumExtraChannels:           int(info.num_extra_channels),
		BitsPerSample:              int(info.bits_per_sample),
		ExponentBitsPerSample:      int(info.exponent_bits_per_sample),
		AlphaBitsPerSample:         int(info.alpha_bits),
		AlphaExponentBitsPerSample: int(info.alpha_exponent_bits),
		AlphaPremultiplied:         info.alpha_premultiplied != 0,
		HaveContainer:              info.have_container != 0,
		HaveAnimation:              info.have_animation != 0,
		UsesOriginalProfile:        info.uses_original_profile != 0,
	}
	if bi.HaveAnimation {
		bi.Animation = Animation{
			Loops:          uint32(info.animation.num_loops),
			TicksNumerator: uint32(info.animation.tps_numerator),
			TicksDenom:     uint32(info.animation.tps_denominator),
		}
	}
	return bi, nil
}

func (s *LibjxlSession) FrameHeader() (FrameHeader, error) {
	var h C.JxlFrameHeader
	if C.JxlDecoderGetFrameHeader(s.dec, &h) != C.JXL_DEC_SUCCESS {
		return FrameHeader{}, fmt.Errorf("jxl: JxlDecoderGetFrameHeader failed")
	}
	return FrameHeader{
		LayerInfo: LayerInfo{
			Xsize:    uint32(h.layer_info.xsize),
			Ysize:    uint32(h.layer_info.ysize),
			CropX0:   int32(h.layer_info.crop_x0),
			CropY0:   int32(h.layer_info.crop_y0),
			HaveCrop: h.layer_info.have_crop != 0,
		},
		BlendInfo: BlendInfo{
			BlendMode: BlendMode(h.layer_info.blend_info.blendmode),
			Source:    int(h.layer_info.blend_info.source),
			Alpha:     int(h.layer_info.blend_info.alpha),
			Clamp:     h.layer_info.blend_info.clamp != 0,
		},
		SaveAsReference: int(h.layer_info.save_as_reference),
		Duration:        uint32(h.duration),
		IsLast:          h.is_last != 0,
		NameLength:      int(h.name_length),
	}, nil
}

func (s *LibjxlSession) FrameName() (string, bool, error) {
	var length C.uint32_t
	// JxlDecoderGetFrameHeader must have been called first to know name_length;
	// callers (Decoder) only call FrameName when NameLength > 0.
	buf := make([]byte, 256)
	for {
		length = C.uint32_t(len(buf))
		if C.JxlDecoderGetFrameName(s.dec, (*C.char)(unsafe.Pointer(&buf[0])), C.size_t(length)) != C.JXL_DEC_SUCCESS {
			return "", false, fmt.Errorf("jxl: JxlDecoderGetFrameName failed")
		}
		n := indexOfNul(buf)
		if n >= 0 {
			return string(buf[:n]), true, nil
		}
		buf = make([]byte, len(buf)*2)
	}
}

func indexOfNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func (s *LibjxlSession) ExtraChannelInfo(index int) (ExtraChannelInfo, error) {
	var ci C.JxlExtraChannelInfo
	if C.JxlDecoderGetExtraChannelInfo(s.dec, C.size_t(index), &ci) != C.JXL_DEC_SUCCESS {
		return ExtraChannelInfo{}, fmt.Errorf("jxl: JxlDecoderGetExtraChannelInfo failed")
	}
	return ExtraChannelInfo{
		Type:                  ExtraChannelType(ci._type),
		BitsPerSample:         int(ci.bits_per_sample),
		ExponentBitsPerSample: int(ci.exponent_bits_per_sample),
		AlphaPremultiplied:    ci.alpha_premultiplied != 0,
		CFAChannel:            uint32(ci.cfa_channel),
		DimShift:              int(ci.dim_shift),
	}, nil
}

func (s *LibjxlSession) ExtraChannelName(index int) (string, bool, error) {
	var length C.uint32_t
	if C.JxlDecoderGetExtraChannelName(s.dec, C.size_t(index), nil, 0) != C.JXL_DEC_SUCCESS {
		return "", false, nil
	}
	buf := make([]byte, 256)
	length = C.uint32_t(len(buf))
	if C.JxlDecoderGetExtraChannelName(s.dec, C.size_t(index), (*C.char)(unsafe.Pointer(&buf[0])), C.size_t(length)) != C.JXL_DEC_SUCCESS {
		return "", false, fmt.Errorf("jxl: JxlDecoderGetExtraChannelName failed")
	}
	n := indexOfNul(buf)
	if n < 0 {
		n = len(buf)
	}
	return string(buf[:n]), n > 0, nil
}

func (s *LibjxlSession) ExtraChannelBlendInfo(index int) (ExtraChannelBlendInfo, error) {
	var bi C.JxlBlendInfo
	if C.JxlDecoderGetExtraChannelBlendInfo(s.dec, C.size_t(index), &bi) != C.JXL_DEC_SUCCESS {
		return ExtraChannelBlendInfo{}, fmt.Errorf("jxl: JxlDecoderGetExtraChannelBlendInfo failed")
	}
	return ExtraChannelBlendInfo{BlendInfo: BlendInfo{
		BlendMode: BlendMode(bi.blendmode),
		Source:    int(bi.source),
		Alpha:     int(bi.alpha),
		Clamp:     bi.clamp != 0,
	}}, nil
}

func (s *LibjxlSession) BoxType(decompressed bool) ([4]byte, error) {
	var raw [4]C.char
	want := C.JXL_FALSE
	if decompressed {
		want = C.JXL_TRUE
	}
	if C.JxlDecoderGetBoxType(s.dec, &raw[0], want) != C.JXL_DEC_SUCCESS {
		return [4]byte{}, fmt.Errorf("jxl: JxlDecoderGetBoxType failed")
	}
	var out [4]byte
	for i := range out {
		out[i] = byte(raw[i])
	}
	return out, nil
}

func (s *LibjxlSession) BoxSize(kind ICCSizeKind) (uint64, error) {
	var size C.uint64_t
	if C.JxlDecoderGetBoxSizeRaw(s.dec, &size) != C.JXL_DEC_SUCCESS {
		return 0, fmt.Errorf("jxl: JxlDecoderGetBoxSizeRaw failed")
	}
	return uint64(size), nil
}

func targetToNative(t Target) C.JxlColorProfileTarget {
	if t == TargetData {
		return C.JXL_COLOR_PROFILE_TARGET_DATA
	}
	return C.JXL_COLOR_PROFILE_TARGET_ORIGINAL
}

func (s *LibjxlSession) ICCProfileSize(target Target, kind ICCSizeKind) (int, error) {
	var size C.size_t
	if C.JxlDecoderGetICCProfileSize(s.dec, targetToNative(target), &size) != C.JXL_DEC_SUCCESS {
		return 0, fmt.Errorf("jxl: JxlDecoderGetICCProfileSize failed")
	}
	return int(size), nil
}

func (s *LibjxlSession) ICCProfile(target Target) ([]byte, error) {
	size, err := s.ICCProfileSize(target, ICCSizeExact)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	if C.JxlDecoderGetColorAsICCProfile(s.dec, targetToNative(target), (*C.uint8_t)(unsafe.Pointer(&buf[0])), C.size_t(size)) != C.JXL_DEC_SUCCESS {
		return nil, fmt.Errorf("jxl: JxlDecoderGetColorAsICCProfile failed")
	}
	return buf, nil
}

func (s *LibjxlSession) EncodedColorProfile(target Target) (EncodedProfile, bool, error) {
	var enc C.JxlColorEncoding
	status := C.JxlDecoderGetColorAsEncodedProfile(s.dec, targetToNative(target), &enc)
	if status != C.JXL_DEC_SUCCESS {
		return EncodedProfile{}, false, nil
	}
	return EncodedProfile{
		ColorSpace:       ColorSpace(enc.color_space),
		WhitePoint:       WhitePoint(enc.white_point),
		Primaries:        Primaries(enc.primaries),
		TransferFunction: TransferFunction(enc.transfer_function),
		Gamma:            float64(enc.gamma),
		RenderingIntent:  RenderingIntent(enc.rendering_intent),
	}, true, nil
}

// CodestreamLevel has no direct libjxl getter: the level lives in a "jxll"
// box, so Decoder derives it itself by scanning BoxRecords (spec.md §6).
func (s *LibjxlSession) CodestreamLevel() (int, error) { return -1, nil }

func (s *LibjxlSession) Orientation() (int, error) { return 1, nil }

func (s *LibjxlSession) SetImageOutBuffer(format PixelFormat, buf []byte) error {
	pf := toNativeFormat(format)
	if len(buf) > 0 {
		s.pinner.Pin(&buf[0])
	}
	s.imageBuf = buf
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	if C.JxlDecoderSetImageOutBuffer(s.dec, &pf, ptr, C.size_t(len(buf))) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetImageOutBuffer failed")
	}
	return nil
}

func (s *LibjxlSession) ReleaseImageOutBuffer() int {
	n := int(C.JxlDecoderReleaseImageOutBuffer(s.dec))
	s.imageBuf = nil
	return n
}

func (s *LibjxlSession) SetExtraChannelOutBuffer(index int, format PixelFormat, buf []byte) error {
	pf := toNativeFormat(format)
	if len(buf) > 0 {
		s.pinner.Pin(&buf[0])
	}
	s.extraBufs[index] = buf
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	if C.JxlDecoderSetExtraChannelBuffer(s.dec, &pf, ptr, C.size_t(len(buf)), C.uint32_t(index)) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetExtraChannelBuffer failed")
	}
	return nil
}

func (s *LibjxlSession) ReleaseExtraChannelOutBuffer(index int) int {
	delete(s.extraBufs, index)
	return 0
}

func (s *LibjxlSession) SetBoxOutBuffer(buf []byte) error {
	if len(buf) > 0 {
		s.pinner.Pin(&buf[0])
	}
	s.boxBuf = buf
	var ptr *C.uint8_t
	if len(buf) > 0 {
		ptr = (*C.uint8_t)(unsafe.Pointer(&buf[0]))
	}
	if C.JxlDecoderSetBoxBuffer(s.dec, ptr, C.size_t(len(buf))) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetBoxBuffer failed")
	}
	return nil
}

func (s *LibjxlSession) ReleaseBoxOutBuffer() int {
	n := int(C.JxlDecoderReleaseBoxBuffer(s.dec))
	s.boxBuf = nil
	return n
}

func (s *LibjxlSession) SetJpegOutBuffer(buf []byte) error {
	if len(buf) > 0 {
		s.pinner.Pin(&buf[0])
	}
	s.jpegBuf = buf
	var ptr *C.uint8_t
	if len(buf) > 0 {
		ptr = (*C.uint8_t)(unsafe.Pointer(&buf[0]))
	}
	if C.JxlDecoderSetJPEGBuffer(s.dec, ptr, C.size_t(len(buf))) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetJPEGBuffer failed")
	}
	return nil
}

func (s *LibjxlSession) ReleaseJpegOutBuffer() int {
	n := int(C.JxlDecoderReleaseJPEGBuffer(s.dec))
	s.jpegBuf = nil
	return n
}

func (s *LibjxlSession) SetDecompressBoxes(enabled bool) error {
	v := C.JXL_FALSE
	if enabled {
		v = C.JXL_TRUE
	}
	if C.JxlDecoderSetDecompressBoxes(s.dec, v) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetDecompressBoxes failed")
	}
	return nil
}

func (s *LibjxlSession) SetCoalescing(enabled bool) error {
	v := C.JXL_FALSE
	if enabled {
		v = C.JXL_TRUE
	}
	if C.JxlDecoderSetCoalescing(s.dec, v) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetCoalescing failed")
	}
	return nil
}

func (s *LibjxlSession) SetKeepOrientation(enabled bool) error {
	v := C.JXL_FALSE
	if enabled {
		v = C.JXL_TRUE
	}
	if C.JxlDecoderSetKeepOrientation(s.dec, v) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetKeepOrientation failed")
	}
	return nil
}

func (s *LibjxlSession) SetUnpremultiplyAlpha(enabled bool) error {
	v := C.JXL_FALSE
	if enabled {
		v = C.JXL_TRUE
	}
	if C.JxlDecoderSetUnpremultiplyAlpha(s.dec, v) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSetUnpremultiplyAlpha failed")
	}
	return nil
}

func (s *LibjxlSession) SetPreferredColorProfile(enc *EncodedProfile, icc []byte) (bool, error) {
	if enc != nil {
		var ce C.JxlColorEncoding
		ce.color_space = C.JxlColorSpace(enc.ColorSpace)
		ce.white_point = C.JxlWhitePoint(enc.WhitePoint)
		ce.primaries = C.JxlPrimaries(enc.Primaries)
		ce.transfer_function = C.JxlTransferFunction(enc.TransferFunction)
		ce.rendering_intent = C.JxlRenderingIntent(enc.RenderingIntent)
		status := C.JxlDecoderSetOutputColorProfile(s.dec, &ce, nil, 0)
		return status == C.JXL_DEC_SUCCESS, nil
	}
	if len(icc) > 0 {
		status := C.JxlDecoderSetOutputColorProfile(s.dec, nil, (*C.uint8_t)(unsafe.Pointer(&icc[0])), C.size_t(len(icc)))
		return status == C.JXL_DEC_SUCCESS, nil
	}
	return false, fmt.Errorf("jxl: SetPreferredColorProfile needs either enc or icc")
}

func (s *LibjxlSession) Rewind() error {
	C.JxlDecoderRewind(s.dec)
	return nil
}

func (s *LibjxlSession) SkipFrames(n int) error {
	if n <= 0 {
		return nil
	}
	C.JxlDecoderSkipFrames(s.dec, C.size_t(n))
	return nil
}

func (s *LibjxlSession) SkipCurrentFrame() error {
	if C.JxlDecoderSkipCurrentFrame(s.dec) != C.JXL_DEC_SUCCESS {
		return fmt.Errorf("jxl: JxlDecoderSkipCurrentFrame failed")
	}
	return nil
}

// SetParallelRunner is a no-op: the native thread pool is wired once in
// NewLibjxlSession via JxlThreadParallelRunner, sized from its own
// numWorkers argument.
func (s *LibjxlSession) SetParallelRunner(runner ParallelRunner) error { return nil }

func (s *LibjxlSession) Close() error {
	s.pinner.Unpin()
	if s.runner != nil {
		C.JxlThreadParallelRunnerDestroy(s.runner)
		s.runner = nil
	}
	if s.dec != nil {
		C.JxlDecoderDestroy(s.dec)
		s.dec = nil
	}
	return nil
}

func toNativeFormat(f PixelFormat) C.JxlPixelFormat {
	var dt C.JxlDataType
	switch f.DataType {
	case TypeUint8:
		dt = C.JXL_TYPE_UINT8
	case TypeUint16:
		dt = C.JXL_TYPE_UINT16
	case TypeFloat16:
		dt = C.JXL_TYPE_FLOAT16
	case TypeFloat32:
		dt = C.JXL_TYPE_FLOAT
	}
	var endian C.JxlEndianness
	switch f.Endianness {
	case EndianBig:
		endian = C.JXL_BIG_ENDIAN
	case EndianLittle:
		endian = C.JXL_LITTLE_ENDIAN
	default:
		endian = C.JXL_NATIVE_ENDIAN
	}
	return C.JxlPixelFormat{
		num_channels: C.uint32_t(f.NumChannels),
		data_type:    dt,
		endianness:   endian,
		align:        C.size_t(f.RowAlign),
	}
}
