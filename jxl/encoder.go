// License: MIT Copyright: 2026, jxltk contributors

package jxl

import "io"

// Encoder is the shape of the low-level JXL encoder a compose.Composer
// drives to actually produce output bytes. A concrete implementation
// (wrapping libjxl's JxlEncoder* API, mirroring how codec.Session wraps
// JxlDecoder*) is out of scope for this module (spec.md §1) — Composer only
// needs a name to call against.
type Encoder interface {
	// AddFrame submits one frame's header and already-decoded pixels.
	AddFrame(header FrameHeader, pixels []byte) error
	// AddBox splices one metadata box into the output container.
	AddBox(boxType [4]byte, payload []byte, compress bool) error
	// Finish writes the completed container to w and releases the encoder.
	Finish(w io.Writer) error
}
