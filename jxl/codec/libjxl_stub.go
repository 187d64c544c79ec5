// License: MIT Copyright: 2026, jxltk contributors

//go:build !cgo

package codec

// NewLibjxlSession is unavailable in a cgo-disabled build. The rest of the
// module, including jxl.Decoder exercised against a fake Session in tests,
// still builds and runs; only the real native codec backend is absent.
func NewLibjxlSession(numWorkers int) (*LibjxlSession, error) {
	return nil, ErrUnavailable
}

// LibjxlSession is an empty placeholder type so call sites referencing
// *codec.LibjxlSession still typecheck without cgo.
type LibjxlSession struct{}
