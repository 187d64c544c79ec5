// License: MIT Copyright: 2026, jxltk contributors

package pixmap

import (
	"fmt"

	shm "github.com/kovidgoyal/go-shm"
)

// ToSharedMemory copies a buffered pixmap into a freshly created POSIX
// shared-memory mapping named from pattern (a "*" in pattern is replaced
// with a random suffix, per go-shm's CreateTemp), mirroring
// tools/utils/images.(*ImageFrame).DataAsSHM: callers that need to hand
// decoded pixels to a separate process (a terminal's graphics protocol, in
// the teacher's case) avoid a second copy through a pipe.
func (p *Pixmap) ToSharedMemory(pattern string) (shm.MMap, error) {
	if p.buf == nil {
		return nil, fmt.Errorf("pixmap: ToSharedMemory called before EnsureBuffered")
	}
	mapping, err := shm.CreateTemp(pattern, uint64(len(p.buf)))
	if err != nil {
		return nil, err
	}
	if n := copy(mapping.Slice(), p.buf); n != len(p.buf) {
		mapping.Close()
		mapping.Unlink()
		return nil, fmt.Errorf("pixmap: short copy into shared memory mapping (%d of %d bytes)", n, len(p.buf))
	}
	return mapping, nil
}
