package wire

import (
	"encoding/binary"

	"github.com/behrlich/go-qmux/internal/constants"
)

// Framer accumulates bytes delivered by the device channel and extracts
// complete QMUX frames. A single channel delivery may contain zero, one,
// or many frames, and a frame may span multiple deliveries; Framer buffers
// across both cases.
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Append adds newly-read bytes to the framer's buffer.
func (f *Framer) Append(data []byte) {
	f.buf = append(f.buf, data...)
}

// Next extracts and decodes the next complete frame from the buffer, if
// one is available. It returns ok=false (with no error) when the buffer
// holds an incomplete frame and more bytes are needed.
func (f *Framer) Next() (env Envelope, ok bool, err error) {
	if len(f.buf) == 0 {
		return Envelope{}, false, nil
	}
	if f.buf[0] != constants.Sentinel {
		return Envelope{}, false, &FrameError{Msg: "bad sentinel, resynchronizing", Dropped: f.resync()}
	}
	if len(f.buf) < 3 {
		return Envelope{}, false, nil
	}

	length := binary.LittleEndian.Uint16(f.buf[1:3])
	total := 1 + int(length) // sentinel + length's own bytes + everything after
	if length == 0 {
		return Envelope{}, false, &FrameError{Msg: "declared length is zero", Dropped: f.resync()}
	}
	if total > constants.MaxFrameSize {
		return Envelope{}, false, &FrameError{Msg: "declared length exceeds max frame size", Dropped: f.resync()}
	}
	if len(f.buf) < total {
		// Partial frame: wait for more bytes.
		return Envelope{}, false, nil
	}

	frame := f.buf[:total]
	f.buf = f.buf[total:]

	env, decodeErr := decodeOne(frame)
	if decodeErr != nil {
		return Envelope{}, false, &FrameError{Msg: decodeErr.Error(), Dropped: len(frame)}
	}
	return env, true, nil
}

// resync discards the buffered bytes up to (but not including) the next
// sentinel byte, or the whole buffer if no sentinel is found, and returns
// how many bytes were dropped.
func (f *Framer) resync() int {
	for i := 1; i < len(f.buf); i++ {
		if f.buf[i] == constants.Sentinel {
			dropped := i
			f.buf = f.buf[i:]
			return dropped
		}
	}
	dropped := len(f.buf)
	f.buf = nil
	return dropped
}

// FrameError describes a malformed frame that was logged and dropped
// without failing the framer; the caller continues reading.
type FrameError struct {
	Msg     string
	Dropped int
}

func (e *FrameError) Error() string {
	return e.Msg
}
