// Package wire implements a minimal length-prefixed framing protocol for
// exchanging whole serialized application values over a byte stream such as
// a TCP connection. Each frame is a 4-byte big-endian unsigned length
// followed by exactly that many payload bytes. The layer handles partial
// reads and writes, rejects malformed length headers, and distinguishes a
// clean end of stream from truncation mid-frame.
package wire

import (
	"encoding/binary"
	"io"
	"runtime"

	"github.com/pkg/errors"
)

// MaxFrameBytes is the upper bound on a single frame's payload size.
// It protects the receiver from unbounded allocation driven by a corrupt
// or hostile length header.
const MaxFrameBytes = 10 * 1024 * 1024

// headerSize is the fixed size of the length prefix.
const headerSize = 4

// Framing errors. All of them mean the stream can no longer be trusted and
// must be closed by the caller; the protocol has no resync marker.
var (
	// ErrFrameTooLarge is returned on the write side when a payload exceeds
	// the frame size bound. This is a caller bug, not a transport condition.
	ErrFrameTooLarge = errors.New("wire: frame exceeds size bound")
	// ErrInvalidLength is returned when a received header declares a length
	// of zero or above the frame size bound.
	ErrInvalidLength = errors.New("wire: invalid frame length")
	// ErrTruncatedHeader is returned when the stream ends after delivering
	// only part of a length header.
	ErrTruncatedHeader = errors.New("wire: stream ended mid-header")
	// ErrTruncatedPayload is returned when the stream ends after a valid
	// header but before the full payload arrived.
	ErrTruncatedPayload = errors.New("wire: stream ended mid-payload")
)

// WriteMessage frames payload and writes it to w: a 4-byte big-endian length
// followed by the payload bytes. It keeps writing until the stream has
// accepted the entire frame, so short writes are transparent to the caller.
// Payloads larger than MaxFrameBytes fail with ErrFrameTooLarge before any
// bytes are written.
func WriteMessage(w io.Writer, payload []byte) error {
	return writeFrame(w, payload, MaxFrameBytes)
}

// ReadMessage reads one complete frame from r and returns its payload.
//
// A stream that ends cleanly between frames yields io.EOF: the peer's
// conversation is over and no error occurred. A stream that ends inside a
// frame yields ErrTruncatedHeader or ErrTruncatedPayload. A header declaring
// a length of zero or above MaxFrameBytes yields ErrInvalidLength without
// allocating the declared buffer.
func ReadMessage(r io.Reader) ([]byte, error) {
	return readFrame(r, MaxFrameBytes)
}

// writeFrame is WriteMessage with an explicit size bound so connections can
// enforce a lower per-connection limit.
func writeFrame(w io.Writer, payload []byte, max int) error {
	if len(payload) > max {
		return errors.Wrapf(ErrFrameTooLarge, "payload is %d bytes, bound is %d", len(payload), max)
	}

	// One buffer for header and payload, scoped to this call.
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(payload)))
	copy(buf[headerSize:], payload)

	for written := 0; written < len(buf); {
		n, err := w.Write(buf[written:])
		if err != nil {
			return errors.Wrap(err, "wire: writing frame")
		}
		if n == 0 {
			// The stream accepted nothing but reported no error. Yield
			// instead of spinning; the stream is assumed eventually writable.
			runtime.Gosched()
			continue
		}
		written += n
	}

	return nil
}

// readFrame is ReadMessage with an explicit size bound.
func readFrame(r io.Reader, max int) ([]byte, error) {
	var header [headerSize]byte
	n, err := readFull(r, header[:])
	if err == io.EOF {
		if n == 0 {
			// Clean end of stream between frames.
			return nil, io.EOF
		}
		return nil, errors.Wrapf(ErrTruncatedHeader, "got %d of %d header bytes", n, headerSize)
	}
	if err != nil {
		return nil, errors.Wrap(err, "wire: reading header")
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || uint64(length) > uint64(max) {
		return nil, errors.Wrapf(ErrInvalidLength, "declared length %d", length)
	}

	payload := make([]byte, length)
	n, err = readFull(r, payload)
	if err == io.EOF {
		return nil, errors.Wrapf(ErrTruncatedPayload, "got %d of %d payload bytes", n, length)
	}
	if err != nil {
		return nil, errors.Wrap(err, "wire: reading payload")
	}

	return payload, nil
}

// readFull accumulates bytes from r until buf is full, tolerating reads that
// return fewer bytes than requested. It returns io.EOF untouched when the
// stream ends early so callers can tell clean shutdown from truncation by
// the byte count. A zero-byte read without error does not count as progress;
// the goroutine yields before retrying.
func readFull(r io.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if read == len(buf) {
			return read, nil
		}
		if err != nil {
			return read, err
		}
		if n == 0 {
			runtime.Gosched()
		}
	}
	return read, nil
}
