// Package mux strips the multiplexing envelope that a container runtime
// wraps around an attach socket, splitting the mixed byte stream back
// into the server's stdout (protocol traffic) and stderr (diagnostics).
//
// Each frame is an 8-byte header followed by a payload:
//
//	[stream tag (1 byte)][reserved (3 bytes)][payload length, big-endian uint32]
//
// Frames arrive in arbitrary sizes relative to reads on the underlying
// connection; partial frames are buffered, never dropped.
package mux

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream tags used by the attach envelope.
const (
	TagStdin  byte = 0x00
	TagStdout byte = 0x01
	TagStderr byte = 0x02
)

// headerLen is the fixed size of a frame header.
const headerLen = 8

// FrameTagError reports a frame header whose tag byte is outside the
// recognized set. The stream is presumed corrupted; callers must abort
// the session rather than attempt to resynchronize.
type FrameTagError struct {
	Tag byte
}

func (e *FrameTagError) Error() string {
	return fmt.Sprintf("unrecognized frame tag 0x%02x", e.Tag)
}

// Reader demultiplexes an attach stream. Read returns bytes from the
// primary (stdout) stream; stderr payloads are written to the diagnostic
// sink. A nil sink discards diagnostics at the demultiplexer boundary so
// they can never contaminate protocol parsing.
type Reader struct {
	src  io.Reader
	diag io.Writer

	// remaining counts undelivered payload bytes of the current
	// stdout frame.
	remaining int
	err       error
}

// NewReader returns a Reader over src. diag receives stderr payloads as
// they arrive and may be nil to discard them.
func NewReader(src io.Reader, diag io.Writer) *Reader {
	return &Reader{src: src, diag: diag}
}

// Read implements io.Reader over the primary stream.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	for r.remaining == 0 {
		if err := r.nextFrame(); err != nil {
			r.err = err
			return 0, err
		}
	}

	if len(p) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := io.ReadFull(r.src, p)
	r.remaining -= n
	if err != nil {
		// A frame that announces more payload than the stream
		// delivers means the peer died mid-frame.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return n, err
	}
	return n, nil
}

// nextFrame consumes one complete frame header and, for stderr frames,
// the payload as well. On return either r.remaining > 0 (a stdout frame
// is ready to be delivered) or an error is set.
func (r *Reader) nextFrame() error {
	var header [headerLen]byte
	if _, err := io.ReadFull(r.src, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	size := int(binary.BigEndian.Uint32(header[4:]))

	switch header[0] {
	case TagStdout, TagStdin:
		// Some runtimes tag tty-less stdout frames with the stdin
		// tag; both carry protocol traffic.
		r.remaining = size
		return nil
	case TagStderr:
		if r.diag == nil {
			if _, err := io.CopyN(io.Discard, r.src, int64(size)); err != nil {
				if err == io.EOF {
					return io.ErrUnexpectedEOF
				}
				return err
			}
			return nil
		}
		if _, err := io.CopyN(r.diag, r.src, int64(size)); err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		return nil
	default:
		return &FrameTagError{Tag: header[0]}
	}
}
