package mux

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"sync"
)

// WriteFrame writes a single envelope frame to w. It is the inverse of
// what Reader consumes and exists for fake backends in tests and local
// loopback channels.
func WriteFrame(w io.Writer, tag byte, payload []byte) error {
	header := [headerLen]byte{0: tag}
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// LineWriter buffers writes and invokes fn once per complete line, with
// the trailing newline stripped. It is the usual diagnostic sink: stderr
// frames can split a line across frames, so logging per write would
// mangle backend log output.
type LineWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	fn  func(line string)
}

// NewLineWriter returns a LineWriter calling fn for every complete line.
func NewLineWriter(fn func(line string)) *LineWriter {
	return &LineWriter{fn: fn}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; keep it buffered.
			w.buf.WriteString(line)
			break
		}
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			w.fn(trimmed)
		}
	}
	return len(p), nil
}

// Flush emits any buffered partial line. Callers invoke it at channel
// teardown so a backend's final unterminated message is not lost.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.fn(w.buf.String())
		w.buf.Reset()
	}
}
