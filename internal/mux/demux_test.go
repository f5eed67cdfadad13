package mux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// buildStream assembles a raw multiplexed stream from (tag, payload) pairs.
func buildStream(t *testing.T, frames ...[2]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, f := range frames {
		var tag byte
		switch f[0] {
		case "stdout":
			tag = TagStdout
		case "stderr":
			tag = TagStderr
		case "stdin":
			tag = TagStdin
		default:
			t.Fatalf("unknown tag name %q", f[0])
		}
		if err := WriteFrame(&buf, tag, []byte(f[1])); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	return buf.Bytes()
}

func TestReaderSplitsStreams(t *testing.T) {
	raw := buildStream(t,
		[2]string{"stdout", `{"id":"1"`},
		[2]string{"stderr", "starting up\n"},
		[2]string{"stdout", `,"result":{}}` + "\n"},
		[2]string{"stderr", "done\n"},
	)

	var diag bytes.Buffer
	r := NewReader(bytes.NewReader(raw), &diag)

	primary, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}

	wantPrimary := `{"id":"1","result":{}}` + "\n"
	if string(primary) != wantPrimary {
		t.Errorf("primary = %q, want %q", primary, wantPrimary)
	}
	wantDiag := "starting up\ndone\n"
	if diag.String() != wantDiag {
		t.Errorf("diagnostic = %q, want %q", diag.String(), wantDiag)
	}
}

func TestReaderByteAtATime(t *testing.T) {
	// Partial reads must reconstruct both streams identically to the
	// non-interleaved case.
	raw := buildStream(t,
		[2]string{"stderr", "a"},
		[2]string{"stdout", "hello "},
		[2]string{"stderr", "bb"},
		[2]string{"stdout", "world"},
	)

	var diag bytes.Buffer
	r := NewReader(iotest.OneByteReader(bytes.NewReader(raw)), &diag)

	primary, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}

	if string(primary) != "hello world" {
		t.Errorf("primary = %q, want %q", primary, "hello world")
	}
	if diag.String() != "abb" {
		t.Errorf("diagnostic = %q, want %q", diag.String(), "abb")
	}
}

func TestReaderStdinTagTreatedAsPrimary(t *testing.T) {
	raw := buildStream(t, [2]string{"stdin", "payload"})

	r := NewReader(bytes.NewReader(raw), nil)
	primary, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(primary) != "payload" {
		t.Errorf("primary = %q, want %q", primary, "payload")
	}
}

func TestReaderDiscardsDiagnosticsWithNilSink(t *testing.T) {
	raw := buildStream(t,
		[2]string{"stderr", "noise that must never reach the parser\n"},
		[2]string{"stdout", "clean"},
	)

	r := NewReader(bytes.NewReader(raw), nil)
	primary, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(primary) != "clean" {
		t.Errorf("primary = %q, want %q", primary, "clean")
	}
}

func TestReaderUnrecognizedTag(t *testing.T) {
	raw := buildStream(t, [2]string{"stdout", "ok"})
	raw = append(raw, 0x7f, 0, 0, 0, 0, 0, 0, 2, 'x', 'y')

	r := NewReader(bytes.NewReader(raw), nil)
	buf := make([]byte, 16)

	n, err := r.Read(buf)
	if err != nil || string(buf[:n]) != "ok" {
		t.Fatalf("first Read = (%q, %v), want (%q, nil)", buf[:n], err, "ok")
	}

	_, err = r.Read(buf)
	var tagErr *FrameTagError
	if !errors.As(err, &tagErr) {
		t.Fatalf("second Read err = %v, want *FrameTagError", err)
	}
	if tagErr.Tag != 0x7f {
		t.Errorf("tag = 0x%02x, want 0x7f", tagErr.Tag)
	}

	// The error is sticky: no resynchronization is attempted.
	if _, err := r.Read(buf); !errors.As(err, &tagErr) {
		t.Errorf("third Read err = %v, want sticky *FrameTagError", err)
	}
}

func TestReaderTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, TagStdout, []byte("complete")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	// Header promises 100 bytes, stream ends after 3.
	buf.Write([]byte{TagStdout, 0, 0, 0, 0, 0, 0, 100, 'a', 'b', 'c'})

	r := NewReader(&buf, nil)
	data, err := io.ReadAll(r)
	if err != io.ErrUnexpectedEOF {
		t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
	}
	if string(data) != "completeabc" {
		t.Errorf("primary = %q, want %q", data, "completeabc")
	}
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	io.WriteString(w, "first ")
	io.WriteString(w, "line\nsecond line\npart")
	io.WriteString(w, "ial")

	want := []string{"first line", "second line"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}

	w.Flush()
	if got := lines[len(lines)-1]; got != "partial" {
		t.Errorf("after Flush, last line = %q, want %q", got, "partial")
	}
}

func TestLineWriterSkipsBlankLines(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	io.WriteString(w, "\r\n\na\n\n")
	if len(lines) != 1 || lines[0] != "a" {
		t.Errorf("lines = %v, want [a]", lines)
	}
}

func TestWriteFrameRoundTrip(t *testing.T) {
	payload := strings.Repeat("x", 70000) // larger than one uint16

	var buf bytes.Buffer
	if err := WriteFrame(&buf, TagStdout, []byte(payload)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewReader(&buf, nil)
	got, err := io.ReadAll(r)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != payload {
		t.Errorf("round trip lost data: got %d bytes, want %d", len(got), len(payload))
	}
}
