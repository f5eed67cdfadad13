// Package wire implements the newline-delimited JSON-RPC 2.0 framing
// spoken between the orchestrator and its backend services. One complete
// document per line, in both directions.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Version is the JSON-RPC protocol version sent on every envelope.
const Version = "2.0"

// Well-known methods understood by every backend.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "tools/list"
	MethodCallTool   = "tools/call"
)

// Request is an outgoing call envelope. ID correlates the eventual
// response; it must be unique among the session's outstanding calls.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCError is the error half of a response envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is an incoming envelope. Exactly one of Result or Err is set
// by a conforming peer.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Err     *RPCError       `json:"error,omitempty"`
}

// MalformedMessageError reports a line that could not be parsed as a
// complete JSON document. The offending line is retained (truncated) for
// diagnostics; the caller decides whether to fail the session.
type MalformedMessageError struct {
	Line string
	Err  error
}

func (e *MalformedMessageError) Error() string {
	line := e.Line
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return fmt.Sprintf("malformed message %q: %v", line, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// maxLineSize bounds a single message. Backend tool results can embed
// whole datasets, so the ceiling is generous.
const maxLineSize = 4 * 1024 * 1024

// Reader decodes one response envelope per line from the primary stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineSize)
	return &Reader{scanner: scanner}
}

// Read returns the next complete response envelope. Blank lines are
// skipped; an unparseable line yields a MalformedMessageError. io.EOF is
// returned once the stream ends.
func (r *Reader) Read() (*Response, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, &MalformedMessageError{Line: line, Err: err}
		}
		return &resp, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Writer serializes request envelopes, one per line.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serializes req followed by exactly one newline.
func (w *Writer) Write(req *Request) error {
	if req.JSONRPC == "" {
		req.JSONRPC = Version
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request %s: %w", req.Method, err)
	}
	data = append(data, '\n')
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("write request %s: %w", req.Method, err)
	}
	return nil
}
