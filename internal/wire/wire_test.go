package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Write(&Request{
		ID:     "req-1",
		Method: MethodCallTool,
		Params: map[string]any{"name": "get_water_level", "arguments": map[string]any{"location_id": "LOC001"}},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("serialized request missing newline delimiter: %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("serialized request has %d newlines, want 1", strings.Count(line, "\n"))
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("decode written request: %v", err)
	}
	if decoded["jsonrpc"] != Version {
		t.Errorf("jsonrpc = %v, want %q", decoded["jsonrpc"], Version)
	}
	if decoded["id"] != "req-1" {
		t.Errorf("id = %v, want req-1", decoded["id"])
	}
	if decoded["method"] != MethodCallTool {
		t.Errorf("method = %v, want %s", decoded["method"], MethodCallTool)
	}
}

func TestReadResultEnvelope(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"abc","result":{"tools":[]}}` + "\n"

	r := NewReader(strings.NewReader(input))
	resp, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if resp.ID != "abc" {
		t.Errorf("ID = %q, want abc", resp.ID)
	}
	if resp.Err != nil {
		t.Errorf("Err = %v, want nil", resp.Err)
	}
	if string(resp.Result) != `{"tools":[]}` {
		t.Errorf("Result = %s", resp.Result)
	}
}

func TestReadErrorEnvelope(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"abc","error":{"code":-32601,"message":"Method not found: nope"}}` + "\n"

	r := NewReader(strings.NewReader(input))
	resp, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if resp.Err == nil {
		t.Fatal("Err = nil, want RPC error")
	}
	if resp.Err.Code != -32601 {
		t.Errorf("Code = %d, want -32601", resp.Err.Code)
	}
	if !strings.Contains(resp.Err.Error(), "Method not found") {
		t.Errorf("Error() = %q", resp.Err.Error())
	}
}

func TestReadMalformedLine(t *testing.T) {
	input := "this is not json\n"

	r := NewReader(strings.NewReader(input))
	_, err := r.Read()

	var malformed *MalformedMessageError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedMessageError", err)
	}
	if malformed.Line != "this is not json" {
		t.Errorf("Line = %q", malformed.Line)
	}
}

func TestReadSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"jsonrpc":"2.0","id":"x","result":1}` + "\n\n"

	r := NewReader(strings.NewReader(input))
	resp, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if resp.ID != "x" {
		t.Errorf("ID = %q, want x", resp.ID)
	}

	if _, err := r.Read(); err != io.EOF {
		t.Errorf("second Read err = %v, want io.EOF", err)
	}
}

func TestReadLongLine(t *testing.T) {
	// A tool result well past bufio.Scanner's default 64KB token size.
	payload := strings.Repeat("y", 200*1024)
	input := `{"jsonrpc":"2.0","id":"big","result":"` + payload + `"}` + "\n"

	r := NewReader(strings.NewReader(input))
	resp, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var got string
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(got) != len(payload) {
		t.Errorf("result length = %d, want %d", len(got), len(payload))
	}
}

func TestMalformedMessageErrorTruncates(t *testing.T) {
	e := &MalformedMessageError{Line: strings.Repeat("z", 500), Err: errors.New("boom")}
	if len(e.Error()) > 200 {
		t.Errorf("error string too long: %d chars", len(e.Error()))
	}
}
