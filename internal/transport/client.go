package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/wire"
)

// Client performs backend calls with the default one-session-per-call
// policy: every Invoke opens a fresh channel, handshakes, exchanges one
// pair, and tears the channel down. This bounds the blast radius of a
// misbehaving backend to a single call.
type Client struct {
	Provisioner Provisioner
	Options     Options
}

// NewClient returns a client over the given provisioner.
func NewClient(prov Provisioner, opts Options) *Client {
	return &Client{Provisioner: prov, Options: opts}
}

// Invoke runs one method against a backend on a dedicated session. An
// RPC-level error from the backend is returned as *wire.RPCError.
func (c *Client) Invoke(ctx context.Context, backend catalog.Backend, method string, params any) (json.RawMessage, error) {
	s, err := Dial(ctx, c.Provisioner, backend, c.Options)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	resp, err := s.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// CallTool invokes a named tool on a backend.
func (c *Client) CallTool(ctx context.Context, backend catalog.Backend, tool string, args json.RawMessage) (json.RawMessage, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return c.Invoke(ctx, backend, wire.MethodCallTool, map[string]any{
		"name":      tool,
		"arguments": args,
	})
}

// ListTools returns the backend's tool list (the raw "tools" array).
func (c *Client) ListTools(ctx context.Context, backend catalog.Backend) (json.RawMessage, error) {
	result, err := c.Invoke(ctx, backend, wire.MethodListTools, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Tools json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(result, &body); err != nil {
		return nil, fmt.Errorf("decode tools/list result from %s: %w", backend.Name, err)
	}
	return body.Tools, nil
}
