// Package transport owns the per-call session with a backend service:
// it opens an ephemeral channel, performs the initialize handshake,
// exchanges exactly one request/response pair per call, and guarantees
// the channel is torn down once on every exit path.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/wire"
)

// ProtocolVersion is the MCP protocol revision negotiated during the
// handshake.
const ProtocolVersion = "2024-11-05"

// Default timeouts. Overridable through Options.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultCallTimeout      = 30 * time.Second
)

// Sentinel errors for session outcomes.
var (
	// ErrHandshakeFailed marks a session that never reached Ready.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrCallTimeout marks a call whose response did not arrive within
	// the budget. The session is closed; the channel is not reused past
	// an unanswered call.
	ErrCallTimeout = errors.New("call timeout")
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateChannelOpen
	StateHandshaking
	StateReady
	StateCalling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChannelOpen:
		return "channel-open"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateCalling:
		return "calling"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures session behavior.
type Options struct {
	HandshakeTimeout time.Duration
	CallTimeout      time.Duration
	// ClientName and ClientVersion identify this client in the
	// initialize handshake.
	ClientName    string
	ClientVersion string
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.ClientName == "" {
		o.ClientName = "landmeter"
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "dev"
	}
	return o
}

// readResult carries one decoded envelope or a terminal read error from
// the reader goroutine.
type readResult struct {
	resp *wire.Response
	err  error
}

// Session is one ephemeral connection to a backend. It serves exactly
// one request/response pair after the handshake and is then closed by
// the caller.
type Session struct {
	backend catalog.Backend
	opts    Options

	ch Channel
	w  *wire.Writer

	mu    sync.Mutex
	state State

	responses chan readResult
	done      chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a channel to the backend and performs the initialize
// handshake. On any failure the channel is torn down before returning.
func Dial(ctx context.Context, prov Provisioner, backend catalog.Backend, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	ch, err := prov.Open(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("open channel to %s: %w", backend.Name, err)
	}

	s := &Session{
		backend:   backend,
		opts:      opts,
		ch:        ch,
		w:         wire.NewWriter(ch),
		state:     StateChannelOpen,
		responses: make(chan readResult),
		done:      make(chan struct{}),
	}
	go s.readLoop()

	s.setState(StateHandshaking)
	if err := s.handshake(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrHandshakeFailed, backend.Name, err)
	}
	s.setState(StateReady)
	return s, nil
}

// Backend returns the backend this session is connected to.
func (s *Session) Backend() catalog.Backend { return s.backend }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// readLoop decodes envelopes off the channel until it fails or the
// session closes. It is the only reader of the channel.
func (s *Session) readLoop() {
	r := wire.NewReader(s.ch)
	for {
		resp, err := r.Read()
		select {
		case s.responses <- readResult{resp: resp, err: err}:
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) handshake(ctx context.Context) error {
	id := uuid.NewString()
	req := &wire.Request{
		ID:     id,
		Method: wire.MethodInitialize,
		Params: map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    s.opts.ClientName,
				"version": s.opts.ClientVersion,
			},
		},
	}
	if err := s.w.Write(req); err != nil {
		return err
	}

	resp, err := s.await(ctx, id, s.opts.HandshakeTimeout)
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return resp.Err
	}
	return nil
}

// Call sends one request envelope and blocks until its correlated
// response arrives or the timeout elapses. Transport failures close the
// session; an RPC-level error leaves it Ready.
func (s *Session) Call(ctx context.Context, method string, params any) (*wire.Response, error) {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("call %s on %s: session is %s, not ready", method, s.backend.Name, st)
	}
	s.state = StateCalling
	s.mu.Unlock()

	id := uuid.NewString()
	if err := s.w.Write(&wire.Request{ID: id, Method: method, Params: params}); err != nil {
		s.Close()
		return nil, fmt.Errorf("call %s on %s: %w", method, s.backend.Name, err)
	}

	resp, err := s.await(ctx, id, s.opts.CallTimeout)
	if err != nil {
		// Timeout, malformed message, or channel failure: the
		// channel cannot be trusted for another exchange.
		s.Close()
		return nil, fmt.Errorf("call %s on %s: %w", method, s.backend.Name, err)
	}

	s.setState(StateReady)
	return resp, nil
}

// await reads envelopes until one matches id. Responses bearing another
// id are protocol anomalies: logged and dropped, never delivered.
func (s *Session) await(ctx context.Context, id string, timeout time.Duration) (*wire.Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case rr := <-s.responses:
			if rr.err != nil {
				return nil, rr.err
			}
			if rr.resp.ID != id {
				log.Printf("[session] %s: protocol anomaly: dropping response with unmatched id %q", s.backend.Name, rr.resp.ID)
				continue
			}
			return rr.resp, nil
		case <-timer.C:
			return nil, ErrCallTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close tears down the channel. It is idempotent and safe on every
// path, including after errors.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.done)
		s.closeErr = s.ch.Close()
	})
	return s.closeErr
}
