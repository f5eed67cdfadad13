package transport

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os/exec"
	"strings"
	"sync"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/mux"
)

// Channel is an ephemeral duplex byte transport dedicated to one
// session. Close must be safe to call more than once and after errors.
type Channel interface {
	io.Reader
	io.Writer
	Close() error
}

// Provisioner supplies a fresh channel to a backend. Implementations
// must return a channel whose Close tears down every underlying
// resource (process, socket) exactly once.
type Provisioner interface {
	Open(ctx context.Context, backend catalog.Backend) (Channel, error)
}

// ExecProvisioner opens channels by running the backend's stdio server
// through the container CLI (`docker exec -i <container> <command>`).
// The server's stderr arrives on a separate pipe and is logged
// line-wise under the backend's name.
type ExecProvisioner struct {
	// DockerBin overrides the container CLI binary. Defaults to "docker".
	DockerBin string
}

// Open implements Provisioner.
func (p *ExecProvisioner) Open(ctx context.Context, backend catalog.Backend) (Channel, error) {
	bin := p.DockerBin
	if bin == "" {
		bin = "docker"
	}

	args := append([]string{"exec", "-i", backend.Container}, backend.Command...)
	cmd := exec.Command(bin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	diag := mux.NewLineWriter(func(line string) {
		log.Printf("[%s stderr] %s", backend.Name, line)
	})
	cmd.Stderr = diag

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s %s: %w", bin, strings.Join(args, " "), err)
	}

	return &procChannel{cmd: cmd, stdin: stdin, stdout: stdout, diag: diag}, nil
}

// procChannel is a channel backed by a child process's stdio pipes.
type procChannel struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	diag   *mux.LineWriter

	closeOnce sync.Once
	closeErr  error
}

func (c *procChannel) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *procChannel) Write(p []byte) (int, error) { return c.stdin.Write(p) }

// Close tears the process down. Subsequent calls are no-ops returning
// the first result.
func (c *procChannel) Close() error {
	c.closeOnce.Do(func() {
		c.stdin.Close()
		if c.cmd.Process != nil {
			c.cmd.Process.Kill()
		}
		// Wait releases the pipes; the error is expected after Kill.
		c.cmd.Wait()
		c.diag.Flush()
	})
	return c.closeErr
}

// AttachProvisioner opens channels by dialing a container attach socket
// that multiplexes stdout and stderr into one stream. Reads pass through
// the demultiplexer; writes go to the socket unmodified.
type AttachProvisioner struct{}

// Open implements Provisioner. The backend's AttachAddr must be of the
// form "unix:///path/to.sock" or "tcp://host:port".
func (p *AttachProvisioner) Open(ctx context.Context, backend catalog.Backend) (Channel, error) {
	network, addr, err := splitAttachAddr(backend.AttachAddr)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial attach socket %s: %w", backend.AttachAddr, err)
	}

	diag := mux.NewLineWriter(func(line string) {
		log.Printf("[%s stderr] %s", backend.Name, line)
	})

	return &attachChannel{conn: conn, demux: mux.NewReader(conn, diag), diag: diag}, nil
}

func splitAttachAddr(raw string) (network, addr string, err error) {
	switch {
	case strings.HasPrefix(raw, "unix://"):
		return "unix", strings.TrimPrefix(raw, "unix://"), nil
	case strings.HasPrefix(raw, "tcp://"):
		return "tcp", strings.TrimPrefix(raw, "tcp://"), nil
	default:
		return "", "", fmt.Errorf("attach address %q: expected unix:// or tcp:// scheme", raw)
	}
}

// attachChannel is a channel backed by a multiplexed attach socket.
type attachChannel struct {
	conn  net.Conn
	demux *mux.Reader
	diag  *mux.LineWriter

	closeOnce sync.Once
	closeErr  error
}

func (c *attachChannel) Read(p []byte) (int, error)  { return c.demux.Read(p) }
func (c *attachChannel) Write(p []byte) (int, error) { return c.conn.Write(p) }

func (c *attachChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		c.diag.Flush()
	})
	return c.closeErr
}

// ProvisionerFor selects the channel strategy for a backend: attach
// socket when configured, container CLI exec otherwise.
type ProvisionerFor struct {
	Exec   Provisioner
	Attach Provisioner
}

// NewProvisioner returns the default provisioner selection.
func NewProvisioner() *ProvisionerFor {
	return &ProvisionerFor{Exec: &ExecProvisioner{}, Attach: &AttachProvisioner{}}
}

// Open implements Provisioner.
func (p *ProvisionerFor) Open(ctx context.Context, backend catalog.Backend) (Channel, error) {
	if backend.AttachAddr != "" {
		return p.Attach.Open(ctx, backend)
	}
	return p.Exec.Open(ctx, backend)
}
