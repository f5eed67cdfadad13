// Package catalog defines the table of backend services the
// orchestrator can reach: which container hosts each service, how to
// start its stdio server, and what kind of data it owns.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend describes one containerized MCP service.
type Backend struct {
	// Name is the short identifier used in capability names and logs.
	Name string `yaml:"name"`
	// DisplayName is the human-readable service name.
	DisplayName string `yaml:"display_name"`
	// Description tells the decision function what the service is for.
	Description string `yaml:"description"`
	// Container is the container that hosts the service.
	Container string `yaml:"container"`
	// Command is the stdio server command run inside the container.
	// Defaults to ["python", "-u", "server.py"].
	Command []string `yaml:"command,omitempty"`
	// AttachAddr, when set, connects to a multiplexed attach socket
	// ("unix:///path" or "tcp://host:port") instead of running the
	// command through the container CLI.
	AttachAddr string `yaml:"attach_addr,omitempty"`
	// Entities lists the data entities the service owns.
	Entities []string `yaml:"entities,omitempty"`
}

// Catalog is an ordered, name-indexed set of backends.
type Catalog struct {
	backends []Backend
	byName   map[string]Backend
}

// file is the on-disk shape of a catalog.
type file struct {
	Backends []Backend `yaml:"backends"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog YAML and validates it.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Backends)
}

// New builds a catalog from backend entries, applying defaults and
// rejecting duplicates.
func New(backends []Backend) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Backend, len(backends))}
	for i, b := range backends {
		if b.Name == "" {
			return nil, fmt.Errorf("backend %d: name is required", i)
		}
		if b.Container == "" && b.AttachAddr == "" {
			return nil, fmt.Errorf("backend %s: container or attach_addr is required", b.Name)
		}
		if _, dup := c.byName[b.Name]; dup {
			return nil, fmt.Errorf("backend %s: duplicate name", b.Name)
		}
		if len(b.Command) == 0 {
			b.Command = []string{"python", "-u", "server.py"}
		}
		if b.DisplayName == "" {
			b.DisplayName = b.Name
		}
		c.backends = append(c.backends, b)
		c.byName[b.Name] = b
	}
	return c, nil
}

// Get returns the backend with the given name.
func (c *Catalog) Get(name string) (Backend, bool) {
	b, ok := c.byName[name]
	return b, ok
}

// Backends returns all backends in declaration order.
func (c *Catalog) Backends() []Backend {
	out := make([]Backend, len(c.backends))
	copy(out, c.backends)
	return out
}

// Names returns backend names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name
	}
	return names
}

// Len returns the number of backends.
func (c *Catalog) Len() int {
	return len(c.backends)
}

// Default returns the built-in catalog of Dutch data services used when
// no catalog file is configured.
func Default() *Catalog {
	c, err := New([]Backend{
		{
			Name:        "kadaster",
			DisplayName: "Kadaster",
			Description: "Dutch Land Registry: property ownership, cadastral data, building information.",
			Container:   "eai-kadaster-service",
			Entities:    []string{"Property", "Building", "Owner"},
		},
		{
			Name:        "cbs",
			DisplayName: "CBS",
			Description: "Statistics Netherlands: demographics, population, income, unemployment.",
			Container:   "eai-cbs-service",
			Entities:    []string{"Demographics"},
		},
		{
			Name:        "rijkswaterstaat",
			DisplayName: "Rijkswaterstaat",
			Description: "Infrastructure and water management: roads, bridges, water bodies, water levels.",
			Container:   "eai-rijkswaterstaat-service",
			Entities:    []string{"Road", "Bridge", "WaterBody"},
		},
	})
	if err != nil {
		panic(err) // static data, cannot fail
	}
	return c
}
