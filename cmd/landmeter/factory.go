package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/config"
	"github.com/mwiersma/landmeter/internal/decision"
	"github.com/mwiersma/landmeter/internal/dockercli"
	"github.com/mwiersma/landmeter/internal/registry"
	"github.com/mwiersma/landmeter/internal/transport"
	"github.com/mwiersma/landmeter/internal/version"
)

// appEnv bundles the shared wiring every subcommand needs: config,
// catalog, transport client, and capability registry.
type appEnv struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	client   *transport.Client
	registry *registry.Registry
}

// buildEnv loads configuration and the backend catalog, then wires the
// transport client and an (undiscovered) capability registry.
func buildEnv() (*appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	opts := transport.Options{
		HandshakeTimeout: cfg.Timeouts.Handshake,
		CallTimeout:      cfg.Timeouts.Call,
		ClientVersion:    version.Get(),
	}
	client := transport.NewClient(transport.NewProvisioner(), opts)

	return &appEnv{
		cfg:      cfg,
		catalog:  cat,
		client:   client,
		registry: registry.New(cat, client),
	}, nil
}

// loadCatalog resolves the backend catalog: --catalog flag, then the
// configured path, then the built-in services.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	path := catalogPath
	if path == "" {
		path = cfg.Catalog.Path
	}
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cat, nil
}

// resolvedCatalogPath returns the catalog file in effect, or "" when
// the built-in catalog is used.
func (env *appEnv) resolvedCatalogPath() string {
	if catalogPath != "" {
		return catalogPath
	}
	return env.cfg.Catalog.Path
}

// needsDocker reports whether any backend is reached through the
// container CLI rather than an attach socket.
func (env *appEnv) needsDocker() bool {
	for _, b := range env.catalog.Backends() {
		if b.AttachAddr == "" {
			return true
		}
	}
	return false
}

// checkDocker verifies the docker CLI when any catalog backend needs it.
func (env *appEnv) checkDocker() error {
	if !env.needsDocker() {
		return nil
	}
	return dockercli.CheckDockerCLI()
}

// newPlanner creates the Claude-backed decision function from the
// loaded configuration.
func (env *appEnv) newPlanner(modelOverride string) (*decision.Planner, *decision.Client, error) {
	model := env.cfg.Anthropic.Model
	if modelOverride != "" {
		model = modelOverride
	}

	clientCfg := decision.ClientConfig{
		Model:         anthropic.Model(model),
		UseAWSBedrock: env.cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     env.cfg.Anthropic.AWSRegion,
		AWSProfile:    env.cfg.Anthropic.AWSProfile,
	}
	if !clientCfg.UseAWSBedrock {
		key, err := config.GetAPIKey(env.cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or run: landmeter config anthropic.api_key <key>", err)
		}
		clientCfg.APIKey = key
	}

	client, err := decision.NewClient(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create API client: %w", err)
	}

	planner := decision.NewPlanner(decision.PlannerConfig{
		Client:        client,
		Registry:      env.registry,
		Catalog:       env.catalog,
		DecideTimeout: env.cfg.Timeouts.Decide,
	})
	return planner, client, nil
}
