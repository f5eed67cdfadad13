package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/registry"
)

var toolsWatch bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered by all backends",
	Long: `Tools queries every backend in the catalog for its tool listing and
prints the qualified tool names with their descriptions.

With --watch, the command keeps running and re-discovers tools whenever
the catalog file changes. Discovery never happens implicitly: outside
of --watch, each invocation queries the backends exactly once.`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsWatch, "watch", false, "Re-discover tools when the catalog file changes")
	toolsCmd.SilenceUsage = true
}

func runTools(cmd *cobra.Command, args []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if err := env.checkDocker(); err != nil {
		return err
	}

	ctx := cmd.Context()

	if err := env.registry.Discover(ctx); err != nil {
		return fmt.Errorf("discover capabilities: %w", err)
	}
	printCapabilities(env.registry)

	if !toolsWatch {
		return nil
	}

	path := env.resolvedCatalogPath()
	if path == "" {
		return fmt.Errorf("--watch needs a catalog file; pass --catalog or set catalog.path")
	}

	watcher, err := catalog.Watch(path)
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nWatching %s for changes (Ctrl-C to stop)...\n", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Changes():
			cat, err := catalog.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: reload catalog: %v\n", err)
				continue
			}
			env.catalog = cat
			env.registry = registry.New(cat, env.client)
			if err := env.registry.Refresh(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: rediscover tools: %v\n", err)
				continue
			}
			fmt.Printf("\nCatalog changed, %d tools:\n", env.registry.Len())
			printCapabilities(env.registry)
		}
	}
}

func printCapabilities(reg *registry.Registry) {
	caps := reg.Capabilities()
	if len(caps) == 0 {
		fmt.Println("No tools discovered.")
		return
	}

	nameColor := color.New(color.FgCyan)
	for _, c := range caps {
		nameColor.Printf("  %s\n", c.QualifiedName())
		if c.Description != "" {
			fmt.Printf("      %s\n", c.Description)
		}
	}
	fmt.Printf("\n%d tools across backends\n", len(caps))
}
