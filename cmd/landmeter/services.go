package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiersma/landmeter/internal/dockercli"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Show catalog backends and their container status",
	RunE:  runServices,
}

func init() {
	servicesCmd.SilenceUsage = true
}

func runServices(cmd *cobra.Command, args []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if err := env.checkDocker(); err != nil {
		return err
	}

	runner := dockercli.NewRunner()
	ctx := cmd.Context()

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, b := range env.catalog.Backends() {
		name := b.DisplayName
		if name == "" {
			name = b.Name
		}
		fmt.Printf("%-20s", name)

		if b.AttachAddr != "" {
			fmt.Printf(" attach %s\n", b.AttachAddr)
		} else {
			status := dockercli.InspectContainer(ctx, runner, b.Container)
			if status.Running {
				green.Printf(" %s (%s)\n", status.State, b.Container)
			} else {
				red.Printf(" %s (%s)\n", status.State, b.Container)
			}
		}

		if len(b.Entities) > 0 {
			fmt.Printf("%20s entities: %s\n", "", strings.Join(b.Entities, ", "))
		}
	}
	return nil
}
