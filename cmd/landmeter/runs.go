package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiersma/landmeter/internal/transcript"
)

var runsLimit int
var runsShow string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded orchestration runs",
	Long: `Runs lists past orchestration runs from the transcript database,
newest first. Use --show with a run id to print its full call history.`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().StringVar(&runsShow, "show", "", "Show the call history for one run id")
	runsCmd.SilenceUsage = true
}

func runRuns(cmd *cobra.Command, args []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}

	path := env.cfg.Transcript.Path
	if path == "" {
		path = transcript.DefaultPath()
	}

	store, err := transcript.Open(path)
	if err != nil {
		return fmt.Errorf("open transcripts: %w", err)
	}
	defer store.Close()

	if runsShow != "" {
		return showRun(store, runsShow)
	}

	runs, err := store.Recent(runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, r := range runs {
		goal := r.Goal
		if len(goal) > 60 {
			goal = goal[:57] + "..."
		}
		fmt.Printf("%s  %s  %d rounds/%d calls  ",
			r.ID[:8], r.StartedAt.Local().Format("2006-01-02 15:04"), r.Rounds, r.Calls)
		if r.FailureReason != "" {
			red.Print("FAILED")
		} else {
			green.Print("OK")
		}
		fmt.Printf("  %s\n", goal)
	}
	return nil
}

func showRun(store *transcript.Store, id string) error {
	runs, err := store.Recent(1000)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	var found *transcript.Run
	for i := range runs {
		if runs[i].ID == id || strings.HasPrefix(runs[i].ID, id) {
			if found != nil {
				return fmt.Errorf("run id %q is ambiguous", id)
			}
			found = &runs[i]
		}
	}
	if found == nil {
		return fmt.Errorf("no run with id %q", id)
	}

	fmt.Printf("Run:      %s\n", found.ID)
	fmt.Printf("Goal:     %s\n", found.Goal)
	fmt.Printf("Started:  %s\n", found.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n", found.FinishedAt.Sub(found.StartedAt).Round(10*time.Millisecond))
	if found.FailureReason != "" {
		color.New(color.FgRed).Printf("Failed:   %s\n", found.FailureReason)
	} else {
		fmt.Printf("Answer:   %s\n", found.Answer)
	}

	history, err := store.History(found.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	fmt.Println("\nCalls:")
	for _, o := range history {
		status := "ok"
		if o.Failed() {
			status = o.Err
		}
		fmt.Printf("  round %d  %-30s %-8s %s\n", o.Round+1, o.Capability, o.Duration.Round(10*time.Millisecond), status)
		if len(o.Arguments) > 0 {
			fmt.Printf("           args: %s\n", o.Arguments)
		}
	}
	return nil
}
