package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mwiersma/landmeter/internal/orchestrator"
	"github.com/mwiersma/landmeter/internal/transcript"
)

var askMaxRounds int
var askModel string
var askNoTranscript bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question using the configured data services",
	Long: `Ask runs the full orchestration loop: discover backend tools, let
Claude decide which ones to call, execute the calls round by round, and
print the answer with source citations.

Example:
  landmeter ask "Hoeveel inwoners heeft Utrecht en wat is de gemiddelde WOZ-waarde?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askMaxRounds, "max-rounds", 0, "Override the maximum number of decision rounds")
	askCmd.Flags().StringVar(&askModel, "model", "", "Override the Claude model")
	askCmd.Flags().BoolVar(&askNoTranscript, "no-transcript", false, "Skip recording this run")
	askCmd.SilenceUsage = true
}

func runAsk(cmd *cobra.Command, args []string) error {
	goal := strings.TrimSpace(args[0])
	if goal == "" {
		return fmt.Errorf("question must not be empty")
	}

	env, err := buildEnv()
	if err != nil {
		return err
	}
	if err := env.checkDocker(); err != nil {
		return err
	}

	ctx := cmd.Context()

	if verbose {
		fmt.Printf("[DEBUG] Discovering tools across %d backends...\n", env.catalog.Len())
	}
	if err := env.registry.Discover(ctx); err != nil {
		return fmt.Errorf("discover capabilities: %w", err)
	}
	if verbose {
		fmt.Printf("[DEBUG] Discovered %d tools\n", env.registry.Len())
	}

	planner, apiClient, err := env.newPlanner(askModel)
	if err != nil {
		return err
	}

	maxRounds := env.cfg.Orchestrator.MaxRounds
	if askMaxRounds > 0 {
		maxRounds = askMaxRounds
	}

	loop := orchestrator.NewLoop(orchestrator.Config{
		Registry:  env.registry,
		Catalog:   env.catalog,
		Caller:    env.client,
		Decider:   planner,
		MaxRounds: maxRounds,
	})

	started := time.Now()
	rc, err := loop.Run(ctx, goal)
	if err != nil {
		return fmt.Errorf("run orchestration: %w", err)
	}
	finished := time.Now()

	result := orchestrator.Synthesize(rc, env.cfg.Orchestrator.HistoryTail)

	if !askNoTranscript && env.cfg.Transcript.Enabled {
		if err := recordRun(env, goal, rc, result, started, finished); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record transcript: %v\n", err)
		}
	}

	if result.Answer != nil {
		fmt.Println(result.Answer.Text)
		if verbose {
			in, out := apiClient.Tracker().Total()
			fmt.Printf("\n[DEBUG] %d rounds, %d tool calls, %d input / %d output tokens, %s\n",
				result.Answer.Rounds, result.Answer.Calls, in, out, finished.Sub(started).Round(time.Millisecond))
		}
		return nil
	}

	color.New(color.FgRed).Fprintf(os.Stderr, "No answer: %s\n", result.Failure.Reason)
	if len(result.Failure.History) > 0 {
		fmt.Fprintln(os.Stderr, "\nLast tool calls:")
		for _, o := range result.Failure.History {
			status := "ok"
			if o.Failed() {
				status = o.Err
			}
			fmt.Fprintf(os.Stderr, "  round %d  %-30s %s\n", o.Round+1, o.Capability, status)
		}
	}
	os.Exit(1)
	return nil
}

func recordRun(env *appEnv, goal string, rc *orchestrator.RunContext, result orchestrator.Result, started, finished time.Time) error {
	path := env.cfg.Transcript.Path
	if path == "" {
		path = transcript.DefaultPath()
	}

	store, err := transcript.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := transcript.Run{
		ID:         uuid.NewString(),
		Goal:       goal,
		Rounds:     rc.Round,
		Calls:      len(rc.History),
		StartedAt:  started,
		FinishedAt: finished,
	}
	if result.Answer != nil {
		run.Answer = result.Answer.Text
	} else {
		run.FailureReason = result.Failure.Reason
	}

	return store.Record(run, rc.History)
}
