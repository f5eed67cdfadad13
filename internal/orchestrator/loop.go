// Package orchestrator drives the bounded tool-calling loop: it asks a
// decision function which capabilities to invoke, executes each round's
// calls concurrently over independent transport sessions, folds the
// outcomes into the run's history, and halts deterministically at the
// round ceiling.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/registry"
)

// DefaultMaxRounds bounds the loop when no explicit ceiling is set.
const DefaultMaxRounds = 5

// Caller executes one tool call against a backend. *transport.Client
// satisfies it; the call's timeout is the caller's responsibility.
type Caller interface {
	CallTool(ctx context.Context, backend catalog.Backend, tool string, args json.RawMessage) (json.RawMessage, error)
}

// Config assembles a Loop's collaborators.
type Config struct {
	Registry *registry.Registry
	Catalog  *catalog.Catalog
	Caller   Caller
	Decider  Decider
	// MaxRounds caps decision rounds (0 = DefaultMaxRounds).
	MaxRounds int
}

// Loop is the orchestration control loop. One Loop may serve many runs;
// each Run gets its own RunContext.
type Loop struct {
	registry  *registry.Registry
	catalog   *catalog.Catalog
	caller    Caller
	decider   Decider
	maxRounds int
}

// NewLoop creates a Loop from cfg.
func NewLoop(cfg Config) *Loop {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		caller:    cfg.Caller,
		decider:   cfg.Decider,
		maxRounds: maxRounds,
	}
}

// Run executes the loop for one goal. It returns a terminal RunContext:
// either the decision function produced an answer, or the round ceiling
// was hit and the context is terminal with no answer. Only a failing
// decision function aborts the run with an error.
func (l *Loop) Run(ctx context.Context, goal string) (*RunContext, error) {
	rc := &RunContext{Goal: goal}

	for rc.Round < l.maxRounds {
		decision, err := l.decider.Decide(ctx, goal, rc.History)
		if err != nil {
			return rc, fmt.Errorf("decision failed in round %d: %w", rc.Round, err)
		}

		if decision.Terminal {
			rc.Terminal = true
			rc.Answer = decision.Answer
			rc.HasAnswer = true
			log.Printf("[loop] terminal answer after %d round(s), %d call(s)", rc.Round, len(rc.History))
			return rc, nil
		}

		log.Printf("[loop] round %d: %d call(s) requested", rc.Round, len(decision.Calls))
		outcomes := l.executeRound(ctx, rc.Round, decision.Calls)
		rc.History = append(rc.History, outcomes...)
		rc.Round++
	}

	// Ceiling reached without a terminal decision: explicit failure,
	// never a silent empty answer.
	rc.Terminal = true
	log.Printf("[loop] round ceiling (%d) reached without a terminal answer", l.maxRounds)
	return rc, nil
}

// executeRound resolves and runs one round's calls concurrently, each
// on its own ephemeral session. The returned outcomes are ordered by
// issue order, not completion order, so transcripts are reproducible.
// Wait is the round barrier: no partial-round progress is ever exposed
// to the decision function.
func (l *Loop) executeRound(ctx context.Context, round int, calls []CallRequest) []Outcome {
	outcomes := make([]Outcome, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		outcomes[i] = Outcome{
			Round:      round,
			Capability: call.Capability,
			Arguments:  call.Arguments,
		}

		// Unresolvable or invalid calls are recorded and skipped;
		// the rest of the round still executes.
		cap, err := l.registry.Lookup(call.Capability)
		if err != nil {
			log.Printf("[loop] round %d: %v", round, err)
			outcomes[i].Err = err.Error()
			continue
		}
		if err := registry.ValidateArguments(cap, call.Arguments); err != nil {
			log.Printf("[loop] round %d: %v", round, err)
			outcomes[i].Err = err.Error()
			continue
		}
		backend, ok := l.catalog.Get(cap.Backend)
		if !ok {
			outcomes[i].Err = fmt.Sprintf("backend %q missing from catalog", cap.Backend)
			continue
		}

		wg.Add(1)
		go func(i int, cap registry.Capability, backend catalog.Backend, args json.RawMessage) {
			defer wg.Done()

			start := time.Now()
			result, err := l.caller.CallTool(ctx, backend, cap.Name, args)
			outcomes[i].Duration = time.Since(start)
			if err != nil {
				log.Printf("[loop] round %d: %s failed: %v", round, cap.QualifiedName(), err)
				outcomes[i].Err = err.Error()
				return
			}
			outcomes[i].Result = result
		}(i, cap, backend, call.Arguments)
	}

	wg.Wait()
	return outcomes
}
