package orchestrator

import (
	"context"
	"encoding/json"
	"time"
)

// CallRequest is one capability invocation chosen by the decision
// function, identified by qualified capability name.
type CallRequest struct {
	Capability string
	Arguments  json.RawMessage
}

// Decision is the outcome of one planning step: either a terminal
// answer or a batch of capability calls to execute this round.
type Decision struct {
	Terminal bool
	Answer   string
	Calls    []CallRequest
}

// Terminal builds a terminal decision carrying the final answer.
func Terminal(answer string) Decision {
	return Decision{Terminal: true, Answer: answer}
}

// Continue builds a non-terminal decision with the calls to run next.
func Continue(calls ...CallRequest) Decision {
	return Decision{Calls: calls}
}

// Decider plans the next round given the goal and everything attempted
// so far. Implementations are opaque to the loop: they may be a remote
// model call, a rule engine, or a scripted sequence, and may be slow or
// nondeterministic.
type Decider interface {
	Decide(ctx context.Context, goal string, history []Outcome) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, goal string, history []Outcome) (Decision, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, goal string, history []Outcome) (Decision, error) {
	return f(ctx, goal, history)
}

// Outcome records one capability call and its result. Err is non-empty
// for failed calls: transport failures, timeouts, unknown capabilities,
// and rejected arguments all land here rather than aborting the round.
type Outcome struct {
	Round      int
	Capability string
	Arguments  json.RawMessage
	Result     json.RawMessage
	Err        string
	Duration   time.Duration
}

// Failed reports whether the call produced an error instead of a result.
func (o Outcome) Failed() bool { return o.Err != "" }

// RunContext is the mutable state of one orchestration run. It is owned
// exclusively by the loop that created it and must not be shared while
// the run is in flight.
type RunContext struct {
	Goal    string
	Round   int
	History []Outcome

	Terminal  bool
	Answer    string
	HasAnswer bool
}
