package orchestrator

import "fmt"

// DefaultHistoryTail is how many trailing history entries a Failure
// carries for diagnosis.
const DefaultHistoryTail = 5

// ReasonMaxRounds marks a run that hit the round ceiling without a
// terminal decision.
const ReasonMaxRounds = "maximum rounds reached without a terminal answer"

// Answer is a successful run outcome. Text is the decision function's
// answer, verbatim.
type Answer struct {
	Text   string
	Rounds int
	Calls  int
}

// Failure is an unsuccessful run outcome with enough trailing history
// to explain what was attempted.
type Failure struct {
	Reason  string
	History []Outcome
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (%d history entries attached)", f.Reason, len(f.History))
}

// Result is the caller-facing outcome of a run: exactly one of Answer
// or Failure is set.
type Result struct {
	Answer  *Answer
	Failure *Failure
}

// Synthesize maps a terminal RunContext to the caller-facing result.
// Deterministic: the same context always yields the same result. tail
// bounds the history attached to failures (0 = DefaultHistoryTail).
func Synthesize(rc *RunContext, tail int) Result {
	if tail <= 0 {
		tail = DefaultHistoryTail
	}

	if rc.Terminal && rc.HasAnswer {
		return Result{Answer: &Answer{
			Text:   rc.Answer,
			Rounds: rc.Round,
			Calls:  len(rc.History),
		}}
	}

	reason := ReasonMaxRounds
	if !rc.Terminal {
		reason = "run aborted before reaching a terminal state"
	}

	history := rc.History
	if len(history) > tail {
		history = history[len(history)-tail:]
	}
	attached := make([]Outcome, len(history))
	copy(attached, history)

	return Result{Failure: &Failure{Reason: reason, History: attached}}
}
