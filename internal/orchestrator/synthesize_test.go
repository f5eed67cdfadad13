package orchestrator

import (
	"fmt"
	"testing"
)

func TestSynthesizeAnswerVerbatim(t *testing.T) {
	rc := &RunContext{
		Goal:      "q",
		Round:     2,
		History:   []Outcome{{Capability: "a"}, {Capability: "b"}},
		Terminal:  true,
		Answer:    "  The owner is Gemeente Amsterdam.\n",
		HasAnswer: true,
	}

	result := Synthesize(rc, 0)
	if result.Failure != nil {
		t.Fatalf("unexpected failure: %v", result.Failure)
	}
	// Verbatim: no trimming, no rewriting.
	if result.Answer.Text != rc.Answer {
		t.Errorf("Text = %q, want %q", result.Answer.Text, rc.Answer)
	}
	if result.Answer.Rounds != 2 || result.Answer.Calls != 2 {
		t.Errorf("Rounds = %d, Calls = %d, want 2, 2", result.Answer.Rounds, result.Answer.Calls)
	}
}

func TestSynthesizeFailureCarriesHistoryTail(t *testing.T) {
	rc := &RunContext{Goal: "q", Terminal: true}
	for i := 0; i < 12; i++ {
		rc.History = append(rc.History, Outcome{Capability: fmt.Sprintf("cap%d", i)})
	}

	result := Synthesize(rc, 3)
	if result.Failure == nil {
		t.Fatal("expected failure")
	}
	if len(result.Failure.History) != 3 {
		t.Fatalf("history tail = %d entries, want 3", len(result.Failure.History))
	}
	// The tail is the most recent entries.
	if result.Failure.History[2].Capability != "cap11" {
		t.Errorf("last tail entry = %s, want cap11", result.Failure.History[2].Capability)
	}
}

func TestSynthesizeDefaultTail(t *testing.T) {
	rc := &RunContext{Terminal: true}
	for i := 0; i < 20; i++ {
		rc.History = append(rc.History, Outcome{})
	}

	result := Synthesize(rc, 0)
	if len(result.Failure.History) != DefaultHistoryTail {
		t.Errorf("tail = %d, want %d", len(result.Failure.History), DefaultHistoryTail)
	}
}

func TestSynthesizeNonTerminalContext(t *testing.T) {
	result := Synthesize(&RunContext{Goal: "q"}, 0)
	if result.Failure == nil {
		t.Fatal("non-terminal context synthesized to success")
	}
	if result.Failure.Reason == ReasonMaxRounds {
		t.Error("non-terminal context misreported as max-rounds failure")
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	rc := &RunContext{Terminal: true, HasAnswer: true, Answer: "x", Round: 1}
	a := Synthesize(rc, 0)
	b := Synthesize(rc, 0)
	if *a.Answer != *b.Answer {
		t.Error("Synthesize not deterministic for identical contexts")
	}
}
