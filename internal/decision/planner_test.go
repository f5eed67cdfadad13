package decision

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/orchestrator"
	"github.com/mwiersma/landmeter/internal/registry"
)

type staticLister struct {
	tools map[string]string
}

func (s *staticLister) ListTools(ctx context.Context, backend catalog.Backend) (json.RawMessage, error) {
	return json.RawMessage(s.tools[backend.Name]), nil
}

func testPlanner(t *testing.T) *Planner {
	t.Helper()

	cat, err := catalog.New([]catalog.Backend{
		{
			Name:        "kadaster",
			DisplayName: "Kadaster",
			Description: "Dutch Land Registry",
			Container:   "eai-kadaster-service",
		},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	reg := registry.New(cat, &staticLister{tools: map[string]string{
		"kadaster": `[
			{"name":"get_property_details","description":"Property details for a location","inputSchema":{"type":"object","properties":{"location_id":{"type":"string"}},"required":["location_id"]}},
			{"name":"get_owners"}
		]`,
	}})
	if err := reg.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	return NewPlanner(PlannerConfig{
		Client:   &Client{model: anthropic.ModelClaudeSonnet4_20250514},
		Registry: reg,
		Catalog:  cat,
	})
}

func TestToolParams(t *testing.T) {
	p := testPlanner(t)
	tools := p.toolParams()

	if len(tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(tools))
	}

	first := tools[0].OfTool
	if first == nil {
		t.Fatal("tools[0].OfTool is nil")
	}
	if first.Name != "kadaster_get_property_details" {
		t.Errorf("Name = %q, want qualified name", first.Name)
	}
	if !strings.HasPrefix(first.Description.Value, "[Kadaster]") {
		t.Errorf("Description = %q, want service prefix", first.Description.Value)
	}
	if len(first.InputSchema.Required) != 1 || first.InputSchema.Required[0] != "location_id" {
		t.Errorf("Required = %v", first.InputSchema.Required)
	}
	if _, ok := first.InputSchema.Properties.(map[string]interface{}); !ok {
		t.Errorf("Properties has type %T", first.InputSchema.Properties)
	}

	// A tool without its own description falls back to the backend's.
	second := tools[1].OfTool
	if second.Name != "kadaster_get_owners" {
		t.Errorf("Name = %q", second.Name)
	}
	if second.Description.Value != "Dutch Land Registry" {
		t.Errorf("Description = %q, want backend description fallback", second.Description.Value)
	}
}

func TestBuildMessagesEmptyHistory(t *testing.T) {
	p := testPlanner(t)
	messages := p.buildMessages("what is at Damrak 1?", nil)

	if len(messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(messages))
	}
	if messages[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("role = %v, want user", messages[0].Role)
	}
}

func TestBuildMessagesPairsRounds(t *testing.T) {
	p := testPlanner(t)

	history := []orchestrator.Outcome{
		{Round: 0, Capability: "kadaster_get_property_details", Arguments: json.RawMessage(`{"location_id":"LOC001"}`), Result: json.RawMessage(`{"owner":"Gemeente Amsterdam"}`)},
		{Round: 0, Capability: "kadaster_get_owners", Err: "call timeout"},
		{Round: 1, Capability: "kadaster_get_owners", Result: json.RawMessage(`{}`)},
	}

	messages := p.buildMessages("goal", history)

	// goal + (assistant, user) per round.
	if len(messages) != 5 {
		t.Fatalf("messages = %d, want 5", len(messages))
	}

	wantRoles := []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
	}
	for i, want := range wantRoles {
		if messages[i].Role != want {
			t.Errorf("messages[%d].Role = %v, want %v", i, messages[i].Role, want)
		}
	}

	// Round 0 carries both calls in one assistant message.
	if got := len(messages[1].Content); got != 2 {
		t.Errorf("round 0 assistant blocks = %d, want 2", got)
	}
	if got := len(messages[2].Content); got != 2 {
		t.Errorf("round 0 result blocks = %d, want 2", got)
	}
}

func TestNewPlannerDefaults(t *testing.T) {
	p := NewPlanner(PlannerConfig{Client: &Client{}})
	if p.systemPrompt == "" {
		t.Error("no default system prompt")
	}
	if !strings.Contains(p.systemPrompt, "MUST use the available tools") {
		t.Error("default prompt missing tool-only rule")
	}
	if p.maxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d", p.maxTokens)
	}
	if p.decideTimeout != DefaultDecideTimeout {
		t.Errorf("decideTimeout = %v", p.decideTimeout)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514)
	if !strings.HasPrefix(string(got), "us.anthropic.") {
		t.Errorf("translated model = %q", got)
	}

	// Unknown models pass through untouched.
	custom := anthropic.Model("custom-model")
	if translateModelForBedrock(custom) != custom {
		t.Error("custom model was rewritten")
	}
}
