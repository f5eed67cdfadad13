package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mwiersma/landmeter/internal/catalog"
	"github.com/mwiersma/landmeter/internal/orchestrator"
	"github.com/mwiersma/landmeter/internal/registry"
)

// DefaultDecideTimeout bounds one planning call. The model is an
// external collaborator and may be slow.
const DefaultDecideTimeout = 120 * time.Second

const defaultMaxTokens = 4096

// defaultSystemPrompt keeps the model honest: answers come from tool
// results only, with per-field source citations.
const defaultSystemPrompt = `You are an expert assistant that answers questions using data services.
Each available tool queries one backend service and returns structured data.

CRITICAL RULES:
1. You MUST use the available tools to gather all information
2. You MUST NOT make guesses or use general knowledge to answer questions
3. You MUST ONLY answer based on data returned from the tools
4. If a tool call fails or returns an error, inform the user that the data is unavailable
5. If you cannot get data from the tools, say so explicitly - do NOT provide approximations

CITATION REQUIREMENTS:
6. For EACH piece of information in your answer, cite the source tool that provided it
7. Use this format: "- **Field Name**: Value (Source: service > tool_name)"

Your answers must be based EXCLUSIVELY on tool results. No exceptions.`

// PlannerConfig assembles a Planner.
type PlannerConfig struct {
	Client   *Client
	Registry *registry.Registry
	Catalog  *catalog.Catalog
	// SystemPrompt overrides the default planning prompt.
	SystemPrompt string
	// MaxTokens caps the model's output per planning call.
	MaxTokens int64
	// DecideTimeout bounds one planning call (0 = DefaultDecideTimeout).
	DecideTimeout time.Duration
}

// Planner satisfies orchestrator.Decider with a Claude tool-use call.
type Planner struct {
	client        *Client
	registry      *registry.Registry
	catalog       *catalog.Catalog
	systemPrompt  string
	maxTokens     int64
	decideTimeout time.Duration
}

// NewPlanner creates a Planner from cfg.
func NewPlanner(cfg PlannerConfig) *Planner {
	p := &Planner{
		client:        cfg.Client,
		registry:      cfg.Registry,
		catalog:       cfg.Catalog,
		systemPrompt:  cfg.SystemPrompt,
		maxTokens:     cfg.MaxTokens,
		decideTimeout: cfg.DecideTimeout,
	}
	if p.systemPrompt == "" {
		p.systemPrompt = defaultSystemPrompt
	}
	if p.maxTokens == 0 {
		p.maxTokens = defaultMaxTokens
	}
	if p.decideTimeout == 0 {
		p.decideTimeout = DefaultDecideTimeout
	}
	return p
}

// Decide implements orchestrator.Decider. Tool-use blocks in the model
// response become capability calls; a plain text response is the
// terminal answer.
func (p *Planner) Decide(ctx context.Context, goal string, history []orchestrator.Outcome) (orchestrator.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, p.decideTimeout)
	defer cancel()

	resp, err := p.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.client.Model(),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: p.systemPrompt},
		},
		Messages: p.buildMessages(goal, history),
		Tools:    p.toolParams(),
	})
	if err != nil {
		return orchestrator.Decision{}, fmt.Errorf("planning call failed: %w", err)
	}

	p.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var calls []orchestrator.CallRequest
	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, orchestrator.CallRequest{
				Capability: variant.Name,
				Arguments:  json.RawMessage(variant.Input),
			})
		}
	}

	if len(calls) > 0 {
		return orchestrator.Continue(calls...), nil
	}
	if text.Len() == 0 {
		return orchestrator.Decision{}, fmt.Errorf("model returned neither tool calls nor an answer")
	}
	return orchestrator.Terminal(text.String()), nil
}

// buildMessages reconstructs the conversation from the run history: the
// goal, then one assistant/user pair per executed round carrying the
// tool calls and their results. Synthetic tool-use ids keep the pairs
// correlated.
func (p *Planner) buildMessages(goal string, history []orchestrator.Outcome) []anthropic.MessageParam {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(goal)),
	}

	for start := 0; start < len(history); {
		round := history[start].Round
		end := start
		for end < len(history) && history[end].Round == round {
			end++
		}

		var useBlocks []anthropic.ContentBlockParamUnion
		var resultBlocks []anthropic.ContentBlockParamUnion
		for i := start; i < end; i++ {
			o := history[i]
			id := fmt.Sprintf("call_%d", i)

			args := o.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			useBlocks = append(useBlocks, anthropic.NewToolUseBlock(id, args, o.Capability))

			if o.Failed() {
				resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(id, o.Err, true))
			} else {
				resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(id, string(o.Result), false))
			}
		}

		messages = append(messages, anthropic.NewAssistantMessage(useBlocks...))
		messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
		start = end
	}

	return messages
}

// toolParams converts the discovered capabilities to Claude tool
// definitions, one per capability under its qualified name.
func (p *Planner) toolParams() []anthropic.ToolUnionParam {
	caps := p.registry.Capabilities()
	tools := make([]anthropic.ToolUnionParam, 0, len(caps))

	for _, c := range caps {
		var schema struct {
			Properties map[string]interface{} `json:"properties"`
			Required   []string               `json:"required"`
		}
		if len(c.InputSchema) > 0 {
			json.Unmarshal(c.InputSchema, &schema)
		}

		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        c.QualifiedName(),
				Description: anthropic.String(p.describe(c)),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema.Properties,
					Required:   schema.Required,
				},
			},
		})
	}
	return tools
}

// describe prefixes the tool description with the owning service so the
// model knows which agency's data it is looking at.
func (p *Planner) describe(c registry.Capability) string {
	desc := c.Description
	if p.catalog != nil {
		if b, ok := p.catalog.Get(c.Backend); ok {
			if desc == "" {
				desc = b.Description
			} else {
				desc = fmt.Sprintf("[%s] %s", b.DisplayName, desc)
			}
		}
	}
	if desc == "" {
		desc = fmt.Sprintf("Tool %s on backend %s", c.Name, c.Backend)
	}
	return desc
}
