// Package llmclient implements the LLM client's consumed contract: given
// {task, recentFailures, context}, return at most N structured task
// suggestions or a BT-DSL JSON document. A provider abstraction narrowed
// to the single request/response shape this system
// needs, backed by go-openai instead of a hand-rolled HTTP client.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/noeticlabs/wayfinder/internal/goals"
	"github.com/noeticlabs/wayfinder/internal/htn"
	"github.com/noeticlabs/wayfinder/internal/plan"
)

// ExecutionTimeout and AbstractPlanningTimeout are the two model-level
// timeout tiers: 5s when the LLM is proposing the next concrete action, up to
// 40s when it's doing abstract capability-proposal planning.
const (
	ExecutionTimeout        = 5 * time.Second
	AbstractPlanningTimeout = 40 * time.Second
)

// Request is the narrow {task, recentFailures, context} contract.
type Request struct {
	Task           string
	RecentFailures []string
	Context        map[string]any
	MaxSuggestions int
}

// Suggestion is one proposed task the LLM thinks is worth attempting.
type Suggestion struct {
	Description string
	Confidence  float64
}

// Response carries a list of suggestions and/or a raw BT-DSL document.
// The system prompt asks the model for only one of the two, but
// parseResponse fills whichever fields the returned JSON contains, so
// both can be set.
type Response struct {
	Suggestions []Suggestion
	BTDSL       json.RawMessage
}

// Client is the LLM client collaborator.
type Client struct {
	api   *openai.Client
	model string
}

// New builds a Client against the OpenAI-compatible API at baseURL (empty
// uses the default OpenAI endpoint).
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Propose asks the model for suggestions or a BT-DSL document, respecting
// the caller's timeout tier.
func (c *Client) Propose(ctx context.Context, req Request) (Response, error) {
	n := req.MaxSuggestions
	if n <= 0 {
		n = 3
	}

	prompt := buildPrompt(req, n)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Response{}, fmt.Errorf("llmclient: propose: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("llmclient: propose: empty response")
	}
	return parseResponse(resp.Choices[0].Message.Content)
}

const systemPrompt = `You propose either a short list of candidate tasks or a single behavior-tree document as JSON. Respond with a JSON object shaped as {"suggestions":[{"description":"...","confidence":0.0}]} or {"bt_dsl":{...}}. Never include both.`

func buildPrompt(req Request, n int) string {
	ctxJSON, _ := json.Marshal(req.Context)
	return fmt.Sprintf("task: %s\nrecent_failures: %v\ncontext: %s\nmax_suggestions: %d", req.Task, req.RecentFailures, string(ctxJSON), n)
}

type wireResponse struct {
	Suggestions []Suggestion    `json:"suggestions"`
	BTDSL       json.RawMessage `json:"bt_dsl"`
}

func parseResponse(content string) (Response, error) {
	var wire wireResponse
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return Response{}, fmt.Errorf("llmclient: parse response: %w", err)
	}
	return Response{Suggestions: wire.Suggestions, BTDSL: wire.BTDSL}, nil
}

// Planner adapts Client to the coordinator.LLMPlanner contract: given a
// goal and known facts, produce a Plan. It asks the model for
// suggestions and turns the first one into a single-step plan; a BT-DSL
// response is left to internal/bt's compiler rather than re-implemented
// here.
type Planner struct {
	Client *Client
}

// Plan implements coordinator.LLMPlanner.
func (p *Planner) Plan(ctx context.Context, g goals.Goal, facts htn.Facts) (plan.Plan, error) {
	cctx, cancel := context.WithTimeout(ctx, ExecutionTimeout)
	defer cancel()

	resp, err := p.Client.Propose(cctx, Request{
		Task:           string(g.Type),
		Context:        factsToContext(facts),
		MaxSuggestions: 1,
	})
	if err != nil {
		return plan.Plan{}, err
	}
	if len(resp.Suggestions) == 0 {
		return plan.Plan{}, fmt.Errorf("llmclient: no suggestions for goal %q", g.Type)
	}

	step := plan.Step{
		ID:     g.ID + "-llm-step",
		Action: plan.Action{Type: resp.Suggestions[0].Description, Cost: 1 - resp.Suggestions[0].Confidence},
		Status: plan.StepPending,
	}
	return plan.Plan{ID: g.ID + "-llm-plan", Source: "llm", Steps: []plan.Step{step}}, nil
}

func factsToContext(facts htn.Facts) map[string]any {
	out := make(map[string]any, len(facts))
	for k, v := range facts {
		out[k] = v
	}
	return out
}
