package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/wayfinder/internal/goals"
	"github.com/noeticlabs/wayfinder/internal/htn"
	"github.com/noeticlabs/wayfinder/internal/needs"
)

func fakeServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestProposeParsesSuggestions(t *testing.T) {
	srv := fakeServer(t, `{"suggestions":[{"description":"gather_wood","confidence":0.8}]}`)
	defer srv.Close()

	c := New("test-key", srv.URL+"/v1", "gpt-4o-mini")
	resp, err := c.Propose(context.Background(), Request{Task: "build_shelter"})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "gather_wood", resp.Suggestions[0].Description)
	assert.Equal(t, 0.8, resp.Suggestions[0].Confidence)
}

func TestPlannerProducesSingleStepPlan(t *testing.T) {
	srv := fakeServer(t, `{"suggestions":[{"description":"eat_nearby_food","confidence":0.6}]}`)
	defer srv.Close()

	p := &Planner{Client: New("test-key", srv.URL+"/v1", "gpt-4o-mini")}
	g := goals.Goal{ID: "goal-1", Type: needs.TypeNutrition}
	plan, err := p.Plan(context.Background(), g, htn.Facts{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "eat_nearby_food", plan.Steps[0].Action.Type)
}
