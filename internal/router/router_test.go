package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteEmergencyAlwaysWins(t *testing.T) {
	d := Route(context.Background(), Traits{Emergency: true, Structured: true, Creative: true})
	assert.Equal(t, TargetReactive, d.Router)
}

func TestRouteStructuredAndCreativeGoesCollaborative(t *testing.T) {
	d := Route(context.Background(), Traits{Structured: true, Creative: true})
	assert.Equal(t, TargetCollaborative, d.Router)
}

func TestRouteStructuredOnlyGoesHRM(t *testing.T) {
	d := Route(context.Background(), Traits{Structured: true})
	assert.Equal(t, TargetHRMStructured, d.Router)
}

func TestRouteCreativeOnlyGoesLLM(t *testing.T) {
	d := Route(context.Background(), Traits{Creative: true})
	assert.Equal(t, TargetLLM, d.Router)
}

func TestRouteDefaultGoesLLM(t *testing.T) {
	d := Route(context.Background(), Traits{})
	assert.Equal(t, TargetLLM, d.Router)
	assert.NotEmpty(t, d.Reasoning)
}
