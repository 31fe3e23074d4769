package memoryclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFetchesAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/state", r.URL.Path)
		_ = json.NewEncoder(w).Encode(StateResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.State(context.Background())
	require.NoError(t, err)
}

func TestSearchPostsBodyAndParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "village", req.Query)
		_ = json.NewEncoder(w).Encode([]Memory{{ID: "m1", Text: "found village", Score: 0.9}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	results, err := c.Search(context.Background(), SearchRequest{Query: "village", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestCallRetriesThenTripsBreaker(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.State(context.Background())
	require.Error(t, err)
	assert.Equal(t, MaxAttempts, attempts)

	// Each failed call records one breaker failure; once consecutive
	// failures reach the threshold, the next call is short-circuited by the
	// breaker without hitting the server again.
	for i := 0; i < breakerTrips-1; i++ {
		_, _ = c.State(context.Background())
	}
	_, err = c.State(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
