package card

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/retry"
)

const validCard = `{
	"name": "research-agent",
	"description": "Answers research questions with citations",
	"url": "https://agent.example/a2a",
	"version": "1.2.0",
	"capabilities": {
		"streaming": true,
		"extensions": [
			{"uri": "https://a2a-extensions.dev/citations/v1"},
			{"uri": "https://a2a-extensions.dev/trajectory/v1"}
		]
	},
	"skills": [
		{"id": "research", "name": "Research", "tags": ["web"]}
	]
}`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WellKnownPath, r.URL.Path)
		fmt.Fprint(w, validCard)
	}))
	defer srv.Close()

	f := NewFetcher()
	card, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "research-agent", card.Name)
	assert.True(t, card.SupportsStreaming())
	assert.True(t, card.SupportsExtension("https://a2a-extensions.dev/citations/v1"))
	assert.False(t, card.SupportsExtension("https://a2a-extensions.dev/canvas-edit/v1"))
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "research", card.Skills[0].ID)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, validCard)
	}))
	defer srv.Close()

	f := NewFetcher(WithRetryConfig(retry.Config{
		MaxAttempts:  4,
		InitialDelay: 1,
		MaxDelay:     1,
		Multiplier:   1,
	}))
	card, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "research-agent", card.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var terr *agentwire.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
}

func TestFetchRejectsInvalidCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"description": "no name or url"}`)
	}))
	defer srv.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Problems)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte(validCard)))
	assert.Error(t, Validate([]byte(`{"name": ""}`)))
	assert.Error(t, Validate([]byte(`not json`)))
	assert.Error(t, Validate([]byte(`{"name": "x", "url": "https://a", "skills": [{"id": "s"}]}`)),
		"skill missing name")
}

func TestCardURL(t *testing.T) {
	assert.Equal(t, "https://agent.example/.well-known/agent.json", CardURL("https://agent.example"))
	assert.Equal(t, "https://agent.example/.well-known/agent.json", CardURL("https://agent.example/"))
	assert.Equal(t, "https://agent.example/card.json", CardURL("https://agent.example/card.json"))
}
