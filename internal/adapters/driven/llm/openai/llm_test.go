package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	svc, err := NewLLMService(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, 256, req.MaxTokens)
		if assert.NotNil(t, req.Temperature) {
			assert.InDelta(t, 0.0, *req.Temperature, 1e-9)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"The sky is blue."}}]}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	got, err := svc.Generate(context.Background(), "prompt", driven.GenerateOptions{MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", got)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantLimited bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantLimited: true},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"nope"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = svc.Generate(context.Background(), "p", driven.GenerateOptions{})
			assert.ErrorIs(t, err, domain.ErrGeneration)
			assert.Equal(t, tt.wantLimited, errors.Is(err, domain.ErrRateLimited))
		})
	}
}
