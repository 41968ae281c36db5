package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient("test-api-key", baseURL, "llama-3.3-70b-versatile", Options{
		Timeout:        5 * time.Second,
		RequestsPerMin: 6000, // effectively unlimited for tests
	})
}

func TestNewClient(t *testing.T) {
	client := NewClient("key", "https://api.example.com/v1", "test-model", Options{})

	assert.NotNil(t, client)
	assert.Equal(t, "key", client.apiKey)
	assert.Equal(t, "https://api.example.com/v1", client.baseURL)
	assert.Equal(t, "test-model", client.model)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.NotNil(t, client.logger)
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.3-70b-versatile", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "what is the best shoe?", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "The Trail Shoe."}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Complete(context.Background(), domain.ChatRequest{
		System:      "You are a shopping assistant.",
		User:        "what is the best shoe?",
		Temperature: 0.7,
		MaxTokens:   512,
	})

	require.NoError(t, err)
	assert.Equal(t, "The Trail Shoe.", resp.Content)
	assert.Equal(t, 25, resp.TokensUsed)
}

func TestComplete_OmitsSystemMessageWhenEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}], "usage": {"total_tokens": 3}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), domain.ChatRequest{User: "hi"})
	require.NoError(t, err)
}

func TestComplete_RateLimited(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit reached"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), domain.ChatRequest{User: "hi"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLLMRateLimited))
	// 429 must not be retried
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "recovered"}}], "usage": {"total_tokens": 7}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Complete(context.Background(), domain.ChatRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_AllRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), domain.ChatRequest{User: "hi"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLLMNoResponse))
}

func TestComplete_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [], "usage": {"total_tokens": 0}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), domain.ChatRequest{User: "hi"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLLMNoResponse))
}

func TestComplete_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"choices": [{"message": {"content": "late"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, domain.ChatRequest{User: "hi"})
	require.Error(t, err)
}
