package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-context-bridge/config"
)

func ollamaTestConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    "ollama",
		BaseURL:     baseURL,
		Model:       "test-model",
		TimeoutSec:  5,
		Temperature: 0.3,
		MaxTokens:   100,
	}
}

func TestNewProviderSelection(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(config.LLMConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider(config.LLMConfig{Provider: "local", BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	// Empty defaults to ollama.
	p, err = NewProvider(config.LLMConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	_, err = NewProvider(config.LLMConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestOllamaGenerate(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]string{"response": "looks like a coding session\n"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(NewOllamaProvider(ollamaTestConfig(srv.URL)), 3, 10*time.Millisecond)
	text, err := client.Query(context.Background(), "what is on screen?")
	require.NoError(t, err)
	assert.Equal(t, "looks like a coding session", text)

	assert.Equal(t, "test-model", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	opts := gotBody["options"].(map[string]interface{})
	assert.Equal(t, 0.3, opts["temperature"])
	assert.Equal(t, 100.0, opts["num_predict"])
}

func TestQueryRetriesOnServerErrorThenFails(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(NewOllamaProvider(ollamaTestConfig(srv.URL)), 3, time.Millisecond)
	_, err := client.Query(context.Background(), "prompt")

	assert.Error(t, err)
	assert.EqualValues(t, 3, posts.Load(), "one POST per attempt, at most max_retries")
}

func TestQueryEventualSuccessAfterRetry(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if posts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "recovered"})
	}))
	defer srv.Close()

	client := NewClient(NewOllamaProvider(ollamaTestConfig(srv.URL)), 3, time.Millisecond)
	text, err := client.Query(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
}

func TestFailedHealthProbeSkipsGenerate(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		posts.Add(1)
	}))
	defer srv.Close()

	client := NewClient(NewOllamaProvider(ollamaTestConfig(srv.URL)), 2, time.Millisecond)
	_, err := client.Query(context.Background(), "prompt")

	assert.Error(t, err)
	assert.EqualValues(t, 0, posts.Load(), "generate must not be sent when the probe fails")
}

func TestQueryUnreachableEndpointReturnsError(t *testing.T) {
	// Nothing listens here; every attempt is a connection failure.
	cfg := ollamaTestConfig("http://127.0.0.1:1")
	client := NewClient(NewOllamaProvider(cfg), 2, time.Millisecond)

	text, err := client.Query(context.Background(), "prompt")
	assert.Error(t, err)
	assert.Empty(t, text)
}

func TestQueryRejectsEmptyPrompt(t *testing.T) {
	client := NewClient(NewOllamaProvider(ollamaTestConfig("http://127.0.0.1:1")), 1, time.Millisecond)
	_, err := client.Query(context.Background(), "   ")
	assert.Error(t, err)
}

func TestQueryStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(NewOllamaProvider(ollamaTestConfig(srv.URL)), 5, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := client.Query(ctx, "prompt")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Query did not return after context cancellation")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		case "/v1/chat/completions":
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"role": "assistant", "content": "analysis text"}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := config.LLMConfig{
		Provider:   "openai",
		BaseURL:    srv.URL,
		Model:      "gpt-test",
		APIKey:     "sk-test",
		TimeoutSec: 5,
	}
	client := NewClient(NewOpenAIProvider(cfg), 1, time.Millisecond)
	text, err := client.Query(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "analysis text", text)
}
