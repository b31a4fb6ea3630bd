package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/agritriples/internal/model"
)

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:      "chatcmpl-123",
		Object:  "chat.completion",
		Created: 1677652288,
		Model:   "Qwen/Qwen2.5-7B-Instruct",
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: openai.Usage{TotalTokens: 42},
	}
}

func TestOpenAIProvider_Complete_Success(t *testing.T) {
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse(`[["稻瘟病","侵染","叶片"]]`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), Request{
		Model:  "Qwen/Qwen2.5-7B-Instruct",
		System: "system prompt",
		Prompt: "user prompt",
		Options: model.CompletionOptions{
			Temperature: 0.35,
			MaxTokens:   2000,
			TopP:        0.9,
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != `[["稻瘟病","侵染","叶片"]]` {
		t.Errorf("Unexpected content: %s", resp.Content)
	}
	if resp.TokensUsed != 42 {
		t.Errorf("Expected 42 tokens, got %d", resp.TokensUsed)
	}

	if body["model"] != "Qwen/Qwen2.5-7B-Instruct" {
		t.Errorf("Unexpected model on the wire: %v", body["model"])
	}
	if body["max_tokens"] != float64(2000) {
		t.Errorf("Unexpected max_tokens: %v", body["max_tokens"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("Expected system and user messages, got %d", len(messages))
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "system prompt" {
		t.Errorf("Unexpected first message: %v", first)
	}
}

func TestOpenAIProvider_Complete_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(chatResponse("true"))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Complete(context.Background(), Request{
		Model:   "m",
		Prompt:  "p",
		Options: model.CompletionOptions{Temperature: 0, MaxTokens: 3, Stop: []string{"\n"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	temp, ok := body["temperature"].(float64)
	if !ok {
		t.Fatal("temperature missing from request; server default would apply")
	}
	if temp > 1e-6 {
		t.Errorf("expected near-zero temperature, got %v", temp)
	}
	stop, _ := body["stop"].([]any)
	if len(stop) != 1 || stop[0] != "\n" {
		t.Errorf("Unexpected stop: %v", body["stop"])
	}
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "bad", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var compErr *CompletionError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected *CompletionError, got %T", err)
	}
	if compErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", compErr.StatusCode)
	}
	if compErr.IsRetryable() {
		t.Error("401 should not be retryable")
	}
}

func TestOpenAIProvider_Complete_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "requests"}}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Complete(context.Background(), Request{Model: "m", Prompt: "p"})

	var compErr *CompletionError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected *CompletionError, got %v", err)
	}
	if !compErr.IsRetryable() {
		t.Errorf("429 should be retryable, status %d", compErr.StatusCode)
	}
}

func TestOpenAIProvider_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatResponse("")
		resp.Choices = nil
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("Expected ErrEmptyCompletion, got %v", err)
	}
}

func TestOpenAIProvider_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Complete(ctx, Request{Model: "m", Prompt: "p"})
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_ = json.NewEncoder(w).Encode(openai.ModelsList{
				Models: []openai.Model{{ID: "Qwen/Qwen2.5-7B-Instruct"}},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be available")
	}
}
