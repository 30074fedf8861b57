package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOpenAIModelGenerate(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  intro: hi\n"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	model, err := NewOpenAIModel(Config{
		Model:   "llama-3.1-8b-instant",
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	require.Equal(t, "llama-3.1-8b-instant", model.Name())

	completion, err := model.Generate(context.Background(), "grade this")
	require.NoError(t, err)
	require.Equal(t, "intro: hi", completion.Content)
	require.Equal(t, 12, completion.PromptTokens)
	require.Equal(t, 3, completion.CompletionTokens)

	messages, ok := received["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	require.Equal(t, "grade this", messages[0].(map[string]any)["content"])
}

func TestOpenAIModelGenerateFailsWithoutChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	model, err := NewOpenAIModel(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = model.Generate(context.Background(), "prompt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestOpenAIModelPropagatesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	model, err := NewOpenAIModel(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = model.Generate(context.Background(), "prompt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai generate")
}

func TestNewModelSelectsProvider(t *testing.T) {
	_, err := NewModel(Config{Provider: "openai"})
	require.Error(t, err, "api key is required for openai")

	model, err := NewModel(Config{Provider: "Groq", APIKey: "k", Model: "llama-3.1-8b-instant"})
	require.NoError(t, err)
	require.IsType(t, &OpenAIModel{}, model)
	require.Equal(t, GroqBaseURL, model.(*OpenAIModel).cfg.BaseURL)

	model, err = NewModel(Config{})
	require.NoError(t, err)
	require.IsType(t, &OllamaModel{}, model)
	require.Equal(t, DefaultOllamaModel, model.Name())

	_, err = NewModel(Config{Provider: "bedrock"})
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}
