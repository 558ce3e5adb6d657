package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"estate-assistant/internal/domain"
)

type capturedRequest struct {
	System []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

func newServer(t *testing.T, status int, body string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, srv *httptest.Server) *Generator {
	t.Helper()
	g, err := NewGenerator("sk-ant-test", "claude-haiku-4-5", 256, nil,
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	require.NoError(t, err)
	return g
}

func TestNewGenerator_Validation(t *testing.T) {
	_, err := NewGenerator("", "m", 0, nil)
	require.ErrorContains(t, err, "api key")
	_, err = NewGenerator("k", " ", 0, nil)
	require.ErrorContains(t, err, "model")

	g, err := NewGenerator("k", "m", 0, nil)
	require.NoError(t, err)
	require.EqualValues(t, defaultMaxTokens, g.maxTokens)
}

func TestGenerate(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-haiku-4-5",
		"content": [{"type": "text", "text": "O Evergreen Pure fica em Santa Joana, Aveiro."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 12}
	}`, &got)

	out, err := newTestGenerator(t, srv).Generate(context.Background(), "Responda em português.", []domain.ChatMessage{
		{Role: "assistant", Content: "Olá!"},
		{Role: "system", Content: "Documentos: ..."},
		{Role: "user", Content: "Onde fica o Evergreen Pure?"},
	})
	require.NoError(t, err)
	require.Equal(t, "O Evergreen Pure fica em Santa Joana, Aveiro.", out)

	require.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.System, 1)
	require.Equal(t, "Responda em português.\n\nDocumentos: ...", got.System[0].Text)
}

func TestGenerate_NoUserMessage(t *testing.T) {
	g, err := NewGenerator("k", "m", 0, nil)
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "sys", []domain.ChatMessage{{Role: "assistant", Content: "Olá"}})
	require.ErrorContains(t, err, "no user message")
}

func TestGenerate_UpstreamError(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, nil)
	_, err := newTestGenerator(t, srv).Generate(context.Background(), "sys", []domain.ChatMessage{{Role: "user", Content: "olá"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "anthropic: Generate")
}

func TestGenerate_EmptyContent(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, nil)
	_, err := newTestGenerator(t, srv).Generate(context.Background(), "sys", []domain.ChatMessage{{Role: "user", Content: "olá"}})
	require.ErrorContains(t, err, "empty response")
}
