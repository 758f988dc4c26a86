package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) openai {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := defaultConfig().API
	cfg.BaseURL = srv.URL + "/v1"

	o, err := newOpenAI("test-key", cfg, "gpt-4o-mini")
	require.NoError(t, err)
	return o
}

func TestNewOpenAIMissingKey(t *testing.T) {
	_, err := newOpenAI("", defaultConfig().API, defaultModel)
	require.ErrorIs(t, err, errMissingAPIKey)
}

func TestOpenAIChat(t *testing.T) {
	var (
		got        goopenai.ChatCompletionRequest
		path, auth string
	)
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"}}]}`)
	})

	chats := promptChats("Be brief.", "", false, "hi")
	res := o.chat(context.Background(), chats)
	require.NoError(t, res.err)
	require.Equal(t, "Hello there", res.content)

	require.Equal(t, "/v1/chat/completions", path)
	require.Equal(t, "Bearer test-key", auth)

	require.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	require.Equal(t, goopenai.ChatMessageRoleSystem, got.Messages[0].Role)
	require.Equal(t, "Be brief.", got.Messages[0].Content)
	require.Equal(t, roleUser, got.Messages[1].Role)
	require.Equal(t, "hi", got.Messages[1].Content)
}

func TestOpenAIChatNoChoices(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	})

	res := o.chat(context.Background(), promptChats("", "", false, "hi"))
	require.ErrorIs(t, res.err, errNoChoices)
}

func TestOpenAIChatAPIError(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	res := o.chat(context.Background(), promptChats("", "", false, "hi"))
	require.Error(t, res.err)

	var apiErr *goopenai.APIError
	require.ErrorAs(t, res.err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestOpenAIChatStream(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	responses := make(chan llmResponseMsg)
	go streamPrompt(context.Background(), o, promptChats("", "", false, "hi"), responses)

	var content string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-responses:
			require.NoError(t, msg.err)
			content += msg.content
			if msg.done {
				require.Equal(t, "Hello", content)
				return
			}
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestOpenAIChatStreamTimeout(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	o.timeout = 50 * time.Millisecond

	select {
	case res := <-o.chatStream(context.Background(), promptChats("", "", false, "hi")):
		require.ErrorIs(t, res.err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("stalled stream was not timed out")
	}
}

func TestStreamPromptCanceled(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	responses := make(chan llmResponseMsg, 1)
	go streamPrompt(ctx, o, promptChats("", "", false, "hi"), responses)
	cancel()

	select {
	case msg := <-responses:
		require.Error(t, msg.err)
		require.False(t, msg.done)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled stream did not report")
	}
}

func TestPromptChats(t *testing.T) {
	tests := []struct {
		name      string
		system    string
		memory    string
		useMemory bool
		want      []chat
	}{
		{
			name: "prompt only",
			want: []chat{{Role: roleUser, Content: "hi"}},
		},
		{
			name:   "system message",
			system: "Be brief.",
			want: []chat{
				{Role: roleSystem, Content: "Be brief."},
				{Role: roleUser, Content: "hi"},
			},
		},
		{
			name:      "memory enabled",
			system:    "Be brief.",
			memory:    "likes Go",
			useMemory: true,
			want: []chat{
				{Role: roleSystem, Content: "Be brief.\n\nMemory:\nlikes Go"},
				{Role: roleUser, Content: "hi"},
			},
		},
		{
			name:   "memory disabled",
			memory: "likes Go",
			want:   []chat{{Role: roleUser, Content: "hi"}},
		},
		{
			name:      "memory without system message",
			memory:    "likes Go",
			useMemory: true,
			want: []chat{
				{Role: roleSystem, Content: "Memory:\nlikes Go"},
				{Role: roleUser, Content: "hi"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := promptChats(tt.system, tt.memory, tt.useMemory, "hi\n")
			require.Equal(t, tt.want, got)
		})
	}
}
