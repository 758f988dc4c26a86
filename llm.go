package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bolt "go.etcd.io/bbolt"
)

type chat struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
)

type llmResponse struct {
	content string
	err     error
}

type llmResponseMsg struct {
	content string
	err     error
	done    bool
}

type llm interface {
	chat(context.Context, []chat) llmResponse
	chatStream(context.Context, []chat) <-chan llmResponse
}

var (
	errMissingAPIKey = errors.New("OPENAI_API_KEY must be set")
	errNoChoices     = errors.New("no choices in response")
	errEmptyPrompt   = errors.New("prompt is empty")
)

// promptChats builds the conversation for a single prompt. The memory is
// appended to the system message so every model sees it the same way.
func promptChats(systemMessage, memory string, useMemory bool, prompt string) []chat {
	var system strings.Builder
	system.WriteString(strings.TrimSpace(systemMessage))

	if memory = strings.TrimSpace(memory); useMemory && memory != "" {
		if system.Len() > 0 {
			system.WriteString("\n\n")
		}
		system.WriteString("Memory:\n")
		system.WriteString(memory)
	}

	var chats []chat
	if system.Len() > 0 {
		chats = append(chats, chat{Role: roleSystem, Content: system.String()})
	}

	return append(chats, chat{Role: roleUser, Content: strings.TrimSpace(prompt)})
}

// loadPromptChats builds the conversation for prompt from the stored system
// message and memory.
func loadPromptChats(db *bolt.DB, s settings, prompt string) ([]chat, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errEmptyPrompt
	}

	systemMessage, err := loadSystemMessage(db)
	if err != nil {
		return nil, fmt.Errorf("error loading system message: %w", err)
	}

	var memory string
	if s.UseMemory {
		memory, err = loadMemory(db)
		if err != nil {
			return nil, fmt.Errorf("error loading memory: %w", err)
		}
	}

	return promptChats(systemMessage, memory, s.UseMemory, prompt), nil
}

// streamPrompt forwards the streamed reply to responses and finishes with a
// done message, or an error message if the stream failed.
func streamPrompt(ctx context.Context, l llm, chats []chat, responses chan<- llmResponseMsg) {
	for res := range l.chatStream(ctx, chats) {
		if res.err != nil {
			responses <- llmResponseMsg{err: res.err}
			return
		}
		responses <- llmResponseMsg{content: res.content}
	}

	if err := ctx.Err(); err != nil {
		responses <- llmResponseMsg{err: err}
		return
	}

	responses <- llmResponseMsg{done: true}
}

func extractSystemChat(chats []chat) (string, []chat) {
	var system string
	cs := make([]chat, 0, len(chats))
	for _, c := range chats {
		if c.Role == roleSystem {
			system = c.Content
			continue
		}
		cs = append(cs, c)
	}
	return system, cs
}
