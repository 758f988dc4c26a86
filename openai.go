package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

type openai struct {
	model       string
	temperature float64
	timeout     time.Duration

	client *goopenai.Client
}

func newOpenAI(apiKey string, cfg apiConfig, model string) (openai, error) {
	if apiKey == "" {
		return openai{}, errMissingAPIKey
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL

	return openai{
		model:       model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout.Duration,
		client:      goopenai.NewClientWithConfig(clientCfg),
	}, nil
}

func (o openai) request(chats []chat, stream bool) goopenai.ChatCompletionRequest {
	systemChat, cs := extractSystemChat(chats)

	msgs := make([]goopenai.ChatCompletionMessage, 0, len(cs)+1)
	if systemChat != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemChat,
		})
	}

	for _, chat := range cs {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    chat.Role,
			Content: chat.Content,
		})
	}

	return goopenai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: float32(o.temperature),
		Stream:      stream,
	}
}

func (o openai) chat(ctx context.Context, chats []chat) llmResponse {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, o.request(chats, false))
	if err != nil {
		return llmResponse{
			err: fmt.Errorf("error creating chat completion: %w", err),
		}
	}

	if len(resp.Choices) == 0 {
		return llmResponse{err: errNoChoices}
	}

	return llmResponse{
		content: resp.Choices[0].Message.Content,
	}
}

func (o openai) chatStream(ctx context.Context, chats []chat) <-chan llmResponse {
	responseChan := make(chan llmResponse)

	go func() {
		defer close(responseChan)

		// The timeout covers the whole stream, not only the first chunk.
		if o.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, o.request(chats, true))
		if err != nil {
			responseChan <- llmResponse{
				err: fmt.Errorf("error creating chat completion stream: %w", err),
			}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					return
				}
				responseChan <- llmResponse{
					err: fmt.Errorf("error receiving from stream: %w", err),
				}
				return
			}

			if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
				responseChan <- llmResponse{
					content: response.Choices[0].Delta.Content,
				}
			}
		}
	}()

	return responseChan
}
