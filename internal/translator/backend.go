// Package translator provides the chat-model backend used for translation.
package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-tools/internal/logger"
)

// DefaultRequestTimeout bounds a single chat completion request.
const DefaultRequestTimeout = 180 * time.Second

// translationTemperature keeps translations consistent across requests.
const translationTemperature float32 = 0.3

// Backend produces a completion for a system/user prompt pair.
type Backend interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// BackendConfig holds connection settings for an OpenAI-compatible API.
type BackendConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatModelBackend implements Backend on top of an eino chat model.
type ChatModelBackend struct {
	model   einomodel.BaseChatModel
	timeout time.Duration
}

// NewChatModelBackend creates a backend talking to an OpenAI-compatible
// chat completions API.
func NewChatModelBackend(ctx context.Context, cfg BackendConfig) (*ChatModelBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	temperature := translationTemperature
	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: &temperature,
		Timeout:     timeout,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	logger.Info("chat model backend created",
		logger.String("model", cfg.Model),
		logger.String("baseURL", cfg.BaseURL))

	return &ChatModelBackend{
		model:   chatModel,
		timeout: timeout,
	}, nil
}

// Complete sends the prompts and returns the model output.
func (b *ChatModelBackend) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	response, err := b.model.Generate(reqCtx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("chat completion returned no message")
	}

	return response.Content, nil
}
