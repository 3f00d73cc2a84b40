package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/config"
)

var ErrNotConfigured = errors.New("AI not configured")

// Client sends a single prompt and returns the model's text reply.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options tweak client construction; BaseURL is used by tests and proxies.
type Options struct {
	BaseURL   string
	MaxTokens int64
}

// New creates a Client from the given AI config.
func New(cfg *config.AIConfig, apiKey string, opts Options) (Client, error) {
	if cfg == nil || apiKey == "" {
		return nil, ErrNotConfigured
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}

	switch cfg.Provider {
	case "claude", "":
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		// A failed attempt is reported to the resolver chain, which moves on.
		clientOpts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, anthropicoption.WithBaseURL(opts.BaseURL))
		}
		client := anthropic.NewClient(clientOpts...)
		return &claudeClient{client: &client, model: model, maxTokens: opts.MaxTokens}, nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		clientOpts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
		}
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, openaioption.WithBaseURL(opts.BaseURL))
		}
		client := openai.NewClient(clientOpts...)
		return &openaiClient{client: &client, model: model, maxTokens: opts.MaxTokens}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: claude, openai)", cfg.Provider)
	}
}

// --- Claude ---

type claudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func (c *claudeClient) Name() string { return "claude" }

func (c *claudeClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty claude response")
	}
	return sb.String(), nil
}

// --- OpenAI ---

type openaiClient struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

func (o *openaiClient) Name() string { return "openai" }

func (o *openaiClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty openai response")
	}
	return resp.Choices[0].Message.Content, nil
}
