// Package llm sends assembled prompts to the Anthropic Messages API.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/prompt"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// MaxCacheBreakpoints is the provider limit on cache_control blocks per request.
const MaxCacheBreakpoints = 4

// Request is one completion call.
type Request struct {
	System []prompt.Segment
	User   string
}

// Usage reports token accounting for a completion.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// Completion is the model's reply.
type Completion struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason,omitempty"`
	Usage      Usage         `json:"usage"`
	Latency    time.Duration `json:"latency"`
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// MessagesClient is the subset of the Anthropic SDK used here, so tests can
// substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type sdkMessages struct {
	messages *anthropic.MessageService
}

func (s sdkMessages) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return s.messages.New(ctx, params)
}

// Config holds client configuration.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements Completer with the Anthropic SDK.
type Client struct {
	messages  MessagesClient
	model     string
	maxTokens int64
}

// NewClient creates a client backed by the Anthropic API.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := anthropic.NewClient(opts...)
	return NewClientWithMessages(sdkMessages{messages: &client.Messages}, cfg), nil
}

// NewClientWithMessages creates a client over an existing MessagesClient.
func NewClientWithMessages(messages MessagesClient, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Client{
		messages:  messages,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// Complete sends the prompt and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if strings.TrimSpace(req.User) == "" {
		return nil, fmt.Errorf("empty user message")
	}

	start := time.Now()
	message, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    SystemBlocks(req.System),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Completion{
		Text:       text.String(),
		Model:      string(message.Model),
		StopReason: string(message.StopReason),
		Usage: Usage{
			InputTokens:              message.Usage.InputTokens,
			OutputTokens:             message.Usage.OutputTokens,
			CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
			CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// SystemBlocks converts segments into system text blocks. Only the last
// MaxCacheBreakpoints cacheable segments carry an ephemeral cache_control.
func SystemBlocks(segments []prompt.Segment) []anthropic.TextBlockParam {
	marked := make([]bool, len(segments))
	remaining := MaxCacheBreakpoints
	for i := len(segments) - 1; i >= 0 && remaining > 0; i-- {
		if segments[i].Cacheable {
			marked[i] = true
			remaining--
		}
	}

	blocks := make([]anthropic.TextBlockParam, 0, len(segments))
	for i, s := range segments {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		block := anthropic.TextBlockParam{Text: s.Text}
		if marked[i] {
			block.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		blocks = append(blocks, block)
	}
	return blocks
}

var _ Completer = (*Client)(nil)
