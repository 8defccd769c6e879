package llm

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/jonathan/keyword-miner/internal/resilience"
)

const jsonOnlySystem = "Respond with a single valid JSON value and nothing else."

// ClaudeClient implements Client for Anthropic Claude
type ClaudeClient struct {
	client sdk.Client
	config *Config
}

// NewClaudeClient creates a Claude client. Extra options are passed to the SDK.
func NewClaudeClient(config *Config, apiKey string, opts ...option.RequestOption) (*ClaudeClient, error) {
	if apiKey == "" {
		return nil, eris.New("llm: anthropic API key is required")
	}
	if config == nil {
		config = DefaultAnthropicConfig()
	}
	// Retries happen in ThrottledClient.
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	return &ClaudeClient{
		client: sdk.NewClient(append(base, opts...)...),
		config: config,
	}, nil
}

func (c *ClaudeClient) generate(ctx context.Context, prompt string, tier ModelTier, system string) (string, error) {
	model := c.config.GetModel(tier)
	if model == "" {
		return "", eris.Errorf("llm: no model configured for tier %s", tier)
	}

	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   maxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
		Temperature: sdk.Float(float64(c.config.Temperature)),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", resilience.ClassifyStatus(eris.Wrap(err, "llm: claude generate"), apiErr.StatusCode)
		}
		return "", eris.Wrap(err, "llm: claude generate")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", eris.New("llm: no text blocks in response")
	}
	return sb.String(), nil
}

// GenerateContent generates text content using the specified model tier
func (c *ClaudeClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, "")
}

// GenerateJSON asks Claude for JSON only and strips code fences.
func (c *ClaudeClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, jsonOnlySystem)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// GetModel returns the model name for a tier
func (c *ClaudeClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the SDK holds no long-lived resources.
func (c *ClaudeClient) Close() error {
	return nil
}
