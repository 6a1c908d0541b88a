package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/retry"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// CompletionRequest describes one generation call.
type CompletionRequest struct {
	// Model is the backend model identifier, usually taken from a persona.
	Model string
	// System holds system instructions for the call.
	System string
	// Prompt is the user-role content.
	Prompt string
	// Temperature controls sampling randomness.
	Temperature float32
	// MaxOutputTokens caps the response length; 0 means provider default.
	MaxOutputTokens int
	// JSONMode asks the provider for a JSON response body.
	JSONMode bool
}

// Completion is the result of one generation call, with token accounting
// and the estimated cost of the call.
type Completion struct {
	Content          string
	Model            string
	StopReason       string
	Usage            types.TokenUsage
	EstimatedCostUSD float64
}

// Client is an abstraction over LLM providers.
type Client interface {
	// Complete generates content for the request and reports usage and cost.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	// Close releases any resources held by the client.
	Close() error
}

// NewClient creates a new LLM client based on configuration.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini. Transient provider
// failures (rate limiting, service unavailability) are retried with
// exponential backoff before being surfaced.
type GeminiClient struct {
	client   *genai.Client
	config   *Config
	retryCfg retry.Config
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.IsRetryable = isRetryableProviderError

	return &GeminiClient{
		client:   client,
		config:   config,
		retryCfg: retryCfg,
	}, nil
}

// Complete generates content with the configured retry policy and returns
// the response with token usage and estimated cost.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.config.GetModel(TierStandard)
	}
	if modelName == "" {
		return nil, fmt.Errorf("no model specified and none configured")
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	var resp *genai.GenerateContentResponse
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var genErr error
		resp, genErr = model.GenerateContent(ctx, genai.Text(req.Prompt))
		return genErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with %s: %w", modelName, err)
	}

	text, stopReason, err := extractResponse(resp)
	if err != nil {
		return nil, err
	}

	usage := extractUsage(resp)
	return &Completion{
		Content:          text,
		Model:            modelName,
		StopReason:       stopReason,
		Usage:            usage,
		EstimatedCostUSD: CalculateCost(modelName, usage),
	}, nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractResponse pulls the text and finish reason out of a Gemini response.
func extractResponse(resp *genai.GenerateContentResponse) (string, string, error) {
	if len(resp.Candidates) == 0 {
		return "", "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	stopReason := candidate.FinishReason.String()

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", stopReason, fmt.Errorf("no content in response (finish reason: %s)", stopReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", stopReason, fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), stopReason, nil
}

// extractUsage reads token counts from the response metadata, falling back
// to zero counts when the provider omits them.
func extractUsage(resp *genai.GenerateContentResponse) types.TokenUsage {
	if resp.UsageMetadata == nil {
		return types.TokenUsage{}
	}
	return types.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

// isRetryableProviderError extends the default predicate with Gemini API
// status codes for rate limiting and transient server failures.
func isRetryableProviderError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return retry.DefaultIsRetryable(err)
}
