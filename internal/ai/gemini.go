package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient calls Google Gemini through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		// every call reports the missing key, like the OpenAI client
		return &GeminiClient{model: model, logger: logger}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, in Instruction) (string, error) {
	if g.client == nil {
		return "", &BackendError{Kind: KindAuth, Message: "API key not configured"}
	}
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(in.User),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(in.System, genai.RoleUser),
			Temperature:       genai.Ptr[float32](planTemperature),
			MaxOutputTokens:   planMaxTokens,
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("gemini completion",
		zap.String("model", g.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_len", len(text)),
	)
	return text, nil
}

func classifyGeminiError(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return geminiAPIError(*apiErrPtr, err)
	}
	return transportError(ctx, err)
}

func geminiAPIError(apiErr genai.APIError, cause error) *BackendError {
	kind := kindForStatus(apiErr.Code)
	// Gemini reports a bad key as 400 INVALID_ARGUMENT
	if kind == KindUnavailable && strings.Contains(strings.ToLower(apiErr.Message), "api key") {
		kind = KindAuth
	}
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		kind = KindRateLimit
	}
	return &BackendError{Kind: kind, Status: apiErr.Code, Message: apiErr.Message, Cause: cause}
}
