package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	planTemperature = 0.2
	planMaxTokens   = 4096
)

// Backend is the external generative planning service. It returns the raw
// response text and performs no validation of it.
type Backend interface {
	Generate(ctx context.Context, in Instruction) (string, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func New(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		APIKey:     apiKey,
		BaseURL:    strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/chat/completions"),
		Model:      model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		Logger:     logger,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (c *OpenAIClient) Generate(ctx context.Context, in Instruction) (string, error) {
	if c.APIKey == "" {
		return "", &BackendError{Kind: KindAuth, Message: "API key not configured"}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: in.System},
			{Role: "user", Content: in.User},
		},
		Temperature:    planTemperature,
		MaxTokens:      planMaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &BackendError{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &BackendError{Kind: KindUnavailable, Status: resp.StatusCode, Message: "unreadable completion envelope", Cause: decodeErr}
	}
	if parsed.Error != nil {
		return "", &BackendError{Kind: KindUnavailable, Status: resp.StatusCode, Message: parsed.Error.Message}
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	content := parsed.Choices[0].Message.Content
	c.Logger.Debug("openai completion",
		zap.String("model", c.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_len", len(content)),
	)
	return content, nil
}
