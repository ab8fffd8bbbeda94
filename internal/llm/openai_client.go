package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nohyunjin/omni-secretary/internal/config"
	apperrors "github.com/Nohyunjin/omni-secretary/internal/errors"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
)

// OpenAI API compatible client
type openaiClient struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      logging.Logger
}

// NewOpenAIClient constructs a client that speaks the OpenAI-compatible chat
// completions API described by cfg.
func NewOpenAIClient(cfg config.LLMConfig) Client {
	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &openaiClient{
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logging.NewComponentLogger("OpenAIClient"),
	}
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	payload := map[string]any{
		"model":       c.model,
		"messages":    req.Messages,
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
		"stream":      false,
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
		payload["tool_choice"] = "auto"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s (model=%s, messages=%d, tools=%d)",
		endpoint, c.model, len(req.Messages), len(req.Tools))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewModelProviderError(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("provider returned status %d: %s", resp.StatusCode, truncateForLog(respBody))
		return nil, apperrors.NewModelProviderError(resp.StatusCode,
			fmt.Errorf("provider status %d: %s", resp.StatusCode, truncateForLog(respBody)))
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content   string     `json:"content"`
				ToolCalls []ToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, apperrors.NewModelProviderError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	if oaiResp.Error != nil && oaiResp.Error.Message != "" {
		msg := oaiResp.Error.Message
		if oaiResp.Error.Type != "" {
			msg = oaiResp.Error.Type + ": " + msg
		}
		return nil, apperrors.NewModelProviderError(resp.StatusCode, errors.New(msg))
	}
	if len(oaiResp.Choices) == 0 {
		return nil, apperrors.NewModelProviderError(resp.StatusCode, errors.New("no choices in response"))
	}

	choice := oaiResp.Choices[0]
	c.logger.Debug("completion: finish=%s content=%d chars toolCalls=%d",
		choice.FinishReason, len(choice.Message.Content), len(choice.Message.ToolCalls))

	return &Completion{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
	}, nil
}

func truncateForLog(b []byte) string {
	const limit = 500
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
