package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prasadmotors/dealerbot/common/retry"
)

const (
	defaultProviderBase  = "https://api.openai.com/v1"
	defaultProviderModel = "gpt-4o-mini"
	defaultHTTPTimeout   = 30 * time.Second
	defaultMaxTokens     = 512
)

// ProviderConfig configures the OpenAI-compatible NLU provider.
type ProviderConfig struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint.  Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use.  Defaults to gpt-4o-mini when empty
	// (cost-efficient, sufficient for slot extraction).
	Model string

	// Timeout is the HTTP request timeout.  Defaults to 30 s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API.
type openAIProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewOpenAIProvider returns a Provider backed by the OpenAI (or compatible)
// chat API.  The returned provider is safe for concurrent use.
func NewOpenAIProvider(cfg ProviderConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultProviderBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultProviderModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	Temperature    float64      `json:"temperature"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// errTransient marks failures worth one more attempt: network errors and
// upstream 5xx.  Quota rejections (429) and malformed requests are final.
var errTransient = errors.New("transient provider failure")

// transientRetry bounds the in-call retry budget.  It stays well under the
// caller's submit timeout so a flaky upstream degrades to the fallback
// extractor instead of stalling the turn.
var transientRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 300 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	ShouldRetry:  func(err error) bool { return errors.Is(err, errTransient) },
}

// Complete sends the prompts to the chat API and returns the raw response
// text.  All upstream failures map to ErrQuotaExceeded (HTTP 429) or
// ErrProvider so the Broker can reject the pending completion with a typed
// error and move on.  Transient failures are retried with backoff.
func (p *openAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	var text string
	err := retry.Do(ctx, transientRetry, func() error {
		var attemptErr error
		text, attemptErr = p.complete(ctx, req)
		return attemptErr
	})
	return text, err
}

func (p *openAIProvider) complete(ctx context.Context, req Request) (string, error) {
	model := p.cfg.Model
	if req.ModelHint != "" {
		model = req.ModelHint
	}
	maxTokens := req.Config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := oaiRequest{
		Model: model,
		Messages: []oaiMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Config.Temperature,
	}
	if req.Config.JSONMode {
		body.ResponseFormat = &oaiFormat{Type: "json_object"}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrProvider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("%w: create http request: %v", ErrProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w: http request: %v", ErrProvider, errTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: upstream HTTP 429", ErrQuotaExceeded)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: %w: upstream HTTP %d", ErrProvider, errTransient, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response body: %v", ErrProvider, err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("%w: decode API response: %v", ErrProvider, err)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("%w: API error (%s): %s", ErrProvider, oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned (HTTP %d)", ErrProvider, resp.StatusCode)
	}

	return oaiResp.Choices[0].Message.Content, nil
}
