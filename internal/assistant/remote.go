package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/service"
)

// RemoteClient completes a free-form prompt.
type RemoteClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RemoteConfig configures the hosted completion client.
type RemoteConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// remoteClient implements RemoteClient against the Anthropic messages API.
type remoteClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewRemoteClient creates a hosted completion client.
func NewRemoteClient(cfg RemoteConfig) (RemoteClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: assistant API key is required", common.ErrMissingConfig)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-sonnet-20240229"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	return &remoteClient{
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

const systemPrompt = "You are a financial review assistant. Answer questions about the " +
	"general-ledger account snapshot provided in the prompt. Be concise and cite account numbers."

// Complete sends one completion request.
func (c *remoteClient) Complete(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      systemPrompt,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s", common.ErrRateLimit, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return response.Content[0].Text, nil
}

// askRemote serializes a compact snapshot into the prompt and retries
// transient completion failures.
func (a *Assistant) askRemote(ctx context.Context, question string, accounts []*model.Account) (Answer, error) {
	prompt := buildPrompt(question, accounts)

	var text string
	err := common.WithRetry(ctx, func() error {
		var completeErr error
		text, completeErr = a.remote.Complete(ctx, prompt)
		return completeErr
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return Answer{}, fmt.Errorf("assistant completion failed: %w", err)
	}
	return Answer{Text: text, Remote: true}, nil
}

func buildPrompt(question string, accounts []*model.Account) string {
	var b strings.Builder
	b.WriteString("Account snapshot (number | name | department | balance | severity | status):\n")
	for _, a := range accounts {
		fmt.Fprintf(&b, "%s | %s | %s | %.2f %s | %s | %s\n",
			a.AccountNumber, a.AccountName, a.DepartmentName,
			a.NormalizedBalance, a.Currency, a.ThresholdLevel, a.ReviewStatus)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
