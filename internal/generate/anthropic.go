package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider calls the Anthropic messages API directly. There is no
// official Go SDK in use here; the request/response envelope is small enough
// to model by hand.
type AnthropicProvider struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewAnthropicProvider(apiKey, endpoint, model string) *AnthropicProvider {
	if endpoint == "" {
		endpoint = "https://api.anthropic.com/v1/messages"
	}
	return &AnthropicProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:       p.model,
		MaxTokens:   4096,
		Temperature: 0.7,
		System:      systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt(req)},
		},
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute anthropic request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	var parsed anthropicResponse
	if resp.StatusCode != http.StatusOK {
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("anthropic api error: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("generation failed: status=%d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("anthropic returned no content")
	}
	return parsed.Content[0].Text, nil
}
