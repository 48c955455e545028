package transformer

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

	"github.com/quillforge/quillforge/internal/pkg/env"
)

const (
	defaultAPIBaseURL = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
)

// Client talks to an OpenAI-compatible chat completion API to rewrite text.
type Client struct {
	APIKey     string
	APIBaseURL string
	Model      string

	HTTPClient *http.Client
}

// Result is one completed transformation.
type Result struct {
	Text       string
	TokensUsed int
}

// NewClientFromEnv builds the client from TRANSFORMER_* environment
// variables.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("TRANSFORMER_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("TRANSFORMER_API_BASE_URL", defaultAPIBaseURL), "/"),
		Model:      strings.TrimSpace(env.GetEnv("TRANSFORMER_MODEL", defaultModel)),
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// buildPrompt assembles the system prompt from the job options.
func buildPrompt(readability, tone string) string {
	var b strings.Builder
	b.WriteString("Humanize the following text so it reads naturally.")
	if readability != "" {
		fmt.Fprintf(&b, " Target readability: %s.", readability)
	}
	if tone != "" {
		fmt.Fprintf(&b, " Use a %s tone.", tone)
	}
	b.WriteString(" Preserve the meaning and do not add new information.")
	return b.String()
}

// Humanize rewrites the text and reports the tokens the upstream API billed.
func (c *Client) Humanize(ctx context.Context, text, readability, tone string) (*Result, error) {
	if c.APIKey == "" {
		return nil, errors.New("transformer API key is not configured")
	}

	reqBody := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: buildPrompt(readability, tone)},
			{Role: "user", Content: text},
		},
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transformer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transformer response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode transformer response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("transformer returned status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("transformer returned no choices")
	}

	return &Result{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
