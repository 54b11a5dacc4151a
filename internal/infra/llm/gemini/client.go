package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Options tune the client. Zero values keep the SDK and model defaults.
type Options struct {
	// BaseURL points the client at a proxy or test server.
	BaseURL string
	// Temperature overrides the model's sampling temperature when set.
	Temperature *float32
	// Timeout bounds each HTTP round trip when positive.
	Timeout time.Duration
}

// Client wraps the Gemini developer API behind a single-prompt call.
type Client struct {
	models      *genai.Models
	temperature *float32
}

// NewClient builds a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key cannot be empty")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{models: client.Models, temperature: opts.Temperature}, nil
}

// Generate sends prompt as one user turn and returns the concatenated text parts.
// A response without candidates yields "".
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	var config *genai.GenerateContentConfig
	if c.temperature != nil {
		config = &genai.GenerateContentConfig{Temperature: genai.Ptr(*c.temperature)}
	}
	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}
