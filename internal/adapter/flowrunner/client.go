// Package flowrunner provides an HTTP client for the external workflow
// runner used by external-flow tools.
package flowrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/resilience"
)

// Client implements the flowrunner port over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new workflow runner client. An empty base URL or API
// key leaves the client unconfigured; Execute then fails fast.
func NewClient(cfg config.FlowRunner) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Execute runs the named workflow with a single string input and returns
// its text output.
func (c *Client) Execute(ctx context.Context, flowID, input string) (string, error) {
	if !c.Configured() {
		return "", errors.New("flow runner not configured")
	}

	var out string
	call := func(ctx context.Context) error {
		var err error
		out, err = c.run(ctx, flowID, input)
		return err
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(ctx, call); err != nil {
			return "", err
		}
		return out, nil
	}
	if err := call(ctx); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) run(ctx context.Context, flowID, input string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"input_value": input,
		"output_type": "chat",
		"input_type":  "chat",
	})
	if err != nil {
		return "", fmt.Errorf("encode flow request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/run/%s", c.baseURL, flowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build flow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute flow %s: %w", flowID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("execute flow %s: status %d: %s", flowID, resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read flow response: %w", err)
	}
	return extractOutput(data)
}

// extractOutput digs the chat message text out of the runner's nested
// response. Falls back to the raw body when the shape is unexpected.
func extractOutput(data []byte) (string, error) {
	var resp struct {
		Outputs []struct {
			Outputs []struct {
				Results struct {
					Message struct {
						Text string `json:"text"`
					} `json:"message"`
				} `json:"results"`
			} `json:"outputs"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return string(data), nil
	}
	for _, outer := range resp.Outputs {
		for _, inner := range outer.Outputs {
			if inner.Results.Message.Text != "" {
				return inner.Results.Message.Text, nil
			}
		}
	}
	return string(data), nil
}
