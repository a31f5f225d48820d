package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"github.com/contribpulse/contribpulse/internal/config"
	apperrors "github.com/contribpulse/contribpulse/internal/errors"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/types"
)

const systemPrompt = "You are writing GitHub activity summaries. Use only the actual contribution data provided. Never add, modify or make up information."

// Client generates short narrative summaries of contributor activity
// through an OpenAI-compatible chat-completions endpoint. All
// configuration, including the API key, is supplied explicitly.
type Client struct {
	cfg     config.SummaryConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *monitoring.Logger
}

// NewClient creates a summary client. The configured timeout bounds each
// request; the limiter throttles calls across contributors.
func NewClient(cfg config.SummaryConfig, logger *monitoring.Logger) *Client {
	ratePerMin := cfg.RatePerMin
	if ratePerMin <= 0 {
		ratePerMin = 20
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMin)/60), 1),
		logger:  logger,
	}
}

// Enabled reports whether summary generation is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.APIKey != ""
}

// Generate produces a summary of at most two sentences starting with the
// username. A response containing placeholder-looking or repeated PR
// numbers is regenerated once with stricter instructions.
func (c *Client) Generate(ctx context.Context, metrics types.ContributorMetrics, interval types.IntervalType) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	hasActivity := metrics.PullRequests.Merged > 0 ||
		metrics.PullRequests.Open > 0 ||
		metrics.Issues.Total > 0 ||
		metrics.Reviews.Total > 0 ||
		metrics.CodeChanges.Files > 0
	if !hasActivity {
		return fmt.Sprintf("%s: No activity %s.", metrics.Username, intervalPhrase(interval)), nil
	}

	prompt := buildPrompt(metrics, interval)

	summary, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	if isSuspicious(summary) {
		c.logger.Warn("Generated summary contains suspicious patterns, regenerating",
			"username", metrics.Username)

		strictPrompt := prompt + "\n\nIMPORTANT: Do not use any PR or issue numbers unless they are explicitly provided in the data above. Never use placeholder numbers like #101, #102, etc."
		retried, err := c.complete(ctx, strictPrompt)
		if err != nil {
			// Keep the first response rather than failing the contributor.
			return summary, nil
		}
		return retried, nil
	}

	return summary, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete issues one chat-completions call with bounded transport retries.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode summary request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var content string
	err = retry.Do(
		func() error {
			var callErr error
			content, callErr = c.call(ctx, payload)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", apperrors.NewExternalAPIError("summary generation failed", err)
	}

	return content, nil
}

func (c *Client) call(ctx context.Context, payload []byte) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ExternalAPILogger("summary", c.cfg.Endpoint, 0, time.Since(start), false)
		return "", err
	}
	defer resp.Body.Close()

	success := resp.StatusCode == http.StatusOK
	c.logger.ExternalAPILogger("summary", c.cfg.Endpoint, resp.StatusCode, time.Since(start), success)

	if !success {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("summary API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode summary response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("summary response contained no choices")
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
