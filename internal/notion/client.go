// Package notion is the task store: tasks and projects kept in Notion
// databases, reached through the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/config"
	"github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	defaultVersion = "2022-06-28"
)

// Client talks to the Notion API.
type Client struct {
	cfg            config.NotionConfig
	client         *http.Client
	circuitBreaker *errors.CircuitBreaker
	retryPolicy    *errors.Policy
	logger         *zap.Logger
}

// New creates a Notion client. Empty property names fall back to the
// defaults of config.Default.
func New(cfg config.NotionConfig, logger *zap.Logger) *Client {
	defaults := config.Default().Notion
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	fillTaskProperties(&cfg.TaskProperties, defaults.TaskProperties)
	fillProjectProperties(&cfg.ProjectProperties, defaults.ProjectProperties)

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}

	return &Client{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: errors.NewCircuitBreaker("notion", nil),
		retryPolicy: &errors.Policy{
			MaxAttempts:  maxRetries,
			InitialDelay: 300 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
			RetryIf:      errors.IsRetryable,
		},
		logger: logging.OrNop(logger),
	}
}

// IsConfigured reports whether a token and task database are set.
func (c *Client) IsConfigured() bool {
	return c.cfg.Token != "" && c.cfg.TaskDatabaseID != ""
}

// BreakerState returns the circuit breaker state.
func (c *Client) BreakerState() errors.State {
	return c.circuitBreaker.State()
}

func fillTaskProperties(p *config.TaskProperties, d config.TaskProperties) {
	set := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	set(&p.Title, d.Title)
	set(&p.Status, d.Status)
	set(&p.Owner, d.Owner)
	set(&p.Participants, d.Participants)
	set(&p.DueDate, d.DueDate)
	set(&p.Priority, d.Priority)
	set(&p.Description, d.Description)
	set(&p.Source, d.Source)
	set(&p.SourceURL, d.SourceURL)
	set(&p.Project, d.Project)
	set(&p.Team, d.Team)
}

func fillProjectProperties(p *config.ProjectProperties, d config.ProjectProperties) {
	set := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	set(&p.Name, d.Name)
	set(&p.Status, d.Status)
	set(&p.Owner, d.Owner)
	set(&p.Goal, d.Goal)
	set(&p.Deadline, d.Deadline)
}

// do sends one API call through the breaker with retries and decodes the
// JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.cfg.Token == "" {
		return errors.NewBuilder(errors.CodeStoreUnavailable, "Notion token not configured").
			System().
			WithSuggestion("Set NOTION_INTEGRATION_TOKEN or token in the [notion] section").
			Build()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, errors.CodeInvalidInput, "encode Notion request", errors.CategoryPermanent)
		}
	}

	return c.circuitBreaker.Execute(func() error {
		return errors.Do(ctx, c.retryPolicy, func() error {
			start := time.Now()
			data, err := c.send(ctx, method, path, payload)
			c.logger.Debug("notion call",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			if err != nil {
				return err
			}
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return errors.Wrap(err, errors.CodeStoreBadResponse, "decode Notion response", errors.CategoryPermanent)
			}
			return nil
		})
	})
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "create Notion request", errors.CategoryPermanent)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Notion-Version", c.cfg.Version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.CodeStoreUnavailable, "Notion request canceled", errors.CategoryPermanent)
		}
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "Notion request failed", errors.CategoryTemporary)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "read Notion response", errors.CategoryTemporary)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, statusError(resp, data)
}

// apiError is the body Notion returns with a non-2xx status.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusError maps a failed Notion response onto an AppError.
func statusError(resp *http.Response, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || apiErr.Code == "object_not_found":
		return errors.Permanent(errors.CodeTaskNotFound, "Notion: "+msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimit(errors.CodeStoreRateLimit, "Notion rate limit exceeded", retryAfter(resp.Header))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewBuilder(errors.CodeStoreUnavailable, "Notion rejected the token: "+msg).
			System().
			WithSuggestion("Share the databases with the integration and check NOTION_INTEGRATION_TOKEN").
			Build()
	case resp.StatusCode == http.StatusConflict || resp.StatusCode >= 500:
		b := errors.NewBuilder(errors.CodeStoreUnavailable, fmt.Sprintf("Notion unavailable (%d): %s", resp.StatusCode, msg)).
			Temporary()
		if resp.Header.Get("Retry-After") != "" {
			b = b.WithRetryAfter(retryAfter(resp.Header))
		}
		return b.Build()
	default:
		return errors.NewBuilder(errors.CodeStoreBadResponse, fmt.Sprintf("Notion error (%d %s): %s", resp.StatusCode, apiErr.Code, msg)).
			Permanent().
			Build()
	}
}

// retryAfter reads a Retry-After header in seconds, defaulting to one second.
func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
