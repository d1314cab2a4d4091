package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/config"
	"github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
)

// Router sends requests to the primary model and switches to the fallback
// when the primary is unconfigured or fails with a retryable error.
type Router struct {
	primary  Model
	fallback Model
	logger   *zap.Logger
}

// NewRouter creates a new model router. fallback may be nil.
func NewRouter(primary, fallback Model, logger *zap.Logger) *Router {
	return &Router{
		primary:  primary,
		fallback: fallback,
		logger:   logging.OrNop(logger),
	}
}

// FromConfig builds the router described by the [model] section.
func FromConfig(cfg config.ModelConfig, logger *zap.Logger) (*Router, error) {
	primary, err := NewProvider(cfg.ProviderConfig)
	if err != nil {
		return nil, err
	}

	var fallback Model
	if cfg.Fallback.Enabled() {
		if fallback, err = NewProvider(cfg.Fallback); err != nil {
			return nil, err
		}
	}
	return NewRouter(primary, fallback, logger), nil
}

// NewProvider builds one provider client.
func NewProvider(p config.ProviderConfig) (Model, error) {
	switch p.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(&AnthropicConfig{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Model:      p.Model,
			MaxTokens:  p.MaxTokens,
			Timeout:    p.Timeout,
			MaxRetries: p.MaxRetries,
		}), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(&OpenAIConfig{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Model:      p.Model,
			MaxTokens:  p.MaxTokens,
			Timeout:    p.Timeout,
			MaxRetries: p.MaxRetries,
		}), nil
	default:
		return nil, errors.User(errors.CodeConfigInvalid, fmt.Sprintf("unknown model provider %q", p.Provider))
	}
}

// Generate implements Model.
func (r *Router) Generate(ctx context.Context, req *Request) (*Response, error) {
	if !available(r.primary) {
		if available(r.fallback) {
			r.logger.Debug("primary model unavailable, using fallback", zap.String("model", r.fallback.Name()))
			return r.fallback.Generate(ctx, req)
		}
		return nil, errors.NewBuilder(errors.CodeModelUnavailable, "no model available").
			System().
			WithSuggestion("Configure an API key for the [model] provider").
			Build()
	}

	return errors.FallbackWithResult(
		func() (*Response, error) { return r.primary.Generate(ctx, req) },
		func(err error) (*Response, error) {
			if !available(r.fallback) || ctx.Err() != nil {
				return nil, err
			}
			if !errors.IsRetryable(err) && !errors.Is(err, errors.ErrCircuitOpen) {
				return nil, err
			}
			r.logger.Warn("primary model failed, using fallback",
				zap.String("primary", r.primary.Name()),
				zap.String("fallback", r.fallback.Name()),
				zap.Error(err))
			return r.fallback.Generate(ctx, req)
		},
	)
}

// IsAvailable reports whether any model can serve requests.
func (r *Router) IsAvailable() bool {
	return available(r.primary) || available(r.fallback)
}

// Name returns the primary model name.
func (r *Router) Name() string {
	if r.primary != nil {
		return r.primary.Name()
	}
	if r.fallback != nil {
		return r.fallback.Name()
	}
	return "none"
}

// Status returns the primary model status.
func (r *Router) Status() *ModelStatus {
	if r.primary != nil {
		return r.primary.Status()
	}
	return &ModelStatus{Name: r.Name()}
}

// GetStatus returns the status of all models.
func (r *Router) GetStatus() map[string]*ModelStatus {
	status := make(map[string]*ModelStatus)
	if r.primary != nil {
		status["primary"] = r.primary.Status()
	}
	if r.fallback != nil {
		status["fallback"] = r.fallback.Status()
	}
	return status
}

func available(m Model) bool {
	return m != nil && m.IsAvailable()
}
