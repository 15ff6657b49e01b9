package engine

import "babelfeed/internal/model"

// New builds an Engine from a persisted configuration record. Per-vendor
// behavior collapses to the record's provider plus the shared chat
// contract.
func New(rec model.Engine, limiter *RateLimiter) (Engine, error) {
	if rec.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if rec.Model == "" {
		return nil, ErrMissingModel
	}
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}

	switch rec.Provider {
	case model.ProviderOpenAI:
		return NewChatEngine(rec, limiter), nil
	case model.ProviderCompatible:
		if rec.BaseURL == "" {
			return nil, ErrMissingBaseURL
		}
		return NewChatEngine(rec, limiter), nil
	case model.ProviderAnthropic:
		return NewAnthropicEngine(rec, limiter), nil
	default:
		return nil, ErrInvalidProvider
	}
}
