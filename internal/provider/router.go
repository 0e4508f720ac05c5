package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router manages generation providers and routes requests, walking a
// per-persona fallback chain when the primary fails.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string   // personaID -> providerID
	fallbacks map[string][]string // personaID -> fallback provider chain
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider. The first registered provider becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// Bind associates a persona with a specific provider.
func (r *Router) Bind(personaID, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[personaID] = providerID
}

// SetFallbacks configures the fallback provider chain for a persona.
func (r *Router) SetFallbacks(personaID string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[personaID] = providerIDs
}

// Route sends a chat request through the persona's provider, trying
// fallbacks in order when the primary fails. Respects ctx cancellation
// between attempts.
func (r *Router) Route(ctx context.Context, personaID string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	primary := r.getProvider(personaID)
	chain := r.fallbacks[personaID]
	r.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("no provider available for persona %s", personaID)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("persona", personaID), zap.Error(err))

	for _, fbID := range chain {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.mu.RLock()
		fb, ok := r.providers[fbID]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fbID), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed for persona %s: %w", personaID, err)
}

func (r *Router) getProvider(personaID string) Provider {
	if pid, ok := r.bindings[personaID]; ok {
		if p, ok := r.providers[pid]; ok {
			return p
		}
	}
	if p, ok := r.providers[r.defaults]; ok {
		return p
	}
	return nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}
