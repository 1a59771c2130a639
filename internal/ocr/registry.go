// Package ocr builds ordered text extraction strategies.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teazle/autosocialai/internal/ports"
)

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]ports.TextExtractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]ports.TextExtractor{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy ports.TextExtractor) {
	if r.strategies == nil {
		r.strategies = map[string]ports.TextExtractor{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.TextExtractor, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("ocr strategy %s is not registered", name)
}

// Chain resolves names into a chain tried in the given order.
func (r *Registry) Chain(names ...string) (*Chain, error) {
	strategies := make([]ports.TextExtractor, 0, len(names))
	for _, name := range names {
		s, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return NewChain(strategies...), nil
}

// Chain tries strategies in order; the first one that answers wins.
type Chain struct {
	strategies []ports.TextExtractor
}

var _ ports.TextExtractor = (*Chain)(nil)

// NewChain builds a chain from strategies.
func NewChain(strategies ...ports.TextExtractor) *Chain {
	return &Chain{strategies: strategies}
}

// Name lists the strategies in order.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Len returns the number of strategies.
func (c *Chain) Len() int {
	return len(c.strategies)
}

// ExtractText returns the first successful extraction. A strategy reporting
// no text is a success.
func (c *Chain) ExtractText(ctx context.Context, imageURL string) (string, error) {
	if len(c.strategies) == 0 {
		return "", errors.New("no ocr strategies configured")
	}
	var errs []error
	for _, s := range c.strategies {
		text, err := s.ExtractText(ctx, imageURL)
		if err == nil {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
	}
	return "", fmt.Errorf("all ocr strategies failed: %w", errors.Join(errs...))
}
