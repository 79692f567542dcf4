// Package target resolves take-profit targets from signal feed documents.
package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// Resolver tries each configured source in order and returns the first
// matching target.
type Resolver struct {
	sources    []Source
	strategies []Strategy
	logger     *slog.Logger
}

// NewResolver creates a Resolver over sources. The first source is the
// primary feed.
func NewResolver(sources []Source, logger *slog.Logger) *Resolver {
	return &Resolver{
		sources:    sources,
		strategies: DefaultStrategies(),
		logger:     logger.With(slog.String("component", "target_resolver")),
	}
}

// Resolve implements domain.TargetResolver.
func (r *Resolver) Resolve(ctx context.Context, par string, side domain.Side) (domain.TargetQuote, error) {
	par, err := domain.NormalizePar(par)
	if err != nil {
		return domain.TargetQuote{}, err
	}
	if !side.Valid() {
		return domain.TargetQuote{}, fmt.Errorf("%w: side must be LONG or SHORT, got %q", domain.ErrValidation, side)
	}
	if len(r.sources) == 0 {
		return domain.TargetQuote{}, fmt.Errorf("target: %w: no sources configured", domain.ErrSourceUnavailable)
	}

	var best error
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return domain.TargetQuote{}, err
		}
		q, err := r.resolveFrom(src, par, side)
		if err == nil {
			r.logger.Info("target resolved",
				slog.String("par", par),
				slog.String("side", string(side)),
				slog.Float64("alvo", q.Alvo),
				slog.String("source", q.Source),
			)
			return q, nil
		}
		r.logger.Debug("source did not resolve target",
			slog.String("source", src.label()),
			slog.String("par", par),
			slog.String("error", err.Error()),
		)
		if rank(err) > rank(best) {
			best = err
		}
	}
	return domain.TargetQuote{}, fmt.Errorf("target: %w", best)
}

func (r *Resolver) resolveFrom(src Source, par string, side domain.Side) (domain.TargetQuote, error) {
	doc, err := src.load()
	if err != nil {
		return domain.TargetQuote{}, err
	}

	nodes, strategy := r.extract(doc)
	alvo, err := match(nodes, par, side)
	if err != nil {
		return domain.TargetQuote{}, fmt.Errorf("%w: %s: %s %s (strategy %s)", err, src.label(), par, side, strategy)
	}
	return domain.TargetQuote{
		Par:        par,
		Side:       side,
		Alvo:       alvo,
		UpdatedBRT: updatedBRT(doc),
		Source:     src.label(),
	}, nil
}

func (r *Resolver) extract(doc any) ([]map[string]any, string) {
	for _, s := range r.strategies {
		if nodes := s.Extract(doc); len(nodes) > 0 {
			return nodes, s.Name
		}
	}
	return nil, "none"
}

// match runs the exact par+side pass, then the par-only pass. The par-only
// pass runs only when no par+side record exists, so an unusable exact record
// never falls back to the other side's target. If every matching record was
// unusable the result is domain.ErrTargetInvalid.
func match(nodes []map[string]any, par string, side domain.Side) (float64, error) {
	sawInvalid := false
	passes := []func(map[string]any) bool{
		func(n map[string]any) bool {
			s, ok := sideOf(n)
			return ok && s == side
		},
		func(map[string]any) bool { return true },
	}
	for _, sideMatches := range passes {
		for _, n := range nodes {
			if domain.CanonicalPar(instrumentOf(n)) != par || !sideMatches(n) {
				continue
			}
			if alvo, ok := targetOf(n); ok {
				return alvo, nil
			}
			sawInvalid = true
		}
		if sawInvalid {
			break
		}
	}
	if sawInvalid {
		return 0, domain.ErrTargetInvalid
	}
	return 0, domain.ErrTargetNotFound
}

func rank(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrTargetInvalid):
		return 3
	case errors.Is(err, domain.ErrTargetNotFound):
		return 2
	default:
		return 1
	}
}
