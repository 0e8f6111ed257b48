// Package oracle provides the external guess fed to every prediction: fixed
// answers, lookup tables, or a remote service over gRPC.
package oracle

import (
	"context"
	"log/slog"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region oracle
// Oracle supplies a single-shot guess for the next planet.
type Oracle interface {
	Guess(ctx context.Context, planet predictor.PlanetID) (predictor.Outcome, error)
}

// Static always answers the same outcome.
type Static predictor.Outcome

func (s Static) Guess(context.Context, predictor.PlanetID) (predictor.Outcome, error) {
	return predictor.Outcome(s), nil
}

// #endregion oracle

// #region fallback
type fallback struct {
	primary Oracle
	def     predictor.Outcome
	log     *slog.Logger
}

// WithFallback wraps primary so that a failed guess is logged and replaced by def.
func WithFallback(primary Oracle, def predictor.Outcome, log *slog.Logger) Oracle {
	return &fallback{primary: primary, def: def, log: log}
}

func (f *fallback) Guess(ctx context.Context, planet predictor.PlanetID) (predictor.Outcome, error) {
	o, err := f.primary.Guess(ctx, planet)
	if err != nil {
		f.log.Warn("oracle unavailable, using default guess",
			"planet", uint64(planet), "default", f.def.String(), "error", err)
		return f.def, nil
	}
	return o, nil
}

// #endregion fallback
