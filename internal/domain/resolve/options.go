package resolve

import (
	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithMinSample sets the per-category minimum sample size a stored
// record needs to satisfy exact resolution.
func WithMinSample(m map[model.Category]int) Option {
	return func(r *Resolver) {
		for c, v := range m {
			r.minSample[c] = v
		}
	}
}

// WithFullSampleTarget sets the per-category sample size at which a
// measured record reaches confidence 1.0.
func WithFullSampleTarget(m map[model.Category]int) Option {
	return func(r *Resolver) {
		for c, v := range m {
			r.fullTarget[c] = v
		}
	}
}

// WithRecencyWindow sets how many prior weeks tier-2 resolution
// inspects.
func WithRecencyWindow(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.recencyWindow = n
		}
	}
}

// WithDecayFactor sets the per-week weight decay inside the recency
// window.
func WithDecayFactor(f float64) Option {
	return func(r *Resolver) {
		if f > 0 && f <= 1 {
			r.decayFactor = f
		}
	}
}

// WithRecencyPenalty sets the confidence penalty applied to
// recency-resolved values.
func WithRecencyPenalty(p float64) Option {
	return func(r *Resolver) {
		if p > 0 && p <= 1 {
			r.recencyPenalty = p
		}
	}
}

// WithSeedDefaults sets the tier-4 per-field fallback constants.
func WithSeedDefaults(m map[string]float64) Option {
	return func(r *Resolver) {
		for f, v := range m {
			r.seedDefaults[f] = v
		}
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}
