package validate

import (
	"github.com/gridstat/gridstat/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithRoster wires the roster source for cross-reference checks.
func WithRoster(r RosterSource) Option {
	return func(p *Pipeline) {
		p.roster = r
	}
}

// WithHistory wires the history source for anomaly baselines.
func WithHistory(h HistorySource) Option {
	return func(p *Pipeline) {
		p.history = h
	}
}

// WithSigma sets the z-score threshold for anomaly warnings.
func WithSigma(sigma float64) Option {
	return func(p *Pipeline) {
		if sigma > 0 {
			p.sigma = sigma
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}
