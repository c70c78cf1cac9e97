// Package validate implements the pre-commit validation pipeline:
// schema checks, roster cross-reference, and anomaly detection.
package validate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
	"github.com/gridstat/gridstat/pkg/metrics"
)

// defaultAnomalySigma is the z-score threshold for anomaly warnings.
const defaultAnomalySigma = 3.0

// RosterSource supplies the set of team abbreviations with committed
// team_stats for a season, up to and including a week.
type RosterSource interface {
	Teams(ctx context.Context, season int, upTo model.Week) (map[string]struct{}, error)
}

// HistorySource supplies prior committed batches of a category within
// the same season, for anomaly baselines.
type HistorySource interface {
	History(ctx context.Context, category model.Category, before model.WeekKey) ([]model.Batch, error)
}

// Report collects every issue found in a batch. Errors block the
// commit; warnings are persisted with the committed version.
type Report struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the batch may be committed.
func (r Report) OK() bool { return len(r.Errors) == 0 }

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Pipeline runs the ordered validation checks. All issues are
// collected wholesale so producers can fix everything in one pass.
type Pipeline struct {
	roster  RosterSource
	history HistorySource
	sigma   float64
	log     logger.Logger
}

// New constructs a Pipeline with configuration options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		sigma: defaultAnomalySigma,
		log:   logger.Get().Named("validate"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate runs schema, cross-reference, and anomaly checks in order.
func (p *Pipeline) Validate(ctx context.Context, category model.Category, key model.WeekKey, batch model.Batch) Report {
	var report Report

	if !category.Valid() {
		report.errorf("unknown category %q", category)
		return report
	}
	if !key.Valid() {
		report.errorf("invalid week key %s", key)
		return report
	}

	p.checkSchema(category, batch, &report)
	p.checkRoster(ctx, category, key, batch, &report)
	p.checkAnomalies(ctx, category, key, batch, &report)

	metrics.RecordValidationErrors(len(report.Errors))
	metrics.RecordValidationWarnings(len(report.Warnings))
	if !report.OK() {
		p.log.Debug(ctx, "batch failed validation",
			logger.String("key", key.String()),
			logger.String("category", category.String()),
			logger.Int("errors", len(report.Errors)),
			logger.Int("warnings", len(report.Warnings)),
		)
	}
	return report
}

// checkSchema enforces record invariants, required fields, and value
// ranges from the category's schema.
func (p *Pipeline) checkSchema(category model.Category, batch model.Batch, report *Report) {
	schema := model.SchemaFor(category)

	for _, id := range sortedIDs(batch) {
		rec := batch[id]
		if err := rec.CheckInvariants(); err != nil {
			report.errorf("entity %s: %v", id, err)
		}

		for name, rule := range schema {
			v, ok := rec.Fields[name]
			if !ok {
				if rule.Required {
					report.errorf("entity %s: missing required field %q", id, name)
				}
				continue
			}
			if rule.Categorical {
				if !v.Categorical {
					report.errorf("entity %s: field %q must be categorical", id, name)
				}
				continue
			}
			if v.Categorical {
				report.errorf("entity %s: field %q must be numeric", id, name)
				continue
			}
			if v.Num < rule.Min || v.Num > rule.Max {
				report.errorf("entity %s: field %q value %g outside [%g,%g]",
					id, name, v.Num, rule.Min, rule.Max)
			}
		}
	}
}

// checkRoster cross-references player-scoped records against teams
// with committed team_stats for the season. With no team_stats yet
// (early-season bootstrap) there is nothing to check against, which is
// worth a warning but never a block.
func (p *Pipeline) checkRoster(ctx context.Context, category model.Category, key model.WeekKey, batch model.Batch, report *Report) {
	if p.roster == nil || !category.PlayerScoped() || len(batch) == 0 {
		return
	}

	teams, err := p.roster.Teams(ctx, key.Season, key.Week)
	if err != nil {
		report.warnf("roster cross-reference unavailable: %v", err)
		return
	}
	if len(teams) == 0 {
		report.warnf("no team_stats committed for season %d; roster cross-reference skipped", key.Season)
		return
	}

	for _, id := range sortedIDs(batch) {
		rec := batch[id]
		if rec.Team == "" {
			report.errorf("entity %s: no team reference", id)
			continue
		}
		if _, ok := teams[rec.Team]; !ok {
			report.errorf("entity %s: team %q not rostered in season %d", id, rec.Team, key.Season)
		}
	}
}

// checkAnomalies flags values more than sigma standard deviations from
// the field's historical distribution for the same category and
// position. Warnings only.
func (p *Pipeline) checkAnomalies(ctx context.Context, category model.Category, key model.WeekKey, batch model.Batch, report *Report) {
	if p.history == nil || len(batch) == 0 {
		return
	}

	prior, err := p.history.History(ctx, category, key)
	if err != nil || len(prior) == 0 {
		return // no baseline yet
	}

	// Samples grouped by (position, field) across measured records.
	samples := make(map[string][]float64)
	for _, b := range prior {
		for _, rec := range b {
			if rec.Source != model.SourceMeasured {
				continue
			}
			for name, v := range rec.Fields {
				if v.Categorical {
					continue
				}
				gk := rec.Position + "/" + name
				samples[gk] = append(samples[gk], v.Num)
			}
		}
	}

	for _, id := range sortedIDs(batch) {
		rec := batch[id]
		for name, v := range rec.Fields {
			if v.Categorical {
				continue
			}
			mean, std, n := distribution(samples[rec.Position+"/"+name])
			if n < 2 || std == 0 {
				continue
			}
			if z := math.Abs(v.Num-mean) / std; z > p.sigma {
				report.warnf("entity %s: field %q value %g is %.1f sigma from historical mean %.2f",
					id, name, v.Num, z, mean)
			}
		}
	}
}

// distribution returns mean, population standard deviation, and count.
func distribution(xs []float64) (mean, std float64, n int) {
	n = len(xs)
	if n == 0 {
		return 0, 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(n))
	return mean, std, n
}

// sortedIDs yields entity ids in stable order so reports are
// deterministic.
func sortedIDs(batch model.Batch) []string {
	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
