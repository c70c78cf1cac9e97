// Package resolve implements confidence-weighted fallback resolution
// for single stat values. A query that cannot be answered from the
// requested week degrades through recency-weighted history, peer
// averages, and finally seed defaults, so it always produces a value.
package resolve

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
	"github.com/gridstat/gridstat/pkg/metrics"
)

// Fallback tier defaults.
const (
	defaultRecencyWindow  = 3
	defaultDecayFactor    = 0.7
	defaultRecencyPenalty = 0.85

	peerConfidence = 0.5
	seedConfidence = 0.1
)

// Reader is the batch read the resolver queries. Satisfied by the
// read-through cache.
type Reader interface {
	Get(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, uint64, bool, error)
}

// Resolver answers single-value queries through the fallback chain:
// exact match, recency-weighted history, peer average, seed default.
type Resolver struct {
	reader         Reader
	minSample      map[model.Category]int
	fullTarget     map[model.Category]int
	recencyWindow  int
	decayFactor    float64
	recencyPenalty float64
	seedDefaults   map[string]float64
	log            logger.Logger
}

// New constructs a Resolver over reader.
func New(reader Reader, opts ...Option) *Resolver {
	r := &Resolver{
		reader:         reader,
		minSample:      map[model.Category]int{},
		fullTarget:     map[model.Category]int{},
		recencyWindow:  defaultRecencyWindow,
		decayFactor:    defaultDecayFactor,
		recencyPenalty: defaultRecencyPenalty,
		seedDefaults:   map[string]float64{},
		log:            logger.Get().Named("resolve"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers a single-field query for an entity at a week. The
// returned envelope always carries a value; the only error is
// ErrTimeout when ctx expires mid-resolution.
func (r *Resolver) Resolve(ctx context.Context, key model.WeekKey, category model.Category, entityID, field string) (model.ConfidenceEnvelope, error) {
	start := time.Now()
	defer func() {
		metrics.RecordResolveLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return model.ConfidenceEnvelope{}, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	current, err := r.read(ctx, key, category)
	if err != nil {
		return model.ConfidenceEnvelope{}, err
	}

	// Tier 1: the requested week has a usable record.
	if rec, ok := current[entityID]; ok {
		if env, ok := r.exact(category, rec, field); ok {
			metrics.RecordResolution("exact")
			return env, nil
		}
	}

	// Tier 2: recency-weighted average over the entity's prior weeks.
	// The walk also captures the entity's last known peer attributes
	// for tier 3.
	env, profile, ok, err := r.recency(ctx, key, category, entityID, field)
	if err != nil {
		return model.ConfidenceEnvelope{}, err
	}
	if ok {
		metrics.RecordResolution("recency")
		return env, nil
	}

	// Tier 3: average over the entity's peers in the requested week.
	if env, ok := r.peerAverage(category, current, entityID, field, profile); ok {
		metrics.RecordResolution("peer")
		return env, nil
	}

	// Tier 4: seed default. Terminal; never refuses.
	metrics.RecordResolution("seed")
	return r.seed(ctx, field), nil
}

// read fetches a batch, treating store misses as empty. Only a context
// expiry surfaces as an error.
func (r *Resolver) read(ctx context.Context, key model.WeekKey, category model.Category) (model.Batch, error) {
	batch, _, _, err := r.reader.Get(ctx, key, category)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return model.Batch{}, nil
	}
	return batch, nil
}

// exact builds a tier-1 envelope when the record carries the field and
// meets the category's minimum sample size.
func (r *Resolver) exact(category model.Category, rec model.StatRecord, field string) (model.ConfidenceEnvelope, bool) {
	v, ok := rec.Fields[field]
	if !ok {
		return model.ConfidenceEnvelope{}, false
	}
	if rec.SampleSize < r.minSample[category] {
		return model.ConfidenceEnvelope{}, false
	}
	return model.ConfidenceEnvelope{
		Value:      v,
		Confidence: r.sampleConfidence(category, rec.SampleSize),
		Source:     rec.Source,
	}, true
}

// recency computes a decay-weighted average of the entity's measured
// values across the preceding weeks of the same season. It reports the
// entity's most recent record as the peer-grouping profile regardless
// of whether the tier produces a value.
func (r *Resolver) recency(ctx context.Context, key model.WeekKey, category model.Category, entityID, field string) (model.ConfidenceEnvelope, *model.StatRecord, bool, error) {
	var (
		weightSum  float64
		valueSum   float64
		confSum    float64
		latestWeek *model.WeekKey
		profile    *model.StatRecord
	)

	weight := 1.0
	wk := key
	for i := 0; i < r.recencyWindow; i++ {
		prev, ok := wk.Prev()
		if !ok {
			break
		}
		wk = prev
		weight *= r.decayFactor

		batch, err := r.read(ctx, wk, category)
		if err != nil {
			return model.ConfidenceEnvelope{}, nil, false, err
		}
		rec, ok := batch[entityID]
		if !ok {
			continue
		}
		if profile == nil {
			p := rec
			profile = &p
		}
		if rec.Source != model.SourceMeasured {
			continue
		}
		num, ok := rec.Number(field)
		if !ok {
			continue
		}

		if latestWeek == nil {
			w := wk
			latestWeek = &w
		}
		valueSum += weight * num
		confSum += weight * r.sampleConfidence(category, rec.SampleSize)
		weightSum += weight
	}

	if weightSum == 0 {
		return model.ConfidenceEnvelope{}, profile, false, nil
	}
	return model.ConfidenceEnvelope{
		Value:        model.Number(valueSum / weightSum),
		Confidence:   (confSum / weightSum) * r.recencyPenalty,
		Source:       model.FallbackSource("recency"),
		ResolvedFrom: latestWeek,
	}, profile, true, nil
}

// peerAverage averages the field over the entity's peer group in the
// requested week. Only measured records contribute. The peer group is
// the entity's position for player-scoped categories and its
// conference+division otherwise; with no known profile every measured
// record is a peer.
func (r *Resolver) peerAverage(category model.Category, batch model.Batch, entityID, field string, profile *model.StatRecord) (model.ConfidenceEnvelope, bool) {
	var sum float64
	var n int
	for id, rec := range batch {
		if id == entityID || rec.Source != model.SourceMeasured {
			continue
		}
		if !samePeerGroup(category, profile, rec) {
			continue
		}
		num, ok := rec.Number(field)
		if !ok {
			continue
		}
		sum += num
		n++
	}
	if n == 0 {
		return model.ConfidenceEnvelope{}, false
	}
	return model.ConfidenceEnvelope{
		Value:      model.Number(sum / float64(n)),
		Confidence: peerConfidence,
		Source:     model.FallbackSource("peer"),
	}, true
}

// seed returns the configured default for a field. Unknown fields fall
// back to zero so resolution still terminates.
func (r *Resolver) seed(ctx context.Context, field string) model.ConfidenceEnvelope {
	def, ok := r.seedDefaults[field]
	if !ok {
		r.log.Debug(ctx, "no seed default for field", logger.String("field", field))
	}
	return model.ConfidenceEnvelope{
		Value:      model.Number(def),
		Confidence: seedConfidence,
		Source:     model.FallbackSource("seed"),
	}
}

// sampleConfidence maps a sample size onto [0,1] against the
// category's full-sample target.
func (r *Resolver) sampleConfidence(category model.Category, sample int) float64 {
	target := r.fullTarget[category]
	if target <= 0 {
		return 1
	}
	return math.Min(1, float64(sample)/float64(target))
}

// samePeerGroup reports whether rec belongs to the profile's peer
// group for the category.
func samePeerGroup(category model.Category, profile *model.StatRecord, rec model.StatRecord) bool {
	if profile == nil {
		return true
	}
	if category.PlayerScoped() {
		return profile.Position == "" || rec.Position == profile.Position
	}
	if profile.Conference == "" && profile.Division == "" {
		return true
	}
	return rec.Conference == profile.Conference && rec.Division == profile.Division
}
