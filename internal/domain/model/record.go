package model

import (
	"encoding/json"
	"fmt"
)

// Source tags where a value came from.
type Source string

// Source tags. Fallback sources are produced by the resolver only;
// stored records are always measured or seed.
const (
	SourceMeasured Source = "measured"
	SourceSeed     Source = "seed"
)

// FallbackSource builds the source tag for a resolver strategy,
// e.g. FallbackSource("peer") -> "fallback:peer".
func FallbackSource(strategy string) Source {
	return Source("fallback:" + strategy)
}

// Value is a numeric-or-categorical stat value. Exactly one side is
// meaningful, selected by Categorical.
type Value struct {
	Num         float64
	Label       string
	Categorical bool
}

// Number wraps a numeric value.
func Number(v float64) Value { return Value{Num: v} }

// Label wraps a categorical value.
func Label(s string) Value { return Value{Label: s, Categorical: true} }

// MarshalJSON encodes the value as a bare number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Categorical {
		return json.Marshal(v.Label)
	}
	return json.Marshal(v.Num)
}

// UnmarshalJSON accepts a bare number or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Value{Num: num}
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		*v = Value{Label: label, Categorical: true}
		return nil
	}
	return fmt.Errorf("value must be a number or string: %s", data)
}

// StatRecord holds one entity's stats for a single (weekKey, category).
// SampleSize counts the games or snaps the values were derived from.
type StatRecord struct {
	Fields     map[string]Value `json:"fields"`
	SampleSize int              `json:"sample_size"`
	Source     Source           `json:"source"`
	Confidence float64          `json:"confidence"`

	// Peer-grouping attributes. Position applies to player-scoped
	// categories, Conference/Division to team-scoped ones. Team is the
	// roster abbreviation used for cross-reference validation.
	Position   string `json:"position,omitempty"`
	Team       string `json:"team,omitempty"`
	Conference string `json:"conference,omitempty"`
	Division   string `json:"division,omitempty"`
}

// Number returns the numeric value of a field and whether it exists
// as a number.
func (r StatRecord) Number(field string) (float64, bool) {
	v, ok := r.Fields[field]
	if !ok || v.Categorical {
		return 0, false
	}
	return v.Num, true
}

// CheckInvariants enforces the record-level invariants every layer
// relies on: non-negative sample size, confidence in [0,1], and no
// measured record without at least one observed sample.
func (r StatRecord) CheckInvariants() error {
	if r.SampleSize < 0 {
		return fmt.Errorf("sample_size %d is negative", r.SampleSize)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %g outside [0,1]", r.Confidence)
	}
	if r.SampleSize == 0 && r.Source == SourceMeasured {
		return fmt.Errorf("measured record with sample_size 0")
	}
	return nil
}

// Batch is one producer submission: all records for a single
// (weekKey, category), keyed by entity id.
type Batch map[string]StatRecord

// CommitResult reports a successful store commit.
type CommitResult struct {
	Seq      uint64   `json:"seq"`
	Warnings []string `json:"warnings,omitempty"`
}

// ConfidenceEnvelope wraps a resolved value with its provenance. It is
// produced at read time by the fallback resolver and never persisted.
type ConfidenceEnvelope struct {
	Value        Value    `json:"value"`
	Confidence   float64  `json:"confidence"`
	Source       Source   `json:"source"`
	ResolvedFrom *WeekKey `json:"resolved_from,omitempty"`
}
