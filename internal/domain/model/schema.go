package model

// FieldRule bounds a single stat field within a category's schema.
// Categorical fields carry labels and are exempt from range checks.
type FieldRule struct {
	Min         float64
	Max         float64
	Required    bool
	Categorical bool
}

// Range rule helpers.
func ranged(min, max float64) FieldRule   { return FieldRule{Min: min, Max: max} }
func required(min, max float64) FieldRule { return FieldRule{Min: min, Max: max, Required: true} }
func categorical() FieldRule              { return FieldRule{Categorical: true} }
func nonNegative() FieldRule              { return ranged(0, maxStatValue) }
func requiredNonNegative() FieldRule      { return required(0, maxStatValue) }

// maxStatValue caps counting stats; nothing in a single NFL week
// legitimately exceeds it.
const maxStatValue = 10_000

// teamRank bounds any 1..32 league ranking field.
var teamRank = ranged(1, 32)

// schemas maps each category to its field rule set. Fields not listed
// are accepted unchecked; required fields must be present in every
// record of a batch.
var schemas = map[Category]map[string]FieldRule{
	CategoryPlayerStats: {
		"games_played":    required(0, 25),
		"snap_percentage": ranged(0, 1),
		"completions":     nonNegative(),
		"attempts":        nonNegative(),
		"passing_yards":   ranged(-100, maxStatValue),
		"rushing_yards":   ranged(-100, maxStatValue),
		"receiving_yards": ranged(-100, maxStatValue),
		"receptions":      nonNegative(),
		"carries":         nonNegative(),
		"touchdowns":      nonNegative(),
		"interceptions":   nonNegative(),
		"fumbles":         nonNegative(),
	},
	CategoryTeamStats: {
		"wins":           required(0, 25),
		"losses":         required(0, 25),
		"points_for":     nonNegative(),
		"points_against": nonNegative(),
		"offense_rank":   teamRank,
		"defense_rank":   teamRank,
		"home_away":      categorical(),
	},
	CategoryDefensiveStats: {
		"games_played":   required(0, 25),
		"tackles":        nonNegative(),
		"sacks":          nonNegative(),
		"interceptions":  nonNegative(),
		"forced_fumbles": nonNegative(),
	},
	CategoryRollingStats: {
		"window_games":   required(1, 25),
		"avg_points":     nonNegative(),
		"avg_yards":      nonNegative(),
		"avg_touchdowns": nonNegative(),
	},
	CategoryPredictions: {
		"projected_points": requiredNonNegative(),
		"win_probability":  ranged(0, 1),
	},
	CategoryOdds: {
		"spread":     required(-60, 60),
		"over_under": ranged(0, 120),
		"moneyline":  ranged(-10_000, 10_000),
	},
	CategoryLineups: {
		"depth_chart_rank": required(1, 32),
		"snap_percentage":  ranged(0, 1),
		"status":           categorical(),
	},
	CategoryInjuries: {
		"games_missed":    requiredNonNegative(),
		"practice_status": categorical(),
		"designation":     categorical(),
	},
}

// SchemaFor returns the field rule set for a category. Every known
// category has a schema.
func SchemaFor(c Category) map[string]FieldRule {
	return schemas[c]
}

// RequiredNumericFields lists the numeric fields every record in a
// category must carry. These are also the fields that need a seed
// default so tier-4 fallback resolution can always terminate.
func RequiredNumericFields(c Category) []string {
	var out []string
	for name, rule := range schemas[c] {
		if rule.Required && !rule.Categorical {
			out = append(out, name)
		}
	}
	return out
}
