package model

// Category is a class of statistics with its own TTL and fallback policy.
type Category string

// Known categories. Each one carries an independent cache TTL, sample
// thresholds, and peer-grouping rule; dispatch is always by explicit
// switch on the tag, never by field inspection.
const (
	CategoryPlayerStats    Category = "player_stats"
	CategoryTeamStats      Category = "team_stats"
	CategoryDefensiveStats Category = "defensive_stats"
	CategoryRollingStats   Category = "rolling_stats"
	CategoryPredictions    Category = "predictions"
	CategoryOdds           Category = "odds"
	CategoryLineups        Category = "lineups"
	CategoryInjuries       Category = "injuries"
)

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPlayerStats,
		CategoryTeamStats,
		CategoryDefensiveStats,
		CategoryRollingStats,
		CategoryPredictions,
		CategoryOdds,
		CategoryLineups,
		CategoryInjuries,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPlayerStats, CategoryTeamStats, CategoryDefensiveStats,
		CategoryRollingStats, CategoryPredictions, CategoryOdds,
		CategoryLineups, CategoryInjuries:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// PlayerScoped reports whether records in this category describe
// individual players (as opposed to whole teams).
func (c Category) PlayerScoped() bool {
	switch c {
	case CategoryPlayerStats, CategoryDefensiveStats, CategoryRollingStats,
		CategoryLineups, CategoryInjuries:
		return true
	}
	return false
}
