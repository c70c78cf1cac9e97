// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
)

// FirstSupportedSeason is the earliest season the store accepts.
const FirstSupportedSeason = 2020

// RegularSeasonWeeks is the number of regular-season weeks.
const RegularSeasonWeeks = 18

// Week identifies a week within a season. Regular weeks are 1..18;
// playoff rounds continue the sequence so numeric order matches
// chronological order.
type Week uint8

// Playoff rounds, in fixed chronological order after week 18.
const (
	WeekWildcard   Week = RegularSeasonWeeks + 1 + iota // 19
	WeekDivisional                                      // 20
	WeekConference                                      // 21
	WeekSuperBowl                                       // 22
)

// Valid reports whether w is a regular week or a known playoff round.
func (w Week) Valid() bool {
	return w >= 1 && w <= WeekSuperBowl
}

// Playoff reports whether w is a playoff round.
func (w Week) Playoff() bool {
	return w > RegularSeasonWeeks && w <= WeekSuperBowl
}

func (w Week) String() string {
	switch w {
	case WeekWildcard:
		return "wildcard"
	case WeekDivisional:
		return "divisional"
	case WeekConference:
		return "conference"
	case WeekSuperBowl:
		return "superbowl"
	default:
		return strconv.Itoa(int(w))
	}
}

// ParseWeek parses a week number or playoff round name.
func ParseWeek(s string) (Week, error) {
	switch s {
	case "wildcard":
		return WeekWildcard, nil
	case "divisional":
		return WeekDivisional, nil
	case "conference":
		return WeekConference, nil
	case "superbowl":
		return WeekSuperBowl, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > RegularSeasonWeeks {
		return 0, fmt.Errorf("unknown week %q", s)
	}
	return Week(n), nil
}

// WeekKey identifies a season+week pair. It is the versioning unit:
// every store commit is scoped to exactly one WeekKey and one Category.
type WeekKey struct {
	Season int  `json:"season"`
	Week   Week `json:"week"`
}

// Valid reports whether the key names a supported season and week.
func (k WeekKey) Valid() bool {
	return k.Season >= FirstSupportedSeason && k.Week.Valid()
}

// Before reports whether k is chronologically earlier than other.
// Season orders first, then the week sequence (regular weeks before
// playoff rounds).
func (k WeekKey) Before(other WeekKey) bool {
	if k.Season != other.Season {
		return k.Season < other.Season
	}
	return k.Week < other.Week
}

// Prev returns the preceding week within the same season and false
// once the start of the season is reached. Recency-window fallback is
// season-scoped, so it never crosses into a prior season.
func (k WeekKey) Prev() (WeekKey, bool) {
	if k.Week <= 1 {
		return WeekKey{}, false
	}
	return WeekKey{Season: k.Season, Week: k.Week - 1}, true
}

func (k WeekKey) String() string {
	if k.Week.Playoff() {
		return fmt.Sprintf("%d-%s", k.Season, k.Week)
	}
	return fmt.Sprintf("%d-w%02d", k.Season, k.Week)
}
