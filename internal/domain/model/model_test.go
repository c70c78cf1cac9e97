package model_test

import (
	"encoding/json"
	"testing"

	"github.com/gridstat/gridstat/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeekOrdering(t *testing.T) {
	Convey("Given week keys across a season", t, func() {
		w1 := model.WeekKey{Season: 2025, Week: 1}
		w18 := model.WeekKey{Season: 2025, Week: 18}
		wild := model.WeekKey{Season: 2025, Week: model.WeekWildcard}
		sb := model.WeekKey{Season: 2025, Week: model.WeekSuperBowl}
		next := model.WeekKey{Season: 2026, Week: 1}

		Convey("Then regular weeks order before playoff rounds", func() {
			So(w1.Before(w18), ShouldBeTrue)
			So(w18.Before(wild), ShouldBeTrue)
			So(wild.Before(sb), ShouldBeTrue)
		})

		Convey("And season orders first", func() {
			So(sb.Before(next), ShouldBeTrue)
			So(next.Before(sb), ShouldBeFalse)
		})

		Convey("And Prev walks back within the season only", func() {
			prev, ok := wild.Prev()
			So(ok, ShouldBeTrue)
			So(prev.Week, ShouldEqual, model.Week(18))

			_, ok = w1.Prev()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestParseWeek(t *testing.T) {
	Convey("Given week strings", t, func() {
		Convey("Numeric weeks parse in range", func() {
			w, err := model.ParseWeek("7")
			So(err, ShouldBeNil)
			So(w, ShouldEqual, model.Week(7))

			_, err = model.ParseWeek("19")
			So(err, ShouldNotBeNil)

			_, err = model.ParseWeek("0")
			So(err, ShouldNotBeNil)
		})

		Convey("Playoff rounds parse by name", func() {
			w, err := model.ParseWeek("superbowl")
			So(err, ShouldBeNil)
			So(w, ShouldEqual, model.WeekSuperBowl)
			So(w.Playoff(), ShouldBeTrue)
		})
	})
}

func TestValueJSON(t *testing.T) {
	Convey("Given numeric and categorical values", t, func() {
		rec := model.StatRecord{
			Fields: map[string]model.Value{
				"yards":     model.Number(87),
				"home_away": model.Label("home"),
			},
			SampleSize: 1,
			Source:     model.SourceMeasured,
			Confidence: 1,
		}

		Convey("They round-trip as bare JSON scalars", func() {
			raw, err := json.Marshal(rec)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"yards":87`)
			So(string(raw), ShouldContainSubstring, `"home_away":"home"`)

			var back model.StatRecord
			So(json.Unmarshal(raw, &back), ShouldBeNil)
			n, ok := back.Number("yards")
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 87)
			_, ok = back.Number("home_away")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRecordInvariants(t *testing.T) {
	Convey("Given stat records", t, func() {
		Convey("Negative sample size is rejected", func() {
			r := model.StatRecord{SampleSize: -1, Source: model.SourceMeasured, Confidence: 1}
			So(r.CheckInvariants(), ShouldNotBeNil)
		})

		Convey("Measured records require at least one sample", func() {
			r := model.StatRecord{SampleSize: 0, Source: model.SourceMeasured, Confidence: 1}
			So(r.CheckInvariants(), ShouldNotBeNil)

			r.Source = model.SourceSeed
			r.Confidence = 0.1
			So(r.CheckInvariants(), ShouldBeNil)
		})

		Convey("Confidence is bounded to [0,1]", func() {
			r := model.StatRecord{SampleSize: 1, Source: model.SourceMeasured, Confidence: 1.2}
			So(r.CheckInvariants(), ShouldNotBeNil)
		})
	})
}
