package validate_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/internal/domain/validate"
	"github.com/gridstat/gridstat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeRoster struct {
	teams map[string]struct{}
	err   error
}

func (f *fakeRoster) Teams(ctx context.Context, season int, upTo model.Week) (map[string]struct{}, error) {
	return f.teams, f.err
}

type fakeHistory struct {
	batches []model.Batch
}

func (f *fakeHistory) History(ctx context.Context, category model.Category, before model.WeekKey) ([]model.Batch, error) {
	return f.batches, nil
}

func playerRecord(team string, fields map[string]model.Value) model.StatRecord {
	return model.StatRecord{
		Fields:     fields,
		SampleSize: 1,
		Source:     model.SourceMeasured,
		Confidence: 1,
		Position:   "WR",
		Team:       team,
	}
}

func TestValidateSchema(t *testing.T) {
	Convey("Given a schema-only pipeline", t, func() {
		p := validate.New()
		key := model.WeekKey{Season: 2025, Week: 3}

		Convey("When a batch satisfies the player_stats schema", func() {
			batch := model.Batch{
				"P1": playerRecord("KC", map[string]model.Value{
					"games_played":    model.Number(3),
					"snap_percentage": model.Number(0.82),
					"receiving_yards": model.Number(210),
				}),
			}
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key, batch)

			Convey("Then it passes with no issues", func() {
				So(report.OK(), ShouldBeTrue)
				So(report.Warnings, ShouldBeEmpty)
			})
		})

		Convey("When a record misses a required field", func() {
			batch := model.Batch{
				"P1": playerRecord("KC", map[string]model.Value{
					"receiving_yards": model.Number(50),
				}),
			}
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key, batch)

			Convey("Then the batch is rejected", func() {
				So(report.OK(), ShouldBeFalse)
				So(report.Errors[0], ShouldContainSubstring, "games_played")
			})
		})

		Convey("When a value falls outside its range", func() {
			batch := model.Batch{
				"P1": playerRecord("KC", map[string]model.Value{
					"games_played":    model.Number(2),
					"snap_percentage": model.Number(1.4),
				}),
			}
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key, batch)

			Convey("Then the range violation is reported", func() {
				So(report.OK(), ShouldBeFalse)
				So(report.Errors[0], ShouldContainSubstring, "snap_percentage")
			})
		})

		Convey("When a categorical field carries a number", func() {
			batch := model.Batch{
				"KC": {
					Fields: map[string]model.Value{
						"wins":      model.Number(3),
						"losses":    model.Number(0),
						"home_away": model.Number(1),
					},
					SampleSize: 3,
					Source:     model.SourceMeasured,
					Confidence: 1,
				},
			}
			report := p.Validate(context.Background(), model.CategoryTeamStats, key, batch)

			Convey("Then the type mismatch is reported", func() {
				So(report.OK(), ShouldBeFalse)
				So(report.Errors[0], ShouldContainSubstring, "home_away")
			})
		})

		Convey("When several records are broken at once", func() {
			batch := model.Batch{
				"P1": playerRecord("KC", map[string]model.Value{
					"snap_percentage": model.Number(2),
				}),
				"P2": {
					Fields:     map[string]model.Value{"games_played": model.Number(1)},
					SampleSize: 0,
					Source:     model.SourceMeasured,
					Confidence: 1,
				},
			}
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key, batch)

			Convey("Then every issue is collected, not just the first", func() {
				So(len(report.Errors), ShouldBeGreaterThanOrEqualTo, 3)
			})
		})

		Convey("When the category is unknown", func() {
			report := p.Validate(context.Background(), model.Category("bogus"), key, model.Batch{})
			So(report.OK(), ShouldBeFalse)
		})

		Convey("When the week key is out of range", func() {
			bad := model.WeekKey{Season: 2025, Week: 23}
			report := p.Validate(context.Background(), model.CategoryPlayerStats, bad, model.Batch{})
			So(report.OK(), ShouldBeFalse)
		})
	})
}

func TestValidateRosterCrossReference(t *testing.T) {
	Convey("Given a pipeline with a roster source", t, func() {
		key := model.WeekKey{Season: 2025, Week: 2}
		good := map[string]model.Value{"games_played": model.Number(1)}

		Convey("When the player's team has committed team_stats", func() {
			p := validate.New(validate.WithRoster(&fakeRoster{
				teams: map[string]struct{}{"KC": {}, "BUF": {}},
			}))
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P1": playerRecord("KC", good)})

			So(report.OK(), ShouldBeTrue)
			So(report.Warnings, ShouldBeEmpty)
		})

		Convey("When the player references an unrostered team", func() {
			p := validate.New(validate.WithRoster(&fakeRoster{
				teams: map[string]struct{}{"BUF": {}},
			}))
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P1": playerRecord("KC", good)})

			Convey("Then the batch is rejected", func() {
				So(report.OK(), ShouldBeFalse)
				So(report.Errors[0], ShouldContainSubstring, "KC")
			})
		})

		Convey("When no team_stats exist for the season yet", func() {
			p := validate.New(validate.WithRoster(&fakeRoster{teams: map[string]struct{}{}}))
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P1": playerRecord("KC", good)})

			Convey("Then the check is skipped with a warning, not an error", func() {
				So(report.OK(), ShouldBeTrue)
				So(len(report.Warnings), ShouldEqual, 1)
				So(report.Warnings[0], ShouldContainSubstring, "skipped")
			})
		})

		Convey("When the roster source fails", func() {
			p := validate.New(validate.WithRoster(&fakeRoster{err: errors.New("store down")}))
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P1": playerRecord("KC", good)})

			Convey("Then the batch still commits with a warning", func() {
				So(report.OK(), ShouldBeTrue)
				So(len(report.Warnings), ShouldEqual, 1)
			})
		})

		Convey("When the category is team-scoped", func() {
			p := validate.New(validate.WithRoster(&fakeRoster{teams: map[string]struct{}{}}))
			report := p.Validate(context.Background(), model.CategoryTeamStats, key, model.Batch{
				"KC": {
					Fields: map[string]model.Value{
						"wins":   model.Number(1),
						"losses": model.Number(1),
					},
					SampleSize: 2,
					Source:     model.SourceMeasured,
					Confidence: 1,
				},
			})

			Convey("Then no cross-reference runs at all", func() {
				So(report.OK(), ShouldBeTrue)
				So(report.Warnings, ShouldBeEmpty)
			})
		})
	})
}

func TestValidateAnomalies(t *testing.T) {
	Convey("Given five weeks of receiving yardage around 80", t, func() {
		history := &fakeHistory{}
		for i := 0; i < 5; i++ {
			history.batches = append(history.batches, model.Batch{
				"P1": playerRecord("KC", map[string]model.Value{
					"games_played":    model.Number(1),
					"receiving_yards": model.Number(float64(75 + i*2)),
				}),
			})
		}
		p := validate.New(validate.WithHistory(history), validate.WithSigma(3))
		key := model.WeekKey{Season: 2025, Week: 6}

		Convey("When a new value sits near the historical mean", func() {
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P2": playerRecord("KC", map[string]model.Value{
					"games_played":    model.Number(1),
					"receiving_yards": model.Number(82),
				})})

			So(report.OK(), ShouldBeTrue)
			So(report.Warnings, ShouldBeEmpty)
		})

		Convey("When a new value is far outside the distribution", func() {
			report := p.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P2": playerRecord("KC", map[string]model.Value{
					"games_played":    model.Number(1),
					"receiving_yards": model.Number(400),
				})})

			Convey("Then a warning is raised but the batch still passes", func() {
				So(report.OK(), ShouldBeTrue)
				So(len(report.Warnings), ShouldEqual, 1)
				So(report.Warnings[0], ShouldContainSubstring, "receiving_yards")
			})
		})

		Convey("When there is no history at all", func() {
			empty := validate.New(validate.WithHistory(&fakeHistory{}))
			report := empty.Validate(context.Background(), model.CategoryPlayerStats, key,
				model.Batch{"P2": playerRecord("KC", map[string]model.Value{
					"games_played":    model.Number(1),
					"receiving_yards": model.Number(400),
				})})

			Convey("Then no anomaly warning is possible", func() {
				So(report.OK(), ShouldBeTrue)
				So(report.Warnings, ShouldBeEmpty)
			})
		})
	})
}
