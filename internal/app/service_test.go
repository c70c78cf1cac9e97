package service_test

import (
	"context"
	"errors"
	"os"
	"testing"

	service "github.com/gridstat/gridstat/internal/app"

	repository "github.com/gridstat/gridstat/internal/adapters/repository"
	"github.com/gridstat/gridstat/internal/config"
	"github.com/gridstat/gridstat/internal/domain/model"
	"github.com/gridstat/gridstat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.DataDir = t.TempDir()
	cfg.IngestWorkerCount = 2
	cfg.IngestQueueSize = 16
	return cfg
}

func startService(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New(testConfig(t))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func teamBatch(teams ...string) model.Batch {
	b := model.Batch{}
	for _, team := range teams {
		b[team] = model.StatRecord{
			Fields: map[string]model.Value{
				"wins":   model.Number(1),
				"losses": model.Number(0),
			},
			SampleSize: 1,
			Source:     model.SourceMeasured,
			Confidence: 1,
		}
	}
	return b
}

func playerBatch(touchdowns map[string]float64) model.Batch {
	b := model.Batch{}
	for id, tds := range touchdowns {
		b[id] = model.StatRecord{
			Fields: map[string]model.Value{
				"games_played": model.Number(1),
				"touchdowns":   model.Number(tds),
			},
			SampleSize: 1,
			Source:     model.SourceMeasured,
			Confidence: 1,
			Position:   "WR",
			Team:       "KC",
		}
	}
	return b
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service that has not been started", t, func() {
		svc := service.New(testConfig(t))
		key := model.WeekKey{Season: 2025, Week: 1}

		Convey("When calling operations", func() {
			_, _, err := svc.Query(context.Background(), key, model.CategoryPlayerStats)

			Convey("Then they fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()

			Convey("Then the second start is a no-op", func() {
				So(svc, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceIngestAndQuery(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startService(t)
		ctx := context.Background()
		key := model.WeekKey{Season: 2025, Week: 1}

		Convey("When committing team stats and reading them back", func() {
			res, err := svc.Ingest(ctx, key, model.CategoryTeamStats, teamBatch("KC", "BUF"), 0)
			So(err, ShouldBeNil)
			So(res.Seq, ShouldEqual, 1)

			batch, seq, err := svc.Query(ctx, key, model.CategoryTeamStats)
			So(err, ShouldBeNil)

			Convey("Then the committed batch comes back with its sequence", func() {
				So(seq, ShouldEqual, 1)
				So(len(batch), ShouldEqual, 2)
			})

			Convey("And a stale base sequence is rejected", func() {
				_, err := svc.Ingest(ctx, key, model.CategoryTeamStats, teamBatch("KC"), 0)
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("And the next read after a new commit reflects it", func() {
				_, err := svc.Ingest(ctx, key, model.CategoryTeamStats, teamBatch("KC", "BUF", "PHI"), res.Seq)
				So(err, ShouldBeNil)

				batch, seq, err := svc.Query(ctx, key, model.CategoryTeamStats)
				So(err, ShouldBeNil)
				So(seq, ShouldEqual, 2)
				So(len(batch), ShouldEqual, 3)
			})
		})

		Convey("When a batch violates the schema", func() {
			bad := model.Batch{
				"P1": {
					Fields: map[string]model.Value{
						"games_played":    model.Number(1),
						"snap_percentage": model.Number(1.7),
					},
					SampleSize: 1,
					Source:     model.SourceMeasured,
					Confidence: 1,
					Team:       "KC",
				},
			}
			_, err := svc.Ingest(ctx, key, model.CategoryPlayerStats, bad, 0)

			Convey("Then the whole batch is rejected and nothing is stored", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)

				seq, err := svc.LatestSeq(ctx, key, model.CategoryPlayerStats)
				So(err, ShouldBeNil)
				So(seq, ShouldEqual, 0)
			})
		})

		Convey("When player stats land before any team stats", func() {
			res, err := svc.Ingest(ctx, key, model.CategoryPlayerStats,
				playerBatch(map[string]float64{"P1": 2}), 0)
			So(err, ShouldBeNil)

			Convey("Then the commit succeeds with a roster warning persisted", func() {
				So(len(res.Warnings), ShouldEqual, 1)
				So(res.Warnings[0], ShouldContainSubstring, "skipped")

				stored, err := svc.Warnings(ctx, key, model.CategoryPlayerStats)
				So(err, ShouldBeNil)
				So(stored, ShouldResemble, res.Warnings)
			})
		})

		Convey("When querying an entity that is not in the batch", func() {
			_, err := svc.Ingest(ctx, key, model.CategoryTeamStats, teamBatch("KC"), 0)
			So(err, ShouldBeNil)

			_, err = svc.QueryRecord(ctx, key, model.CategoryTeamStats, "SEA")

			Convey("Then the lookup fails with ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When player stats reference an unrostered team", func() {
			_, err := svc.Ingest(ctx, key, model.CategoryTeamStats, teamBatch("BUF"), 0)
			So(err, ShouldBeNil)

			_, err = svc.Ingest(ctx, key, model.CategoryPlayerStats,
				playerBatch(map[string]float64{"P1": 1}), 0) // Team KC, not rostered

			Convey("Then the cross-reference rejects the batch", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})
	})
}
