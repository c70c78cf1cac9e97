package main

import (
	"context"
	"os"
	"testing"

	app "github.com/gridstat/gridstat/internal/app"
	"github.com/gridstat/gridstat/internal/config"
	"github.com/gridstat/gridstat/pkg/logger"
	"github.com/gridstat/gridstat/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		_ = logger.Init()

		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("GRIDSTAT_DATA_DIR", t.TempDir())
			_ = os.Setenv("GRIDSTAT_INGEST_QUEUE_SIZE", "1000")
			_ = os.Setenv("GRIDSTAT_INGEST_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("GRIDSTAT_DATA_DIR")
				_ = os.Unsetenv("GRIDSTAT_INGEST_QUEUE_SIZE")
				_ = os.Unsetenv("GRIDSTAT_INGEST_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.IngestQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.IngestWorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable from defaults", func() {
				svc := app.New(config.New())
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the data directory is cleared", func() {
			cfg := config.New()
			cfg.DataDir = ""

			convey.Convey("Then validation should fail", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a required seed default is missing", func() {
			cfg := config.New()
			delete(cfg.SeedDefaults, "games_played")

			convey.Convey("Then validation should fail at startup", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}
