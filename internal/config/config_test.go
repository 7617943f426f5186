package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/audax/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.FeedTTL, convey.ShouldEqual, time.Minute)
			convey.So(cfg.RefreshInterval(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.StallMinutes, convey.ShouldEqual, 720)
			convey.So(cfg.GraceMinutes, convey.ShouldEqual, 10)
			convey.So(cfg.DefaultSpeedKmh, convey.ShouldEqual, 15)
			convey.So(cfg.NextControlCap, convey.ShouldEqual, 0.9)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Derived(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := config.New()

		convey.Convey("When the event start is set", func() {
			cfg.EventStart = "2025-08-03"
			d, ok, err := cfg.EventDate()

			convey.Convey("Then it parses as a calendar date", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(d.Year(), convey.ShouldEqual, 2025)
				convey.So(d.Month(), convey.ShouldEqual, time.August)
				convey.So(d.Day(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the event start is empty", func() {
			_, ok, err := cfg.EventDate()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When wave starts are set", func() {
			cfg.WaveStarts = map[string]string{"a": "04:30", "LB": "5:15"}
			waves, err := cfg.Waves()

			convey.Convey("Then codes are upper-cased and times parsed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(waves["A"], convey.ShouldEqual, 4*time.Hour+30*time.Minute)
				convey.So(waves["LB"], convey.ShouldEqual, 5*time.Hour+15*time.Minute)
			})
		})

		convey.Convey("When values are invalid", func() {
			cases := []func(c *config.Config){
				func(c *config.Config) { c.Addr = "" },
				func(c *config.Config) { c.FeedFile, c.FeedURL = "", "" },
				func(c *config.Config) { c.RefreshIntervalS = -1 },
				func(c *config.Config) { c.RefreshQueueSize = 0 },
				func(c *config.Config) { c.StallMinutes = 0 },
				func(c *config.Config) { c.NextControlCap = 1 },
				func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
				func(c *config.Config) { c.Timezone = "Mars/Olympus" },
				func(c *config.Config) { c.EventStart = "3/8/2025" },
				func(c *config.Config) { c.WaveStarts = map[string]string{"A": "25:00"} },
			}

			convey.Convey("Then each is rejected as invalid config", func() {
				for _, mutate := range cases {
					c := config.New()
					mutate(c)
					convey.So(errors.Is(c.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				}
			})
		})
	})
}
