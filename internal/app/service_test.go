package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/audax/internal/adapters/feed"
	"github.com/okian/audax/internal/adapters/mq/queue"
	"github.com/okian/audax/internal/adapters/repository"
	service "github.com/okian/audax/internal/app"
	"github.com/okian/audax/internal/domain/timefmt"
	"github.com/okian/audax/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// blockingSource holds every fetch until released.
type blockingSource struct {
	once    sync.Once
	release chan struct{}
	entered chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Fetch(ctx context.Context) ([]byte, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return []byte(`[]`), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingSource) unblock() { b.once.Do(func() { close(b.release) }) }

// failingSource never returns a document.
type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Fetch(context.Context) ([]byte, error) {
	return nil, errors.New("upstream down")
}

// fixedTimes evaluates at Sunday 10:00 of an August 2025 event.
func fixedTimes() *timefmt.Normalizer {
	base := timefmt.New(timefmt.WithEventStart(2025, time.August, 3))
	now, ok := base.Parse("Sunday 10:00")
	if !ok {
		panic("fixture time did not parse")
	}
	return timefmt.New(
		timefmt.WithEventStart(2025, time.August, 3),
		timefmt.WithClock(func() time.Time { return now }),
	)
}

func writeFeed(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "riders.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 16)
			So(stats["refreshInterval"], ShouldEqual, "1m0s")
			So(stats["maxLimit"], ShouldEqual, 100)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithQueueSize(4),
			service.WithRefreshInterval(30*time.Second),
			service.WithMaxLimit(10),
			service.WithCache(8, time.Second),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["queueSize"], ShouldEqual, 4)
			So(stats["refreshInterval"], ShouldEqual, "30s")
			So(stats["maxLimit"], ShouldEqual, 10)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without a source", t, func() {
		svc := service.New()

		Convey("Then Start refuses to run", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNoSource), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a service with a file source", t, func() {
		path := writeFeed(t, t.TempDir(), `[]`)
		svc := service.New(
			service.WithSource(feed.NewFileSource(path)),
			service.WithNormalizer(fixedTimes()),
			service.WithRefreshInterval(0),
		)
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["source"], ShouldEqual, "file:"+path)
			})

			Convey("And a second Start is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		path := writeFeed(t, t.TempDir(), `[]`)
		svc := service.New(
			service.WithSource(feed.NewFileSource(path)),
			service.WithNormalizer(fixedTimes()),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)
		So(waitFor(func() bool { _, err := svc.Current(ctx); return err == nil }), ShouldBeTrue)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And the last board stays readable", func() {
				_, err := svc.Current(ctx)
				So(err, ShouldBeNil)
			})

			Convey("And refresh requests are refused", func() {
				_, err := svc.RequestRefresh(ctx, "late", false)
				So(errors.Is(err, queue.ErrClosed), ShouldBeTrue)
			})

			Convey("And stopping again is harmless", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then reads report that no board exists", func() {
			_, err := svc.Current(ctx)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
			_, err = svc.Rider(ctx, "A1")
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
			_, err = svc.TopN(ctx, 5)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
		})

		Convey("Then refreshes are refused", func() {
			So(errors.Is(svc.Refresh(ctx, queue.Request{Reason: "x"}), service.ErrNotStarted), ShouldBeTrue)
			_, err := svc.RequestRefresh(ctx, "x", false)
			So(errors.Is(err, queue.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose refresh is stuck on the feed", t, func() {
		src := newBlockingSource()
		svc := service.New(
			service.WithSource(src),
			service.WithQueueSize(1),
			service.WithRefreshInterval(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		defer src.unblock()

		// the startup refresh is now parked inside Fetch
		<-src.entered

		Convey("When more distinct requests arrive than the queue holds", func() {
			var accepted []string
			var err error
			for i := 0; i < 5 && err == nil; i++ {
				var req queue.Request
				req, err = svc.RequestRefresh(ctx, fmt.Sprintf("burst-%d", i), false)
				if err == nil {
					accepted = append(accepted, req.ID)
				}
			}

			Convey("Then the overflow is rejected with ErrFull", func() {
				So(errors.Is(err, queue.ErrFull), ShouldBeTrue)
				So(len(accepted), ShouldBeBetweenOrEqual, 1, 2)
				So(accepted[0], ShouldNotBeEmpty)
			})
		})
	})
}

func TestService_Coalescing(t *testing.T) {
	Convey("Given a service whose startup refresh is stuck on the feed", t, func() {
		src := newBlockingSource()
		svc := service.New(
			service.WithSource(src),
			service.WithQueueSize(1),
			service.WithRefreshInterval(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		defer src.unblock()
		<-src.entered

		Convey("When the same request arrives twice", func() {
			first, err := svc.RequestRefresh(ctx, "poke", true)
			So(err, ShouldBeNil)
			second, err := svc.RequestRefresh(ctx, "poke", true)
			So(err, ShouldBeNil)

			Convey("Then the second is folded into the first", func() {
				So(first.Coalesced, ShouldBeFalse)
				So(second.Coalesced, ShouldBeTrue)
				So(second.ID, ShouldNotEqual, first.ID)
			})

			Convey("Then a request differing only in force is queued on its own", func() {
				cached, err := svc.RequestRefresh(ctx, "poke", false)
				if err == nil {
					So(cached.Coalesced, ShouldBeFalse)
				} else {
					So(errors.Is(err, queue.ErrFull), ShouldBeTrue)
				}
			})

			Convey("Then once the worker picks it up the same request queues again", func() {
				src.unblock()
				// the queued request releases its key before it fetches
				select {
				case <-src.entered:
				case <-time.After(2 * time.Second):
					t.Fatal("queued refresh never reached the feed")
				}

				again, err := svc.RequestRefresh(ctx, "poke", true)
				So(err, ShouldBeNil)
				So(again.Coalesced, ShouldBeFalse)
			})
		})
	})
}

func TestService_TimerRefreshKeepsQueuedRequest(t *testing.T) {
	Convey("Given a queued request that shares its reason with the ticker", t, func() {
		src := newBlockingSource()
		svc := service.New(
			service.WithSource(src),
			service.WithQueueSize(1),
			service.WithRefreshInterval(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		defer src.unblock()
		<-src.entered

		queued, err := svc.RequestRefresh(ctx, "interval", false)
		So(err, ShouldBeNil)
		So(queued.Coalesced, ShouldBeFalse)

		Convey("When a timer refresh with the same reason starts", func() {
			go func() { _ = svc.Refresh(ctx, queue.Request{Reason: "interval"}) }()
			select {
			case <-src.entered:
			case <-time.After(2 * time.Second):
				t.Fatal("timer refresh never reached the feed")
			}

			Convey("Then the queued request still absorbs duplicates", func() {
				again, err := svc.RequestRefresh(ctx, "interval", false)
				So(err, ShouldBeNil)
				So(again.Coalesced, ShouldBeTrue)
			})
		})
	})
}

func TestService_RefreshFailure(t *testing.T) {
	Convey("Given a service whose feed is down", t, func() {
		svc := service.New(
			service.WithSource(failingSource{}),
			service.WithRefreshOnStart(false),
			service.WithRefreshInterval(0),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When refreshing", func() {
			err := svc.Refresh(ctx, queue.Request{Reason: "manual"})

			Convey("Then the error is returned and recorded", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "upstream down")
				So(svc.GetStats()["lastError"], ShouldContainSubstring, "upstream down")
			})

			Convey("And no board is published", func() {
				_, err := svc.Current(ctx)
				So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
			})
		})
	})
}
