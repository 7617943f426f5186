package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/audax/internal/adapters/feed"
	"github.com/okian/audax/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const doc = `{"riders":[
  {"id":"A1","name":"Ada","status":"in_progress","distance":193,
   "checkpoints":[{"name":"Start","time":"Sunday 04:00"},{"name":"Boston","time":"Sunday 09:00"}]},
  {"id":"LA1","name":"Lin","status":"not_started","checkpoints":[]}
]}`

func TestDecode(t *testing.T) {
	Convey("Given feed documents", t, func() {
		Convey("When the document is an object", func() {
			riders, err := feed.Decode([]byte(doc))

			Convey("Then riders and checkpoints are decoded in order", func() {
				So(err, ShouldBeNil)
				So(len(riders), ShouldEqual, 2)
				So(riders[0].ID, ShouldEqual, "A1")
				So(riders[0].ReportedKm, ShouldEqual, 193)
				So(riders[0].Checkpoints[1], ShouldResemble, model.Checkpoint{Name: "Boston", Time: "Sunday 09:00"})
				So(riders[1].Checkpoints, ShouldBeEmpty)
			})
		})

		Convey("When the document is a bare array", func() {
			riders, err := feed.Decode([]byte(` [{"id":"B2"}] `))
			So(err, ShouldBeNil)
			So(riders[0].ID, ShouldEqual, "B2")
		})

		Convey("When the document is broken", func() {
			for _, raw := range []string{"", "{", `{"other":[]}`, "[1,2]", "null"} {
				_, err := feed.Decode([]byte(raw))
				So(errors.Is(err, feed.ErrDecode), ShouldBeTrue)
			}
		})
	})
}

func TestFileSource(t *testing.T) {
	Convey("Given a feed file", t, func() {
		path := filepath.Join(t.TempDir(), "riders.json")
		So(os.WriteFile(path, []byte(doc), 0o600), ShouldBeNil)

		Convey("Then the client reads it", func() {
			c := feed.NewClient(feed.NewFileSource(path))
			riders, err := c.Riders(context.Background())
			So(err, ShouldBeNil)
			So(len(riders), ShouldEqual, 2)
		})

		Convey("When the file is missing", func() {
			c := feed.NewClient(feed.NewFileSource(filepath.Join(t.TempDir(), "nope.json")))
			_, err := c.Riders(context.Background())
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := feed.NewFileSource(path).Fetch(ctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestHTTPSourceAndCache(t *testing.T) {
	Convey("Given an upstream HTTP server", t, func() {
		var hits atomic.Int32
		var status atomic.Int32
		status.Store(http.StatusOK)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(int(status.Load()))
			_, _ = w.Write([]byte(doc))
		}))
		defer srv.Close()

		Convey("When the TTL has not passed", func() {
			c := feed.NewClient(feed.NewHTTPSource(srv.URL), feed.WithTTL(time.Hour))
			_, err1 := c.Riders(context.Background())
			riders, err2 := c.Riders(context.Background())

			Convey("Then the document is fetched once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(len(riders), ShouldEqual, 2)
				So(hits.Load(), ShouldEqual, 1)
			})

			Convey("Then invalidation forces a fetch", func() {
				c.Invalidate()
				_, err := c.Riders(context.Background())
				So(err, ShouldBeNil)
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the TTL expires", func() {
			c := feed.NewClient(feed.NewHTTPSource(srv.URL), feed.WithTTL(20*time.Millisecond))
			_, _ = c.Riders(context.Background())
			time.Sleep(40 * time.Millisecond)
			_, err := c.Riders(context.Background())
			So(err, ShouldBeNil)
			So(hits.Load(), ShouldEqual, 2)
		})

		Convey("When caching is disabled", func() {
			c := feed.NewClient(feed.NewHTTPSource(srv.URL, feed.WithTimeout(time.Second)), feed.WithTTL(0))
			_, _ = c.Riders(context.Background())
			_, _ = c.Riders(context.Background())
			So(hits.Load(), ShouldEqual, 2)
		})

		Convey("When upstream fails", func() {
			status.Store(http.StatusBadGateway)
			c := feed.NewClient(feed.NewHTTPSource(srv.URL), feed.WithTTL(time.Hour))
			_, err := c.Riders(context.Background())

			Convey("Then the error is reported and not cached", func() {
				So(errors.Is(err, feed.ErrUnexpectedStatus), ShouldBeTrue)
				status.Store(http.StatusOK)
				riders, err := c.Riders(context.Background())
				So(err, ShouldBeNil)
				So(len(riders), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a shared cache", t, func() {
		cache := feed.NewCache(4)
		calls := 0
		load := func(context.Context) ([]model.Rider, error) {
			calls++
			return []model.Rider{{ID: "A1"}}, nil
		}

		_, hit1, _ := cache.Get(context.Background(), "k", time.Hour, load)
		_, hit2, _ := cache.Get(context.Background(), "k", time.Hour, load)
		So(hit1, ShouldBeFalse)
		So(hit2, ShouldBeTrue)
		So(calls, ShouldEqual, 1)
		So(cache.Len(), ShouldEqual, 1)
		So(cache.Invalidate("k"), ShouldBeTrue)
		So(cache.Len(), ShouldEqual, 0)
	})

	Convey("Given a client without a source", t, func() {
		_, err := feed.NewClient(nil).Riders(context.Background())
		So(errors.Is(err, feed.ErrNoSource), ShouldBeTrue)
	})
}
