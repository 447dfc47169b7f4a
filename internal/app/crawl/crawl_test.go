package crawl

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu    sync.Mutex
	reqs  []model.Request
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (r *recorder) sink(_ context.Context, req model.Request) (model.Result, error) {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	return model.Result{}, r.err
}

func (r *recorder) requests() []model.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Request(nil), r.reqs...)
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

func TestPageNumber(t *testing.T) {
	Convey("Given continuation paths", t, func() {
		cases := []struct {
			path string
			page int
			ok   bool
		}{
			{"/organizations/1/repos?page=2", 2, true},
			{"/orgs/acme/repos?per_page=30&page=17", 17, true},
			{"/orgs/acme/repos", 1, true},
			{"/orgs/acme/repos?page=zero", 0, false},
			{"/orgs/acme/repos?page=0", 0, false},
		}
		for _, c := range cases {
			page, ok := pageNumber(c.path)
			So(ok, ShouldEqual, c.ok)
			So(page, ShouldEqual, c.page)
		}
	})
}

func TestCrawler(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a running crawler", t, func() {
		rec := &recorder{}
		c := New(rec.sink, WithWorkers(2), WithCapacity(8), WithMaxPages(3))
		c.Start(ctx)

		Convey("When a continuation is submitted", func() {
			So(c.Submit("/orgs/acme/repos", "/organizations/1/repos?page=2"), ShouldBeTrue)
			So(c.Drain(ctx), ShouldBeNil)
			So(waitFor(func() bool { return len(rec.requests()) == 1 && c.inflight.Size() == 0 }), ShouldBeTrue)
			So(c.Stop(ctx), ShouldBeNil)

			Convey("Then it is filled as a page of the named set", func() {
				reqs := rec.requests()
				So(len(reqs), ShouldEqual, 1)
				So(reqs[0], ShouldResemble, model.Request{
					Kind:   model.KindSet,
					Path:   "/organizations/1/repos?page=2",
					SetKey: "/orgs/acme/repos",
				})
			})

		})

		Convey("When a continuation is past the page limit", func() {
			ok := c.Submit("/orgs/acme/repos", "/organizations/1/repos?page=4")
			So(c.Stop(ctx), ShouldBeNil)

			Convey("Then it is dropped", func() {
				So(ok, ShouldBeFalse)
				So(rec.calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When a continuation has a malformed page", func() {
			So(c.Submit("/orgs/acme/repos", "/organizations/1/repos?page=x"), ShouldBeFalse)
			So(c.Stop(ctx), ShouldBeNil)
		})

		Convey("When a page fill fails", func() {
			rec.err = errors.New(errors.CodeUnavailable, "upstream down")
			So(c.Submit("/orgs/acme/repos", "/organizations/1/repos?page=2"), ShouldBeTrue)
			So(waitFor(func() bool { return rec.calls.Load() == 1 && c.inflight.Size() == 0 }), ShouldBeTrue)
			So(c.Stop(ctx), ShouldBeNil)

			Convey("Then the page is released for a later cycle", func() {
				So(rec.calls.Load(), ShouldEqual, 1)
				So(c.inflight.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a crawler whose fills are held", t, func() {
		rec := &recorder{gate: make(chan struct{})}
		c := New(rec.sink, WithWorkers(1), WithCapacity(1), WithMaxPages(100))
		c.Start(ctx)

		Convey("When the same page is announced twice", func() {
			first := c.Submit("/orgs/acme/repos", "/organizations/1/repos?page=2")
			second := c.Submit("/orgs/acme/repos", "/organizations/1/repos?page=2")
			close(rec.gate)
			So(waitFor(func() bool { return c.inflight.Size() == 0 }), ShouldBeTrue)
			So(c.Stop(ctx), ShouldBeNil)

			Convey("Then only one fill runs", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(rec.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When more pages arrive than the queue holds", func() {
			accepted := 0
			for i := 2; i < 12; i++ {
				if c.Submit("/orgs/acme/repos", "/organizations/1/repos?page="+strconv.Itoa(i)) {
					accepted++
				}
				time.Sleep(time.Millisecond)
			}
			close(rec.gate)
			So(waitFor(func() bool { return c.inflight.Size() == 0 }), ShouldBeTrue)
			So(c.Stop(ctx), ShouldBeNil)

			Convey("Then the rest are rejected without blocking", func() {
				So(accepted, ShouldBeGreaterThan, 0)
				So(accepted, ShouldBeLessThanOrEqualTo, 3)
				So(int(rec.calls.Load()), ShouldEqual, accepted)
			})
		})
	})
}
