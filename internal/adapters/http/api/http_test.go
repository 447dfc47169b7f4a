package api_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/adapters/http/api"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/internal/domain/types"
	"github.com/okian/cachegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDispatcher answers by kind and remembers what it was asked.
type mockDispatcher struct {
	mu      sync.Mutex
	last    model.Request
	results map[model.Kind]model.Result
	err     error
}

func (m *mockDispatcher) Dispatch(_ context.Context, req model.Request) (model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = req
	if m.err != nil {
		return model.Result{}, m.err
	}
	return m.results[req.Kind], nil
}

func (m *mockDispatcher) lastRequest() model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer(t *testing.T) {
	_ = logger.Init()

	Convey("Given an API server over a mock dispatcher", t, func() {
		deps := &mockDispatcher{results: map[model.Kind]model.Result{
			model.KindKey: {Document: []byte(`{"login":"acme","id":7}`)},
			model.KindSet: {Members: [][]byte{[]byte(`{"id":1}`), []byte(`{"id":2}`)}},
			model.KindRank: {Rows: []types.Row{
				{Name: "acme/c", Score: 2, Value: int64(2)},
				{Name: "acme/b", Score: 5, Value: int64(5)},
			}},
			model.KindProxy: {Document: []byte(`{"rate":{}}`), Status: http.StatusOK},
		}}
		stats := &mockStatsProvider{stats: map[string]interface{}{"ready": true}}
		h := api.NewServer(deps, stats).Handler()

		Convey("When the health check is probed", func() {
			w := serve(h, "/healthcheck")

			Convey("Then it answers Live without dispatching", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, "Live")
				So(deps.lastRequest().Kind, ShouldEqual, model.Kind(0))
			})
		})

		Convey("When the root document is requested", func() {
			w := serve(h, "/")

			Convey("Then it is a pretty-printed key read", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastRequest(), ShouldResemble, model.Request{Kind: model.KindKey, Path: "/"})
				So(w.Body.String(), ShouldEqual, "{\n  \"login\": \"acme\",\n  \"id\": 7\n}\n")
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			})
		})

		Convey("When an organization is requested", func() {
			serve(h, "/orgs/acme")
			So(deps.lastRequest(), ShouldResemble, model.Request{Kind: model.KindKey, Path: "/orgs/acme"})
		})

		Convey("When a listing page is requested", func() {
			w := serve(h, "/orgs/acme/repos?page=2")

			Convey("Then the page path is dispatched as a set read", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastRequest(), ShouldResemble, model.Request{Kind: model.KindSet, Path: "/orgs/acme/repos?page=2"})

				var items []map[string]int
				So(json.Unmarshal(w.Body.Bytes(), &items), ShouldBeNil)
				So(len(items), ShouldEqual, 2)
			})
		})

		Convey("When an empty listing comes back", func() {
			deps.results[model.KindSet] = model.Result{}
			w := serve(h, "/orgs/acme/members")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("When a view is requested", func() {
			w := serve(h, "/view/bottom/2/forks")

			Convey("Then rows are name and value pairs", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastRequest().Kind, ShouldEqual, model.KindRank)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `[["acme/c",2],["acme/b",5]]`)
			})
		})

		Convey("When a view has no data yet", func() {
			deps.results[model.KindRank] = model.Result{NotReady: true}
			w := serve(h, "/view/bottom/1/stars")

			Convey("Then the notice is returned as text with 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, model.NotReadyMessage)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
			})
		})

		Convey("When any other path is requested", func() {
			w := serve(h, "/repos/acme/a/issues?state=open")

			Convey("Then it is proxied with its query", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastRequest(), ShouldResemble, model.Request{Kind: model.KindProxy, Path: "/repos/acme/a/issues?state=open"})
				So(w.Body.String(), ShouldEqual, `{"rate":{}}`)
			})
		})

		Convey("When stats are requested", func() {
			w := serve(h, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ready":true`)
		})

		Convey("When metrics are scraped", func() {
			serve(h, "/healthcheck")
			w := serve(h, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "healthcheck")
		})

		Convey("When a request carries an id", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
		})

		Convey("When a request has no id", func() {
			w := serve(h, "/healthcheck")
			So(len(w.Header().Get(api.RequestIDHeader)), ShouldEqual, 36)
		})

		Convey("When the method is not GET", func() {
			req := httptest.NewRequest(http.MethodPost, "/orgs/acme", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a view whose rows cannot be encoded", t, func() {
		deps := &mockDispatcher{results: map[model.Kind]model.Result{
			model.KindRank: {Rows: []types.Row{{Name: "acme/bad", Score: math.NaN(), Value: math.NaN()}}},
		}}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler()

		Convey("When the view is requested", func() {
			w := serve(h, "/view/bottom/1/forks")

			Convey("Then the reply is a 500 with a body, never an empty 200", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "failed to encode response")
			})
		})
	})
}

func TestServerErrors(t *testing.T) {
	_ = logger.Init()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid input", errors.New(errors.CodeInvalidInput, "bad view"), http.StatusBadRequest, string(errors.CodeInvalidInput)},
		{"malformed upstream payload", errors.New(errors.CodeSchemaFailed, "not an array"), http.StatusBadGateway, string(errors.CodeSchemaFailed)},
		{"upstream unavailable", errors.New(errors.CodeUnavailable, "GET /orgs/acme: status 502"), http.StatusServiceUnavailable, string(errors.CodeUnavailable)},
		{"caller timeout", errors.New(errors.CodeTimeout, "gave up waiting"), http.StatusServiceUnavailable, string(errors.CodeTimeout)},
	}

	for _, c := range cases {
		Convey("Given the dispatcher fails with "+c.name, t, func() {
			deps := &mockDispatcher{err: c.err}
			h := api.NewServer(deps, &mockStatsProvider{}).Handler()

			Convey("Then each cached route maps it to the same status and body", func() {
				for _, target := range []string{"/orgs/acme", "/orgs/acme/repos", "/view/bottom/1/forks", "/rate_limit"} {
					w := serve(h, target)
					So(w.Code, ShouldEqual, c.status)

					var body errors.ErrorResponse
					So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
					So(body.Code, ShouldEqual, c.code)
					So(body.Message, ShouldNotBeEmpty)
				}
			})
		})
	}
}
