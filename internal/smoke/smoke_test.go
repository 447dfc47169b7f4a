package smoke_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/cachegate/internal/adapters/http/api"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/internal/domain/types"
	"github.com/okian/cachegate/internal/smoke"
	"github.com/okian/cachegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type stubGateway struct {
	rows     []types.Row
	notReady bool
}

func (s *stubGateway) Dispatch(_ context.Context, req model.Request) (model.Result, error) {
	switch req.Kind {
	case model.KindKey:
		return model.Result{Document: []byte(`{"login":"acme"}`)}, nil
	case model.KindSet:
		return model.Result{Members: [][]byte{[]byte(`{"id":1}`)}}, nil
	case model.KindRank:
		return model.Result{Rows: s.rows, NotReady: s.notReady}, nil
	default:
		return model.Result{Document: []byte(`{}`), Status: http.StatusOK}, nil
	}
}

type noStats struct{}

func (noStats) GetStats() map[string]interface{} { return map[string]interface{}{} }

func config(url, report string) *smoke.Config {
	return &smoke.Config{
		BaseURL: url,
		Org:     "acme",
		TopN:    3,
		Rounds:  2,
		Workers: 4,
		Timeout: 5 * time.Second,
		Report:  report,
	}
}

func TestRun(t *testing.T) {
	_ = logger.Init()

	Convey("Given a gateway with well ordered views", t, func() {
		gw := &stubGateway{rows: []types.Row{
			{Name: "acme/c", Score: 2, Value: int64(2)},
			{Name: "acme/b", Score: 5, Value: int64(5)},
			{Name: "acme/a", Score: 5, Value: int64(5)},
		}}
		srv := httptest.NewServer(api.NewServer(gw, noStats{}).Handler())
		defer srv.Close()
		reportFile := filepath.Join(t.TempDir(), "out", "report.json")

		Convey("When the smoke run completes", func() {
			report, err := smoke.Run(context.Background(), config(srv.URL, reportFile))

			Convey("Then every check passes and the report is written", func() {
				So(err, ShouldBeNil)
				So(report.Failed, ShouldEqual, 0)
				So(report.Total, ShouldEqual, 2*len(smoke.Plan("acme", 3)))

				data, err := os.ReadFile(reportFile)
				So(err, ShouldBeNil)
				var decoded smoke.Report
				So(json.Unmarshal(data, &decoded), ShouldBeNil)
				So(decoded.Passed, ShouldEqual, report.Passed)
			})
		})
	})

	Convey("Given a gateway whose views are not built yet", t, func() {
		srv := httptest.NewServer(api.NewServer(&stubGateway{notReady: true}, noStats{}).Handler())
		defer srv.Close()

		Convey("Then the notice is accepted", func() {
			_, err := smoke.Run(context.Background(), config(srv.URL, ""))
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a gateway that breaks the tie order", t, func() {
		gw := &stubGateway{rows: []types.Row{
			{Name: "acme/a", Score: 5, Value: int64(5)},
			{Name: "acme/b", Score: 5, Value: int64(5)},
		}}
		srv := httptest.NewServer(api.NewServer(gw, noStats{}).Handler())
		defer srv.Close()

		Convey("Then the view checks fail", func() {
			report, err := smoke.Run(context.Background(), config(srv.URL, ""))
			So(err, ShouldNotBeNil)
			So(report.Failed, ShouldEqual, 2*4)
		})
	})

	Convey("Given nothing is listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then the run stops at the health check", func() {
			report, err := smoke.Run(context.Background(), config(url, ""))
			So(err, ShouldNotBeNil)
			So(report, ShouldBeNil)
		})
	})
}

func TestCheckOrder(t *testing.T) {
	Convey("Given ranked rows", t, func() {
		So(smoke.CheckOrder(nil, 1), ShouldBeNil)
		So(smoke.CheckOrder([]types.Row{{Name: "b", Score: 1}, {Name: "a", Score: 1}, {Name: "z", Score: 2}}, 3), ShouldBeNil)
		So(smoke.CheckOrder([]types.Row{{Name: "a", Score: 2}, {Name: "b", Score: 1}}, 3), ShouldNotBeNil)
		So(smoke.CheckOrder([]types.Row{{Name: "a", Score: 1}, {Name: "b", Score: 1}}, 3), ShouldNotBeNil)
		So(smoke.CheckOrder([]types.Row{{Name: "a"}, {Name: "a"}}, 1), ShouldNotBeNil)
	})
}
