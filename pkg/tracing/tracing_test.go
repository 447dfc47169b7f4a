package tracing

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabled(t *testing.T) {
	Convey("Given tracing is disabled", t, func() {
		shutdown, err := Init(context.Background(), Config{Enabled: false})

		Convey("Then a no-op shutdown is returned", func() {
			So(err, ShouldBeNil)
			So(shutdown(context.Background()), ShouldBeNil)
		})
	})
}

func TestStartSpan(t *testing.T) {
	Convey("Given an in-memory span recorder", t, func() {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		defer otel.SetTracerProvider(prev)

		Convey("When a span ends with an error", func() {
			_, span := StartSpan(context.Background(), "cache.fill")
			End(span, errors.New("upstream down"))

			Convey("Then it is recorded with the error status", func() {
				spans := recorder.Ended()
				So(len(spans), ShouldEqual, 1)
				So(spans[0].Name(), ShouldEqual, "cache.fill")
				So(spans[0].Status().Description, ShouldEqual, "upstream down")
			})
		})
	})
}
