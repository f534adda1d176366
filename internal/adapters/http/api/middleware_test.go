package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorClass(t *testing.T) {
	Convey("Given response statuses", t, func() {
		cases := map[int]string{
			http.StatusOK:                  "",
			http.StatusAccepted:            "",
			http.StatusBadRequest:          "client_error",
			http.StatusNotFound:            "not_found",
			http.StatusMethodNotAllowed:    "client_error",
			http.StatusInternalServerError: "server_error",
			http.StatusBadGateway:          "upstream",
			http.StatusServiceUnavailable:  "not_ready",
			http.StatusGatewayTimeout:      "timeout",
		}
		for status, class := range cases {
			So(errorClass(status), ShouldEqual, class)
		}
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented handler on a pattern route", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /things/{id}", instrument(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		Convey("When it is called", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/7", http.NoBody))

			Convey("Then the handler's status reaches the client", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
			})
		})

		Convey("When the recorder is unwrapped", func() {
			w := httptest.NewRecorder()
			rec := &statusRecorder{ResponseWriter: w}
			So(rec.Unwrap(), ShouldEqual, w)
		})
	})
}
