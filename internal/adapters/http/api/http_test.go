package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/okian/battpredict/internal/adapters/artifact"
	"github.com/okian/battpredict/internal/adapters/http/api"
	service "github.com/okian/battpredict/internal/app"
	"github.com/okian/battpredict/internal/domain/model"
	"github.com/okian/battpredict/pkg/logger"
	"github.com/okian/battpredict/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

const linearArtifact = `{
  "kind": "linear",
  "features": ["CALC_DISTANCE", "DURATION_MIN"],
  "linear": {"intercept": 0.5, "coefficients": [0.2, 0.1]}
}`

// Mock implementations for testing
type mockDeps struct {
	predict func(ctx context.Context, req model.Request) (model.Prediction, error)
	info    artifact.Info
	infoErr error
}

func (m *mockDeps) Predict(ctx context.Context, req model.Request) (model.Prediction, error) {
	return m.predict(ctx, req)
}

func (m *mockDeps) Info() (artifact.Info, error) {
	return m.info, m.infoErr
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	opts = append([]api.Option{api.WithLogger(logger.Nop())}, opts...)
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func newLinearService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	return newServiceFor(t, linearArtifact, opts...)
}

func newServiceFor(t *testing.T, artifactJSON string, opts ...service.Option) *service.Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "best_model.json")
	if err := os.WriteFile(path, []byte(artifactJSON), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	opts = append([]service.Option{
		service.WithModelPath(path),
		service.WithLogger(logger.Nop()),
		service.WithMetrics(metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))),
	}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	return svc
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestPredictEndpoint(t *testing.T) {
	Convey("Given the API backed by a linear model", t, func() {
		mux := newMux(newLinearService(t))

		Convey("When a valid request is posted", func() {
			w := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 12.5, "DURATION_MIN": 30.0}`)

			Convey("Then it returns 200 with the prediction", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				body := decode(w)
				So(body, ShouldHaveLength, 1)
				So(body["predicted_battery_used"], ShouldAlmostEqual, 0.5+0.2*12.5+0.1*30, 1e-9)
			})

			Convey("And a request id is generated", func() {
				So(w.Header().Get(api.HeaderRequestID), ShouldHaveLength, 36)
			})
		})

		Convey("When the same request is posted twice", func() {
			body := `{"CALC_DISTANCE": "7.5", "DURATION_MIN": 12}`
			first := do(mux, http.MethodPost, "/predict", body)
			second := do(mux, http.MethodPost, "/predict", body)

			Convey("Then the responses are identical", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Body.String(), ShouldEqual, first.Body.String())
			})
		})

		Convey("When the client sends a request id", func() {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"CALC_DISTANCE": 1, "DURATION_MIN": 1}`))
			req.Header.Set(api.HeaderRequestID, "trace-42")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is echoed back", func() {
				So(w.Header().Get(api.HeaderRequestID), ShouldEqual, "trace-42")
			})
		})

		Convey("When a required field is missing", func() {
			w := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 12.5}`)

			Convey("Then it returns 400 naming both fields", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, "Missing required fields: CALC_DISTANCE and DURATION_MIN")
			})
		})

		Convey("When a value is not numeric", func() {
			w := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": "abc", "DURATION_MIN": 30.0}`)

			Convey("Then it returns 400 with an invalid input message", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				msg, _ := decode(w)["error"].(string)
				So(msg, ShouldStartWith, "Invalid input data: ")
				So(msg, ShouldContainSubstring, "CALC_DISTANCE")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/predict", `CALC_DISTANCE=1`)

			Convey("Then it returns 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldStartWith, "Invalid input data: ")
			})
		})

		Convey("When the body is empty", func() {
			w := do(mux, http.MethodPost, "/predict", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the wrong method is used", func() {
			w := do(mux, http.MethodGet, "/predict", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a small body limit", t, func() {
		mux := newMux(newLinearService(t), api.WithMaxBodyBytes(16))

		Convey("When the body exceeds it", func() {
			w := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 12.5, "DURATION_MIN": 30.0}`)

			Convey("Then it returns 413 with the error envelope", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decode(w)["error"], ShouldNotBeEmpty)
			})
		})
	})

	Convey("Given a service that fails", t, func() {
		mux := newMux(&mockDeps{predict: func(context.Context, model.Request) (model.Prediction, error) {
			return model.Prediction{}, errors.New("model exploded")
		}})

		Convey("When a valid request is posted", func() {
			w := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 1, "DURATION_MIN": 2}`)

			Convey("Then it returns 500 with the cause", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(w)["error"], ShouldEqual, "An error occurred: model exploded")
			})
		})
	})

	Convey("Given a service that panics", t, func() {
		calls := 0
		mux := newMux(&mockDeps{predict: func(context.Context, model.Request) (model.Prediction, error) {
			calls++
			if calls == 1 {
				panic("index out of range")
			}
			return model.Prediction{PredictedBatteryUsed: 1}, nil
		}})

		Convey("When requests keep arriving", func() {
			first := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 1, "DURATION_MIN": 2}`)
			second := do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 1, "DURATION_MIN": 2}`)

			Convey("Then the panic becomes a 500 and serving continues", func() {
				So(first.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(first)["error"], ShouldEqual, "An error occurred: index out of range")
				So(second.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		mux := newMux(&mockDeps{predict: func(context.Context, model.Request) (model.Prediction, error) {
			return model.Prediction{}, errors.New("unused")
		}})

		Convey("When /health is requested", func() {
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then it is always healthy", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w), ShouldResemble, map[string]any{
					"status":  "healthy",
					"message": "Server is running and model is loaded",
				})
			})
		})

		Convey("When /health is posted to", func() {
			w := do(mux, http.MethodPost, "/health", "{}")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestModelEndpoint(t *testing.T) {
	Convey("Given the API backed by a linear model", t, func() {
		mux := newMux(newLinearService(t))

		Convey("When /model is requested", func() {
			w := do(mux, http.MethodGet, "/model", "")

			Convey("Then the artifact metadata is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["kind"], ShouldEqual, "linear")
				So(body["features"], ShouldResemble, []any{"CALC_DISTANCE", "DURATION_MIN"})
				So(body["sha256"], ShouldHaveLength, 64)
			})
		})
	})

	Convey("Given a service without a model", t, func() {
		mux := newMux(&mockDeps{infoErr: service.ErrNotStarted})
		w := do(mux, http.MethodGet, "/model", "")

		Convey("Then /model reports an internal error", func() {
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["error"], ShouldEqual, "An error occurred: service not started")
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	Convey("Given the API after some traffic", t, func() {
		m := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
		mux := newMux(newLinearService(t, service.WithMetrics(m)), api.WithMetrics(m))
		do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 1, "DURATION_MIN": 1}`)
		do(mux, http.MethodPost, "/predict", `{}`)

		Convey("When /metrics is scraped", func() {
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then the custom registry is exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "battpredict_predictor_http_requests_total")
				So(w.Body.String(), ShouldContainSubstring, `battpredict_predictor_prediction_errors_total{kind="missing_field"}`)
			})
		})
	})
}

func TestMetricsSingleManager(t *testing.T) {
	Convey("Given the service and the API sharing one metrics manager", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(metrics.WithPrometheusRegistry(reg))
		overflowing := `{"kind": "linear", "features": ["CALC_DISTANCE", "DURATION_MIN"],
			"linear": {"intercept": 0, "coefficients": [1e308, 1e308]}}`
		mux := newMux(newServiceFor(t, overflowing, service.WithMetrics(m)), api.WithMetrics(m))

		Convey("When a request is rejected and another fails inside the model", func() {
			So(do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/predict", `{"CALC_DISTANCE": 1e308, "DURATION_MIN": 1e308}`).Code,
				ShouldEqual, http.StatusInternalServerError)

			Convey("Then both errors land in that manager's registry", func() {
				n, err := testutil.GatherAndCount(reg, "battpredict_predictor_prediction_errors_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				n, err = testutil.GatherAndCount(reg, "battpredict_predictor_http_requests_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})

			Convey("And /metrics exposes that registry", func() {
				body := do(mux, http.MethodGet, "/metrics", "").Body.String()
				So(body, ShouldContainSubstring, `battpredict_predictor_prediction_errors_total{kind="missing_field"} 1`)
				So(body, ShouldContainSubstring, `battpredict_predictor_prediction_errors_total{kind="internal"} 1`)
			})
		})
	})
}

func TestRegisterWithNilMux(t *testing.T) {
	Convey("Registering on a nil mux panics", t, func() {
		srv := api.NewServer(&mockDeps{}, api.WithLogger(logger.Nop()))
		So(func() { srv.Register(context.Background(), nil) }, ShouldPanic)
	})
}
