package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/battpredict/internal/adapters/artifact"
	service "github.com/okian/battpredict/internal/app"
	"github.com/okian/battpredict/internal/config"
	"github.com/okian/battpredict/internal/domain/model"
	"github.com/okian/battpredict/internal/probe"
	"github.com/okian/battpredict/pkg/logger"
	"github.com/okian/battpredict/pkg/metrics"
)

const linearArtifact = `{
  "kind": "linear",
  "version": 4,
  "target": "BATTERY_USED",
  "features": ["CALC_DISTANCE", "DURATION_MIN"],
  "linear": {"intercept": 0.5, "coefficients": [0.2, 0.1]}
}`

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func clearEnv() {
	for _, k := range []string{"CONFIG", "ADDR", "MODEL_PATH", "MAX_BODY_BYTES", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "SHUTDOWN_TIMEOUT_MS"} {
		_ = os.Unsetenv(config.EnvPrefix + k)
	}
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "best_model.json")
	if err := os.WriteFile(path, []byte(linearArtifact), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it exposes every subcommand and the global flags", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			for _, n := range []string{"serve", "predict", "inspect", "probe"} {
				convey.So(names[n], convey.ShouldBeTrue)
			}
			convey.So(root.PersistentFlags().Lookup("config"), convey.ShouldNotBeNil)
			convey.So(root.PersistentFlags().ShorthandLookup("c"), convey.ShouldNotBeNil)
			convey.So(root.PersistentFlags().Lookup("model"), convey.ShouldNotBeNil)
		})
	})
}

func TestInspectCommand(t *testing.T) {
	convey.Convey("Given an artifact on disk", t, func() {
		clearEnv()
		path := writeArtifact(t)

		convey.Convey("When inspecting it", func() {
			out, err := execute("inspect", "--model", path)

			convey.Convey("Then its metadata is printed as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var info artifact.Info
				convey.So(json.Unmarshal([]byte(out), &info), convey.ShouldBeNil)
				convey.So(string(info.Kind), convey.ShouldEqual, "linear")
				convey.So(info.Version, convey.ShouldEqual, 4)
				convey.So(info.Target, convey.ShouldEqual, "BATTERY_USED")
				convey.So(info.Path, convey.ShouldEqual, path)
			})
		})

		convey.Convey("When the model path comes from a config file", func() {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			convey.So(os.WriteFile(cfgPath, []byte("model_path: "+path+"\n"), 0o600), convey.ShouldBeNil)

			out, err := execute("inspect", "-c", cfgPath)

			convey.Convey("Then the configured artifact is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"kind": "linear"`)
			})
		})

		convey.Convey("When the artifact is missing", func() {
			_, err := execute("inspect", "-m", filepath.Join(t.TempDir(), "missing.json"))
			convey.So(errors.Is(err, artifact.ErrNotFound), convey.ShouldBeTrue)
		})
	})
}

func TestPredictCommand(t *testing.T) {
	convey.Convey("Given an artifact on disk", t, func() {
		clearEnv()
		path := writeArtifact(t)

		convey.Convey("When predicting from flags", func() {
			out, err := execute("predict", "-m", path, "--distance", "12.5", "--duration", "30")

			convey.Convey("Then the prediction is printed as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var pred model.Prediction
				convey.So(json.Unmarshal([]byte(out), &pred), convey.ShouldBeNil)
				convey.So(pred.PredictedBatteryUsed, convey.ShouldAlmostEqual, 0.5+0.2*12.5+0.1*30, 1e-9)
			})
		})

		convey.Convey("When a flag is not numeric", func() {
			_, err := execute("predict", "-m", path, "--distance", "far", "--duration", "30")

			convey.Convey("Then the request validation error is returned", func() {
				var ve *model.ValidationError
				convey.So(errors.As(err, &ve), convey.ShouldBeTrue)
				convey.So(ve.Kind, convey.ShouldEqual, model.KindInvalidType)
			})
		})

		convey.Convey("When a flag is missing", func() {
			_, err := execute("predict", "-m", path, "--distance", "1")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the artifact is missing", func() {
			_, err := execute("predict", "-m", filepath.Join(t.TempDir(), "none.json"), "--distance", "1", "--duration", "2")

			convey.Convey("Then the load error is returned", func() {
				convey.So(errors.Is(err, service.ErrModelLoad), convey.ShouldBeTrue)
			})
		})
	})
}

func TestServeStartupFailure(t *testing.T) {
	convey.Convey("Given a missing artifact", t, func() {
		clearEnv()
		_ = os.Setenv(config.EnvPrefix+"ADDR", "127.0.0.1:0")
		defer clearEnv()

		convey.Convey("When serving", func() {
			_, err := execute("serve", "-m", filepath.Join(t.TempDir(), "none.json"))

			convey.Convey("Then it fails before listening", func() {
				convey.So(errors.Is(err, service.ErrModelLoad), convey.ShouldBeTrue)
				convey.So(errors.Is(err, artifact.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given a started service and a listener", t, func() {
		clearEnv()
		cfg := config.New()
		cfg.ShutdownTimeoutMS = 2000

		m := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
		svc := service.New(
			service.WithModelPath(writeArtifact(t)),
			service.WithLogger(logger.Nop()),
			service.WithMetrics(m),
		)
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		baseURL := "http://" + ln.Addr().String()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serve(ctx, cfg, svc, m, ln) }()

		convey.Convey("When the server is probed", func() {
			report, err := probe.Run(context.Background(), probe.Config{BaseURL: baseURL, Distance: 12.5, Duration: 30, Burst: 8})

			convey.Convey("Then every check passes", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.Failed(), convey.ShouldBeEmpty)
			})

			convey.Convey("And the docs are served alongside the API", func() {
				resp, err := http.Get(baseURL + "/openapi.yaml")
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("And /metrics shows the service and API counters together", func() {
				resp, err := http.Get(baseURL + "/metrics")
				convey.So(err, convey.ShouldBeNil)
				body, err := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(body), convey.ShouldContainSubstring, `battpredict_predictor_predictions_total{model_kind="linear"}`)
				convey.So(string(body), convey.ShouldContainSubstring, `battpredict_predictor_prediction_errors_total{kind="missing_field"}`)
				convey.So(string(body), convey.ShouldContainSubstring, "battpredict_predictor_system_goroutine_count")
			})

			convey.Convey("And the probe command reports success", func() {
				out, err := execute("probe", "--url", baseURL)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"name": "predict_idempotent"`)
			})
		})

		convey.Reset(func() {
			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("serve returned %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Error("server did not shut down")
			}
		})
	})
}
