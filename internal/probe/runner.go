package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/battpredict/pkg/logger"
)

const (
	missingFieldsMessage = "Missing required fields: CALC_DISTANCE and DURATION_MIN"
	healthMessage        = "Server is running and model is loaded"
)

// Run executes every check against cfg.BaseURL. It returns the report and
// ErrProbeFailed when a check fails; transport errors are recorded as failed
// checks rather than aborting the run.
func Run(ctx context.Context, cfg Config) (Report, error) {
	cfg = cfg.withDefaults()
	log := logger.Named("probe")
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	r := &runner{client: client, report: Report{BaseURL: cfg.BaseURL, StartTime: time.Now()}}

	log.Info(ctx, "starting probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Duration("timeout", cfg.Timeout),
		logger.Int("burst", cfg.Burst),
	)

	r.checkHealth(ctx)
	r.checkPredict(ctx, cfg.Distance, cfg.Duration)
	r.checkMissingField(ctx)
	r.checkInvalidType(ctx)
	r.checkWrongMethod(ctx)
	if cfg.Burst > 0 {
		r.checkBurst(ctx, cfg)
	}

	r.report.Duration = time.Since(r.report.StartTime)
	r.report.Requests = int(r.requests.Load())

	for _, c := range r.report.Checks {
		fields := []logger.Field{logger.String("check", c.Name), logger.Any("passed", c.Passed)}
		if c.Detail != "" {
			fields = append(fields, logger.String("detail", c.Detail))
		}
		if c.Passed {
			log.Info(ctx, "check passed", fields...)
		} else {
			log.Warn(ctx, "check failed", fields...)
		}
	}

	if failed := r.report.Failed(); len(failed) > 0 {
		return r.report, fmt.Errorf("%w: %d of %d checks failed", ErrProbeFailed, len(failed), len(r.report.Checks))
	}
	return r.report, nil
}

type runner struct {
	client   *HTTPClient
	report   Report
	requests atomic.Int64
}

func (r *runner) record(name string, err error) {
	c := Check{Name: name, Passed: err == nil}
	if err != nil {
		c.Detail = err.Error()
	}
	r.report.Checks = append(r.report.Checks, c)
}

func (r *runner) get(ctx context.Context, path string) (response, error) {
	r.requests.Add(1)
	return r.client.Get(ctx, path)
}

func (r *runner) post(ctx context.Context, path string, body []byte) (response, error) {
	r.requests.Add(1)
	return r.client.Post(ctx, path, body)
}

func (r *runner) checkHealth(ctx context.Context) {
	resp, err := r.get(ctx, "/health")
	if err == nil {
		err = verifyHealth(resp)
	}
	r.record("health", err)
}

func (r *runner) checkPredict(ctx context.Context, distance, duration float64) {
	body := predictBody(distance, duration)

	first, err := r.post(ctx, "/predict", body)
	if err != nil {
		r.record("predict", err)
		return
	}
	value, err := verifyPrediction(first)
	r.record("predict", err)
	if err != nil {
		return
	}
	r.report.Prediction = value

	second, err := r.post(ctx, "/predict", body)
	if err == nil {
		err = verifySame(first, second)
	}
	r.record("predict_idempotent", err)
}

func (r *runner) checkMissingField(ctx context.Context) {
	resp, err := r.post(ctx, "/predict", []byte(`{"CALC_DISTANCE": 12.5}`))
	if err == nil {
		err = verifyError(resp, http.StatusBadRequest, func(msg string) bool { return msg == missingFieldsMessage })
	}
	r.record("missing_field", err)
}

func (r *runner) checkInvalidType(ctx context.Context) {
	resp, err := r.post(ctx, "/predict", predictBody("abc", 30.0))
	if err == nil {
		err = verifyError(resp, http.StatusBadRequest, func(msg string) bool { return msg != "" })
	}
	r.record("invalid_type", err)
}

func (r *runner) checkWrongMethod(ctx context.Context) {
	resp, err := r.get(ctx, "/predict")
	if err == nil && resp.status != http.StatusMethodNotAllowed {
		err = fmt.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.status)
	}
	r.record("wrong_method", err)
}

// checkBurst sends cfg.Burst identical predictions from cfg.Workers workers
// and expects every answer to match.
func (r *runner) checkBurst(ctx context.Context, cfg Config) {
	body := predictBody(cfg.Distance, cfg.Duration)
	jobs := make(chan struct{}, cfg.Workers*2)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		values   = make(map[float64]int)
	)

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				resp, err := r.post(ctx, "/predict", body)
				var v float64
				if err == nil {
					v, err = verifyPrediction(resp)
				}
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if err == nil {
					values[v]++
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Burst; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- struct{}{}:
			}
		}
	}()

	wg.Wait()

	err := firstErr
	if err == nil && len(values) > 1 {
		err = fmt.Errorf("burst produced %d distinct predictions", len(values))
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	r.record("burst", err)
}

// unmarshalJSON decodes a response body into v.
func unmarshalJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON response %q: %w", truncate(data), err)
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
