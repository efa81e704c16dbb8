// Package service provides the prediction service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/battpredict/internal/adapters/artifact"
	"github.com/okian/battpredict/internal/domain/frame"
	"github.com/okian/battpredict/internal/domain/model"
	"github.com/okian/battpredict/internal/domain/regression"
	"github.com/okian/battpredict/pkg/logger"
	"github.com/okian/battpredict/pkg/metrics"
)

// DefaultModelPath is the artifact loaded when no path is configured.
const DefaultModelPath = "best_model.json"

// Service serves predictions from a single immutable model artifact.
type Service struct {
	mu sync.RWMutex

	// Configuration
	modelPath string

	// Model, set once by Start or WithModel
	predictor regression.Predictor
	info      artifact.Info

	// State
	started bool

	metrics *metrics.Manager
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithModelPath sets the path of the artifact loaded by Start.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if strings.TrimSpace(path) != "" {
			s.modelPath = path
		}
	}
}

// WithModel uses an already loaded artifact instead of reading one from disk.
func WithModel(loaded *artifact.Loaded) Option {
	return func(s *Service) {
		if loaded != nil && loaded.Predictor != nil {
			s.predictor = loaded.Predictor
			s.info = loaded.Info
		}
	}
}

// WithMetrics sets the metrics manager. The global manager is used otherwise.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelPath: DefaultModelPath,
		metrics:   metrics.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads the model artifact, unless one was supplied, and checks that
// every feature it needs is provided by a prediction request.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	var loadMs float64
	if s.predictor == nil {
		s.logger.Info(ctx, "loading model", logger.String("path", s.modelPath))

		start := time.Now()
		loaded, err := artifact.Load(ctx, s.modelPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrModelLoad, err)
		}
		s.predictor = loaded.Predictor
		s.info = loaded.Info
		loadMs = durationMs(start)

		s.logger.Info(ctx, "model loaded",
			logger.String("kind", string(s.info.Kind)),
			logger.String("sha256", s.info.SHA256),
			logger.Float64("took_ms", loadMs),
		)
	}

	if err := checkFeatures(s.predictor.Features()); err != nil {
		s.predictor = nil
		return err
	}

	s.metrics.SetModel(
		string(s.predictor.Kind()),
		strconv.Itoa(s.info.Version),
		s.info.SHA256,
		len(s.predictor.Features()),
		loadMs,
	)

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.String("kind", string(s.predictor.Kind())),
		logger.Any("features", s.predictor.Features()),
	)

	return nil
}

// Stop marks the service as stopped. The artifact holds no resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped")
}

// Started reports whether Start completed successfully.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Info returns metadata about the loaded artifact.
func (s *Service) Info() (artifact.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return artifact.Info{}, ErrNotStarted
	}
	return s.info, nil
}

// Predict runs the model on a single validated request.
func (s *Service) Predict(ctx context.Context, req model.Request) (model.Prediction, error) {
	s.mu.RLock()
	p, started := s.predictor, s.started
	s.mu.RUnlock()

	if !started {
		return model.Prediction{}, ErrNotStarted
	}

	start := time.Now()

	f, err := frame.New(model.Columns(), req.Values())
	if err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrPrediction, err))
	}

	out, err := p.Predict(ctx, f)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrPrediction, err))
	}
	if len(out) == 0 {
		return s.fail(ctx, fmt.Errorf("%w: model returned no values", ErrPrediction))
	}

	value := out[0]
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return s.fail(ctx, fmt.Errorf("%w: model returned non-finite value %v", ErrPrediction, value))
	}

	took := durationMs(start)
	s.metrics.RecordPrediction(string(p.Kind()), took, value)
	s.logger.Debug(ctx, "prediction served",
		logger.Float64("calc_distance", req.CalcDistance),
		logger.Float64("duration_min", req.DurationMin),
		logger.Float64("predicted_battery_used", value),
		logger.Float64("latency_ms", took),
	)

	return model.Prediction{PredictedBatteryUsed: value}, nil
}

func (s *Service) fail(ctx context.Context, err error) (model.Prediction, error) {
	s.metrics.RecordPredictionError(metrics.KindInternal)
	s.logger.Error(ctx, "prediction failed", logger.Error(err))
	return model.Prediction{}, err
}

// checkFeatures rejects artifacts that need a column the request does not carry.
func checkFeatures(features []string) error {
	available := make(map[string]struct{}, len(model.Columns()))
	for _, c := range model.Columns() {
		available[c] = struct{}{}
	}

	var missing []string
	for _, f := range features {
		if _, ok := available[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompatibleModel, strings.Join(missing, ", "))
	}
	return nil
}

func durationMs(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000
}
