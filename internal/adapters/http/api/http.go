// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/battpredict/internal/adapters/artifact"
	"github.com/okian/battpredict/internal/domain/model"
	"github.com/okian/battpredict/pkg/logger"
	"github.com/okian/battpredict/pkg/metrics"
)

// DefaultMaxBodyBytes bounds /predict request bodies when no limit is set.
const DefaultMaxBodyBytes int64 = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Predict runs the model on one validated request.
	Predict(ctx context.Context, req model.Request) (model.Prediction, error)

	// Info describes the loaded artifact.
	Info() (artifact.Info, error)
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	predictHandler *PredictHandler
	healthHandler  *HealthHandler
	modelHandler   *ModelHandler
	logger         logger.Logger
	metrics        *metrics.Manager
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxBodyBytes int64
	logger       logger.Logger
	metrics      *metrics.Manager
}

// WithMaxBodyBytes limits the size of /predict bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the manager handlers and middleware record to and /metrics
// exposes. Pass the same manager the service records to.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *serverOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}
	if o.metrics == nil {
		o.metrics = metrics.Default()
	}

	return &Server{
		predictHandler: NewPredictHandler(deps, o.maxBodyBytes, o.logger, o.metrics),
		healthHandler:  NewHealthHandler(),
		modelHandler:   NewModelHandler(deps),
		logger:         o.logger,
		metrics:        o.metrics,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("POST /predict", s.wrap(s.predictHandler.HandlePredict, "predict"))
	mux.Handle("GET /health", s.wrap(s.healthHandler.HandleHealth, "health"))
	mux.Handle("GET /model", s.wrap(s.modelHandler.HandleModel, "model"))
	mux.Handle("GET /metrics", s.wrap(MetricsHandler(s.metrics), "metrics"))
}

// wrap applies the middleware chain: request id, metrics, panic recovery.
func (s *Server) wrap(h http.HandlerFunc, endpoint string) http.Handler {
	return RequestIDMiddleware(MetricsMiddleware(RecoverMiddleware(h, s.logger, s.metrics), endpoint, s.metrics))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: publicMessage(err)})
}
