package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/okian/battpredict/internal/domain/model"
	"github.com/okian/battpredict/pkg/logger"
	"github.com/okian/battpredict/pkg/metrics"
)

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps         Dependencies
	maxBodyBytes int64
	logger       logger.Logger
	metrics      *metrics.Manager
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies, maxBodyBytes int64, l logger.Logger, m *metrics.Manager) *PredictHandler {
	return &PredictHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: l, metrics: m}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.metrics.RecordPredictionError(metrics.KindMalformed)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, WrapKind(op, ErrPayloadTooLarge, err))
			return
		}
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	req, err := model.ParseRequest(body)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			h.metrics.RecordPredictionError(string(ve.Kind))
		}
		h.logger.Debug(ctx, "rejected prediction request", logger.Error(err))
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	pred, err := h.deps.Predict(ctx, req)
	if err != nil {
		h.logger.Error(ctx, "prediction failed", logger.Error(err))
		writeError(w, WrapKind(op, ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, pred)
}
