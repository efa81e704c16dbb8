package api

import (
	"net/http"
)

// ModelHandler serves metadata about the loaded artifact.
type ModelHandler struct {
	deps Dependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps Dependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// HandleModel handles GET /model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, _ *http.Request) {
	const op = "api.model"
	info, err := h.deps.Info()
	if err != nil {
		writeError(w, WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}
