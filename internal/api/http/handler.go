package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
	"github.com/veranemoloko/vision-downloader/internal/validation"
)

const maxRequestBody = 1 << 20

// RunServiceI defines the interface for run-related business logic.
type RunServiceI interface {
	Submit(ctx context.Context, req *domain.CreateRunRequest) (*domain.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Run, error)
}

// RunHandler handles HTTP requests for download runs.
type RunHandler struct {
	runService RunServiceI
	logger     *slog.Logger
}

// NewRunHandler creates a new RunHandler with the provided service and logger.
func NewRunHandler(runService RunServiceI, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runService: runService,
		logger:     logger,
	}
}

// CreateRun handles POST /runs. The run is processed in the background.
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.Validate(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.runService.Submit(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, errpkg.ErrInvalidSelection):
			h.logger.Warn("selection rejected", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, errpkg.ErrServiceShutdown):
			writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		default:
			h.logger.Error("failed to submit run", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": run.ID,
		"status": run.Status,
	})
}

// GetRun handles GET /runs/{runID}.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	run, err := h.runService.Get(ctx, runID)
	if errors.Is(err, errpkg.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, domain.NewRunResponse(run))
}

// ListDataTypes handles GET /datatypes.
func (h *RunHandler) ListDataTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.DataTypes())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
