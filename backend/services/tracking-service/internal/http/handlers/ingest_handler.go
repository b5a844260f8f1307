package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/service"
)

// MaxIngestBodyBytes bounds the request body. Frames are at most a few KiB,
// hex doubles that.
const MaxIngestBodyBytes = 64 << 10

// IngestHandler accepts hex-encoded frames relayed by the ingest gateway.
type IngestHandler struct {
	service  *service.IngestService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewIngestHandler returns handler.
func NewIngestHandler(svc *service.IngestService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ServeHTTP handles POST /positions/ingest.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var input service.IngestInput
	body := http.MaxBytesReader(w, r.Body, MaxIngestBodyBytes)
	if err := json.NewDecoder(body).Decode(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := h.invalid(input); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.service.Ingest(r.Context(), input)
	if errors.Is(err, service.ErrInvalidHex) {
		writeError(w, http.StatusBadRequest, "invalid hex")
		return
	}
	if err != nil {
		h.logger.Error("failed to store position", zap.Error(err), zap.String("source_ip", input.SourceIP))
		writeError(w, http.StatusInternalServerError, "failed to store position")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *IngestHandler) invalid(input service.IngestInput) string {
	err := h.validate.Struct(input)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return "missing raw_hex"
	}
	return "invalid hex"
}
