package certificate

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	apphttp "github.com/hatchmark/hatchmark/pkg/app/http"
	"github.com/hatchmark/hatchmark/pkg/phash"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the certificate HTTP endpoints
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new certificate handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type verifyRequest struct {
	Hash string `json:"hash" validate:"required"`
}

// Verify handles POST /verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) error {
	var req verifyRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	report, err := h.service.Verify(r.Context(), phash.Fingerprint(req.Hash))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, report)
}

type registerRequest struct {
	Hash        string `json:"hash" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// Register handles POST /register. It returns an unsigned transaction
// descriptor; the caller signs it and submits out of band.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	tx, err := h.service.BuildRegisterTx(r.Context(),
		phash.Fingerprint(req.Hash), req.Title, req.Description)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, tx)
}

// Get handles GET /certificates/{certID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	certID := chi.URLParam(r, "certID")
	if certID == "" {
		return apperrors.ValidationError(nil, "certificate id is required")
	}

	reg, err := h.service.Get(r.Context(), certID)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, reg)
}

// List handles GET /certificates.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	regs, err := h.service.List(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, regs)
}

// decode parses a bounded JSON body and validates the result.
func (h *Handler) decode(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.ValidationError(err, "malformed JSON request body")
	}
	if err := h.validate.Struct(v); err != nil {
		return apperrors.ValidationError(err, fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}
