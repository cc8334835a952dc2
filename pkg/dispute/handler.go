package dispute

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	apphttp "github.com/hatchmark/hatchmark/pkg/app/http"
	"github.com/hatchmark/hatchmark/pkg/auth"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/phash"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the dispute HTTP endpoints
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new dispute handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// flagRequest accepts the score as either a 0-100 similarity percentage or
// a raw Hamming distance; exactly one must be set.
type flagRequest struct {
	CertID          string `json:"cert_id" validate:"required"`
	FlaggedHash     string `json:"flagged_hash" validate:"required"`
	Similarity      *int   `json:"similarity"`
	HammingDistance *int   `json:"hammingDistance"`
	Stake           string `json:"stake" validate:"required"`
}

// flagResponse echoes the score byte the transaction will put on-chain,
// so the caller knows exactly what the resolver will see.
type flagResponse struct {
	Tx    *ledger.UnsignedTx `json:"unsigned_tx"`
	Score uint8              `json:"score"`
}

// Flag handles POST /flag. It returns an unsigned flag transaction; the
// caller signs it and submits out of band.
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) error {
	var req flagRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	score, err := scoreFromRequest(req)
	if err != nil {
		return err
	}

	stake, err := decimal.NewFromString(req.Stake)
	if err != nil {
		return apperrors.ValidationError(err, "stake must be a decimal amount")
	}

	tx, err := h.service.BuildFlagTx(r.Context(), req.CertID,
		phash.Fingerprint(req.FlaggedHash), score, stake)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, flagResponse{Tx: tx, Score: score})
}

type resolveRequest struct {
	CertID     string `json:"cert_id" validate:"required"`
	Resolution string `json:"resolution" validate:"required,oneof=valid invalid"`
}

// Resolve handles POST /disputes/{disputeID}/resolve. Requires an
// authenticated actor; only the certificate creator gets a transaction.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) error {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "missing actor identity")
	}

	disputeID := chi.URLParam(r, "disputeID")
	if disputeID == "" {
		return apperrors.ValidationError(nil, "dispute id is required")
	}

	var req resolveRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	tx, err := h.service.BuildResolveTx(r.Context(), actor, disputeID,
		req.CertID, ledger.Resolution(req.Resolution))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, tx)
}

// Get handles GET /disputes/{disputeID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	disputeID := chi.URLParam(r, "disputeID")
	if disputeID == "" {
		return apperrors.ValidationError(nil, "dispute id is required")
	}

	d, err := h.service.Get(r.Context(), disputeID)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, d)
}

// ListForCert handles GET /certificates/{certID}/disputes.
func (h *Handler) ListForCert(w http.ResponseWriter, r *http.Request) error {
	certID := chi.URLParam(r, "certID")
	if certID == "" {
		return apperrors.ValidationError(nil, "certificate id is required")
	}

	disputes, err := h.service.ListForCert(r.Context(), certID)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, disputes)
}

// scoreFromRequest applies the one canonical conversion to whichever score
// form the request carried.
func scoreFromRequest(req flagRequest) (uint8, error) {
	switch {
	case req.Similarity != nil && req.HammingDistance != nil:
		return 0, apperrors.ValidationError(nil, "provide similarity or hammingDistance, not both")
	case req.Similarity != nil:
		if *req.Similarity < 0 || *req.Similarity > 100 {
			return 0, apperrors.ValidationError(nil, "similarity must be between 0 and 100")
		}
		return phash.ScoreByte(*req.Similarity), nil
	case req.HammingDistance != nil:
		if *req.HammingDistance < 0 {
			return 0, apperrors.ValidationError(nil, "hammingDistance must be non-negative")
		}
		return phash.ScoreByteFromDistance(*req.HammingDistance, phash.Bits), nil
	default:
		return 0, apperrors.ValidationError(nil, "similarity or hammingDistance is required")
	}
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
