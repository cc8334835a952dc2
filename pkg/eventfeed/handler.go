// Package eventfeed exposes the ledger over HTTP: the typed event streams
// the indexer polls, and the submission endpoint signed transactions enter
// through. The api-server, which owns the in-process ledger, serves both;
// remote processes use the matching Client. The wire format for events is
// the ledger.EventPage JSON shape, one page per request.
package eventfeed

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	apphttp "github.com/hatchmark/hatchmark/pkg/app/http"
	"github.com/hatchmark/hatchmark/pkg/ledger"
)

const (
	maxPageLimit   = 1000
	maxSubmitBytes = 1 << 20
)

// Ledger is the surface the feed exposes: the replayable event streams and
// the signed-transaction door.
type Ledger interface {
	ledger.EventSource
	ledger.Submitter
}

// Handler serves paginated event streams and transaction submission.
type Handler struct {
	ledger Ledger
	logger *zap.Logger
}

// NewHandler creates a new event feed handler
func NewHandler(l Ledger, logger *zap.Logger) *Handler {
	return &Handler{ledger: l, logger: logger}
}

// Routes mounts the event feed on the given router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/events/{eventType}", apphttp.HandleError(h.query))
	r.Post("/submit", apphttp.HandleError(h.submit))
}

// page is the wire shape of one event page.
type page struct {
	Events     []ledger.Event `json:"events"`
	NextCursor string         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) error {
	typ := ledger.EventType(chi.URLParam(r, "eventType"))
	if !validEventType(typ) {
		return apperrors.ValidationError(nil, "unknown event type")
	}

	cursor := r.URL.Query().Get("cursor")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperrors.ValidationError(err, "limit must be a non-negative integer")
		}
		limit = n
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	p, err := h.ledger.QueryEvents(r.Context(), typ, cursor, limit)
	if err != nil {
		return err
	}

	return apphttp.WriteJSON(w, http.StatusOK, page{
		Events:     p.Events,
		NextCursor: p.NextCursor,
		HasMore:    p.HasMore,
	})
}

// submit accepts a signed transaction. The signature is the authorization:
// the ledger recovers the actor from it, so the endpoint itself is open.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxSubmitBytes)

	var tx ledger.SignedTx
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		return apperrors.ValidationError(err, "malformed signed transaction")
	}

	result, err := h.ledger.Submit(r.Context(), &tx)
	if err != nil {
		return err
	}

	h.logger.Info("Transaction committed",
		zap.String("digest", result.Digest),
		zap.String("object_id", result.ObjectID),
		zap.String("event", string(result.Event)))

	return apphttp.WriteJSON(w, http.StatusOK, result)
}

func validEventType(typ ledger.EventType) bool {
	for _, t := range ledger.EventTypes() {
		if t == typ {
			return true
		}
	}
	return false
}
