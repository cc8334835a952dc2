// Package certificate exposes verification of image fingerprints against
// the projected corpus and construction of register transactions. The
// duplicate gate runs locally against the projection before a transaction
// is ever built, so duplicate submissions never reach the chain.
package certificate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hatchmark/hatchmark/internal/metrics"
	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/match"
	"github.com/hatchmark/hatchmark/pkg/phash"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// Service implements certificate operations over the off-chain projection.
type Service struct {
	store  projection.Store
	logger *zap.Logger

	registerThreshold int
	verifyThreshold   int
}

// NewService creates a new certificate service
func NewService(store projection.Store, logger *zap.Logger, registerThreshold, verifyThreshold int) *Service {
	if registerThreshold <= 0 {
		registerThreshold = match.RegisterThreshold
	}
	if verifyThreshold <= 0 {
		verifyThreshold = match.VerifyThreshold
	}
	return &Service{
		store:             store,
		logger:            logger,
		registerThreshold: registerThreshold,
		verifyThreshold:   verifyThreshold,
	}
}

// MatchView is one ranked near-duplicate joined with its projected record.
type MatchView struct {
	CertID          string `json:"cert_id"`
	Creator         string `json:"creator"`
	Title           string `json:"title"`
	Similarity      int    `json:"similarity"`
	HammingDistance int    `json:"hammingDistance"`
}

// VerifyReport is the outcome of checking a fingerprint against the corpus.
// ExactMatch is nil unless an entry sits at distance zero.
type VerifyReport struct {
	Matches    []MatchView `json:"matches"`
	IsOriginal bool        `json:"isOriginal"`
	ExactMatch *MatchView  `json:"exactMatch"`
}

// Verify ranks the fingerprint against every projected registration at the
// verify threshold. Read-only; never touches the ledger.
func (s *Service) Verify(ctx context.Context, fp phash.Fingerprint) (*VerifyReport, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}

	res, regs, err := s.scan(ctx, fp, s.verifyThreshold, "verify")
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{
		Matches:    make([]MatchView, 0, len(res.Matches)),
		IsOriginal: len(res.Matches) == 0,
	}
	for _, m := range res.Matches {
		report.Matches = append(report.Matches, toView(m, regs))
	}
	if res.ExactMatch != nil {
		v := toView(*res.ExactMatch, regs)
		report.ExactMatch = &v
	}
	return report, nil
}

// BuildRegisterTx gates the fingerprint against the projected corpus and
// returns an unsigned register transaction for the caller to sign and
// submit. Fails with a DuplicateError when the corpus already holds a
// near-duplicate at or above the register threshold; no transaction is
// built in that case.
func (s *Service) BuildRegisterTx(ctx context.Context, fp phash.Fingerprint, title, description string) (*ledger.UnsignedTx, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}

	res, _, err := s.scan(ctx, fp, s.registerThreshold, "register")
	if err != nil {
		return nil, err
	}
	if len(res.Matches) > 0 {
		best := res.Matches[0]
		return nil, apperrors.DuplicateError(nil,
			fmt.Sprintf("near-duplicate of %s at %d%% similarity", best.ID, best.Similarity))
	}

	tx, err := ledger.NewRegisterTx(ledger.RegisterPayload{
		ImageHash:   fp,
		Title:       title,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Register transaction built",
		zap.String("image_hash", string(fp)),
		zap.String("digest", tx.Digest.Hex()))
	return tx, nil
}

// Get returns the projected registration for a certificate id.
func (s *Service) Get(ctx context.Context, certID string) (*projection.Registration, error) {
	return s.store.GetRegistration(ctx, certID)
}

// List returns every projected registration.
func (s *Service) List(ctx context.Context) ([]*projection.Registration, error) {
	return s.store.ListRegistrations(ctx)
}

func (s *Service) scan(ctx context.Context, fp phash.Fingerprint, threshold int, label string) (match.Result, map[string]*projection.Registration, error) {
	metrics.MatcherQueries.WithLabelValues(label).Inc()

	regs, err := s.store.ListRegistrations(ctx)
	if err != nil {
		return match.Result{}, nil, fmt.Errorf("load corpus: %w", err)
	}

	corpus := make([]match.Entry, 0, len(regs))
	byID := make(map[string]*projection.Registration, len(regs))
	for _, r := range regs {
		corpus = append(corpus, match.Entry{ID: r.CertID, Hash: r.ImageHash, CreatedAt: r.CreatedAt})
		byID[r.CertID] = r
	}
	return match.Rank(fp, corpus, threshold), byID, nil
}

func toView(m match.Match, regs map[string]*projection.Registration) MatchView {
	v := MatchView{
		CertID:          m.ID,
		Similarity:      m.Similarity,
		HammingDistance: m.Distance,
	}
	if r, ok := regs[m.ID]; ok {
		v.Creator = r.Creator
		v.Title = r.Title
	}
	return v
}
