// Package dispute exposes the staked challenge flow over the projection:
// building flag and resolve transactions for clients to sign, and reading
// projected dispute records. The ledger enforces the state machine; this
// layer runs the defensive checks that are cheap to do before a
// transaction is built.
package dispute

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/phash"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// Service implements dispute operations over the off-chain projection.
type Service struct {
	store  projection.Store
	logger *zap.Logger
}

// NewService creates a new dispute service
func NewService(store projection.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// BuildFlagTx returns an unsigned flag transaction against the given
// certificate. The certificate must exist in the projection; the stake
// minimum is the ledger's to enforce at submission.
func (s *Service) BuildFlagTx(ctx context.Context, certID string, flaggedHash phash.Fingerprint, score uint8, stake decimal.Decimal) (*ledger.UnsignedTx, error) {
	if err := flaggedHash.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRegistration(ctx, certID); err != nil {
		return nil, err
	}

	tx, err := ledger.NewFlagTx(ledger.FlagPayload{
		CertID:      certID,
		FlaggedHash: flaggedHash,
		Score:       score,
		Stake:       stake,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Flag transaction built",
		zap.String("cert_id", certID),
		zap.Uint8("score", score),
		zap.String("stake", stake.String()),
		zap.String("digest", tx.Digest.Hex()))
	return tx, nil
}

// BuildResolveTx returns an unsigned resolve transaction. The ledger is
// the authority on who may resolve, but the creator check is repeated here
// against the projection so a non-creator learns before signing anything.
func (s *Service) BuildResolveTx(ctx context.Context, actor ledger.Address, disputeID, certID string, resolution ledger.Resolution) (*ledger.UnsignedTx, error) {
	d, err := s.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.OriginalCertID != certID {
		return nil, apperrors.ValidationError(nil, "dispute does not reference the given certificate")
	}
	if d.Status.Terminal() {
		return nil, apperrors.AlreadyResolvedError(nil, "dispute is already resolved")
	}

	reg, err := s.store.GetRegistration(ctx, certID)
	if err != nil {
		return nil, err
	}
	if common.HexToAddress(reg.Creator) != actor {
		return nil, apperrors.UnAuthorizedError(nil, "only the certificate creator may resolve")
	}

	tx, err := ledger.NewResolveTx(ledger.ResolvePayload{
		DisputeID:  disputeID,
		CertID:     certID,
		Resolution: resolution,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Resolve transaction built",
		zap.String("dispute_id", disputeID),
		zap.String("cert_id", certID),
		zap.String("resolution", string(resolution)),
		zap.String("digest", tx.Digest.Hex()))
	return tx, nil
}

// Get returns the projected record for a dispute id.
func (s *Service) Get(ctx context.Context, disputeID string) (*projection.DisputeRecord, error) {
	return s.store.GetDispute(ctx, disputeID)
}

// ListForCert returns every projected dispute against a certificate.
func (s *Service) ListForCert(ctx context.Context, certID string) ([]*projection.DisputeRecord, error) {
	return s.store.ListDisputesForCert(ctx, certID)
}
