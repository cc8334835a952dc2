// Package workflow sequences the client side of register and flag:
// compute fingerprint, query the matcher, gate locally, build an unsigned
// transaction, hand it off for signing, submit, then await the projection.
// Requests that would fail locally-known checks never reach the ledger, so
// no fees are wasted on them.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/match"
	"github.com/hatchmark/hatchmark/pkg/phash"
	"github.com/hatchmark/hatchmark/pkg/projection"
	"github.com/hatchmark/hatchmark/pkg/watermark"
)

const (
	defaultSyncAttempts  = 30
	defaultSyncBackoff   = 2 * time.Second
	defaultSubmitRetries = 3
)

// Signer turns an unsigned transaction descriptor into a signed one.
// Before Sign returns, abandoning the workflow has no side effects.
type Signer interface {
	Sign(tx *ledger.UnsignedTx) (*ledger.SignedTx, error)
}

// Orchestrator drives register and flag workflows end to end.
type Orchestrator struct {
	store     projection.Store
	submitter ledger.Submitter
	logger    *zap.Logger

	registerThreshold int
	verifyThreshold   int
	syncAttempts      int
	syncBackoff       time.Duration
	submitRetries     int
	watermarking      bool
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithThresholds overrides the register and verify similarity thresholds.
func WithThresholds(register, verify int) Option {
	return func(o *Orchestrator) {
		o.registerThreshold = register
		o.verifyThreshold = verify
	}
}

// WithSyncPolicy overrides the projection catch-up wait: a fixed ceiling
// of attempts with fixed backoff.
func WithSyncPolicy(attempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.syncAttempts = attempts
		}
		if backoff > 0 {
			o.syncBackoff = backoff
		}
	}
}

// WithSubmitRetries bounds retries of network-level submission failures.
func WithSubmitRetries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.submitRetries = n
		}
	}
}

// WithWatermarking embeds the new certificate's id invisibly into the
// registered image once the ledger accepts it.
func WithWatermarking() Option {
	return func(o *Orchestrator) { o.watermarking = true }
}

// New creates a new workflow orchestrator
func New(store projection.Store, submitter ledger.Submitter, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:             store,
		submitter:         submitter,
		logger:            logger,
		registerThreshold: match.RegisterThreshold,
		verifyThreshold:   match.VerifyThreshold,
		syncAttempts:      defaultSyncAttempts,
		syncBackoff:       defaultSyncBackoff,
		submitRetries:     defaultSubmitRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterResult reports a completed registration workflow.
type RegisterResult struct {
	CertID      string
	Fingerprint phash.Fingerprint
	TxDigest    string
	// MarkedImage is the copy carrying the certificate id as an invisible
	// watermark, ready for distribution. Nil unless watermarking is on.
	MarkedImage []byte
}

// RegisterImage registers an image's fingerprint. Stops with a
// DuplicateError before any ledger write when the corpus already holds a
// near-duplicate at or above the register threshold.
func (o *Orchestrator) RegisterImage(ctx context.Context, imageData []byte, title, description string, signer Signer) (*RegisterResult, error) {
	fp, err := phash.ComputeBytes(imageData)
	if err != nil {
		return nil, err
	}

	res, err := o.scan(ctx, fp, o.registerThreshold)
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

	result, err := o.signAndSubmit(ctx, tx, signer)
	if err != nil {
		return nil, err
	}

	if err := o.awaitSync(ctx, func(ctx context.Context) bool {
		_, err := o.store.GetRegistration(ctx, result.ObjectID)
		return err == nil
	}); err != nil {
		return nil, err
	}

	regRes := &RegisterResult{CertID: result.ObjectID, Fingerprint: fp, TxDigest: result.Digest}
	if o.watermarking {
		marked, err := watermark.Embed(imageData, result.ObjectID)
		if err != nil {
			// The registration is already committed; hand back the
			// unmarked image rather than failing the workflow.
			o.logger.Warn("Watermark embedding failed", zap.Error(err))
		} else {
			regRes.MarkedImage = marked
		}
	}
	return regRes, nil
}

// FlagResult reports a completed flag workflow.
type FlagResult struct {
	DisputeID string
	CertID    string
	// Score is the similarity byte actually submitted on-chain.
	Score    uint8
	TxDigest string
}

// FlagImage opens a staked dispute against the certificate the flagged
// image most resembles. Stops with a ValidationError before any ledger
// write when nothing in the corpus clears the verify threshold.
func (o *Orchestrator) FlagImage(ctx context.Context, imageData []byte, stake decimal.Decimal, signer Signer) (*FlagResult, error) {
	fp, err := phash.ComputeBytes(imageData)
	if err != nil {
		return nil, err
	}

	res, err := o.scan(ctx, fp, o.verifyThreshold)
	if err != nil {
		return nil, err
	}
	if len(res.Matches) == 0 {
		return nil, apperrors.ValidationError(nil,
			"no registered certificate resembles the flagged image")
	}
	best := res.Matches[0]

	tx, err := ledger.NewFlagTx(ledger.FlagPayload{
		CertID:      best.ID,
		FlaggedHash: fp,
		Score:       phash.ScoreByte(best.Similarity),
		Stake:       stake,
	})
	if err != nil {
		return nil, err
	}

	result, err := o.signAndSubmit(ctx, tx, signer)
	if err != nil {
		return nil, err
	}

	if err := o.awaitSync(ctx, func(ctx context.Context) bool {
		_, err := o.store.GetDispute(ctx, result.ObjectID)
		return err == nil
	}); err != nil {
		return nil, err
	}

	return &FlagResult{
		DisputeID: result.ObjectID,
		CertID:    best.ID,
		Score:     phash.ScoreByte(best.Similarity),
		TxDigest:  result.Digest,
	}, nil
}

// scan ranks the candidate against the projected corpus.
func (o *Orchestrator) scan(ctx context.Context, fp phash.Fingerprint, threshold int) (match.Result, error) {
	regs, err := o.store.ListRegistrations(ctx)
	if err != nil {
		return match.Result{}, fmt.Errorf("load corpus: %w", err)
	}

	corpus := make([]match.Entry, 0, len(regs))
	for _, r := range regs {
		corpus = append(corpus, match.Entry{ID: r.CertID, Hash: r.ImageHash, CreatedAt: r.CreatedAt})
	}
	return match.Rank(fp, corpus, threshold), nil
}

// signAndSubmit hands the transaction to the signer and submits it.
// Semantic ledger rejections propagate unchanged and are never retried;
// only network-level failures are, up to the configured ceiling.
func (o *Orchestrator) signAndSubmit(ctx context.Context, tx *ledger.UnsignedTx, signer Signer) (*ledger.TxResult, error) {
	signed, err := signer.Sign(tx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	// Submission is the point of no return: cancellation afterwards only
	// stops the wait.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < o.submitRetries; attempt++ {
		result, err := o.submitter.Submit(ctx, signed)
		if err == nil {
			return result, nil
		}

		var svcErr *apperrors.ServiceError
		if errors.As(err, &svcErr) && svcErr.Category < apperrors.CategoryDependencyFailure {
			// The ledger rejected the transaction itself; retrying
			// cannot change the outcome.
			return nil, err
		}
		lastErr = err

		o.logger.Warn("Transaction submission failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-time.After(o.syncBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, apperrors.LedgerError(lastErr, "transaction submission failed")
}

// awaitSync polls until the projection reflects the transaction, up to a
// fixed ceiling of attempts with fixed backoff.
func (o *Orchestrator) awaitSync(ctx context.Context, synced func(context.Context) bool) error {
	for attempt := 0; attempt < o.syncAttempts; attempt++ {
		if synced(ctx) {
			return nil
		}
		select {
		case <-time.After(o.syncBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return apperrors.SyncTimeoutError(nil, "off-chain projection did not catch up in time")
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(tx *ledger.UnsignedTx) (*ledger.SignedTx, error)

// Sign implements Signer.
func (f SignerFunc) Sign(tx *ledger.UnsignedTx) (*ledger.SignedTx, error) {
	return f(tx)
}
