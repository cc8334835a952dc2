package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hatchmark/hatchmark/pkg/phash"
)

// RegisterParams carries a register operation.
type RegisterParams struct {
	ImageHash   phash.Fingerprint
	Title       string
	Description string
	Actor       Address
}

// FlagParams carries a flag operation. Score is the on-chain similarity
// byte produced by phash.ScoreByte.
type FlagParams struct {
	CertID      string
	FlaggedHash phash.Fingerprint
	Score       uint8
	Stake       decimal.Decimal
	Actor       Address
}

// ResolveParams carries a resolve operation.
type ResolveParams struct {
	DisputeID  string
	CertID     string
	Resolution Resolution
	Actor      Address
}

// Registry is the registry state machine surface. The ledger serializes
// all mutations, so callers need no locking of their own.
//
// Register always succeeds for well-formed input. Flag fails with
// InsufficientStakeError below the minimum stake. Resolve fails with
// UnauthorizedError for non-creators and AlreadyResolvedError once the
// dispute left Open.
type Registry interface {
	Register(ctx context.Context, p RegisterParams) (*Certificate, error)
	Flag(ctx context.Context, p FlagParams) (*Dispute, error)
	Resolve(ctx context.Context, p ResolveParams) (*Dispute, error)

	GetCertificate(ctx context.Context, id string) (*Certificate, error)
	GetDispute(ctx context.Context, id string) (*Dispute, error)
}

// EventSource is the replayable, cursorable event feed the indexer polls.
// Cursor "" starts from the beginning; pages are oldest-first and bounded
// by limit.
type EventSource interface {
	QueryEvents(ctx context.Context, typ EventType, cursor string, limit int) (*EventPage, error)
}

// Submitter accepts signed transactions, verifies the signature, recovers
// the actor and dispatches to the registry operation the transaction names.
type Submitter interface {
	Submit(ctx context.Context, tx *SignedTx) (*TxResult, error)
}
