package projection

import (
	"context"

	"github.com/hatchmark/hatchmark/pkg/ledger"
)

// Store is the projection surface. Writes are reserved for the indexer;
// the API layer only reads.
type Store interface {
	// UpsertRegistration persists a registration keyed by cert id.
	// Replaying the same event yields one record, not two.
	UpsertRegistration(ctx context.Context, r *Registration) error
	// UpsertDispute persists a dispute keyed by dispute id.
	UpsertDispute(ctx context.Context, d *DisputeRecord) error
	// SetDisputeStatus applies a resolution observed on the ledger.
	SetDisputeStatus(ctx context.Context, disputeID string, status ledger.DisputeStatus, txDigest string) error

	GetRegistration(ctx context.Context, certID string) (*Registration, error)
	GetRegistrationByHash(ctx context.Context, hash string) (*Registration, error)
	ListRegistrations(ctx context.Context) ([]*Registration, error)
	GetDispute(ctx context.Context, disputeID string) (*DisputeRecord, error)
	ListDisputesForCert(ctx context.Context, certID string) ([]*DisputeRecord, error)

	// GetCursor returns the durable cursor for an event type, "" if the
	// stream has never been consumed.
	GetCursor(ctx context.Context, typ ledger.EventType) (string, error)
	// SetCursor durably advances the cursor for an event type.
	SetCursor(ctx context.Context, typ ledger.EventType, cursor string) error
}
