// Package projection is the read-optimized off-chain copy of the registry.
// It is a pure projection: the indexer is its only writer, every write is
// an idempotent upsert keyed by the on-chain object id, and records are
// never mutated independently of the ledger.
package projection

import (
	"time"

	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/phash"
)

// Registration is the denormalized off-chain copy of a certificate.
type Registration struct {
	CertID      string
	ImageHash   phash.Fingerprint
	Creator     string
	CreatedAt   time.Time
	Title       string
	Description string
	TxDigest    string
	SyncedAt    time.Time
}

// DisputeRecord is the denormalized off-chain copy of a dispute.
type DisputeRecord struct {
	DisputeID       string
	OriginalCertID  string
	FlaggedHash     phash.Fingerprint
	Flagger         string
	SimilarityScore uint8
	Status          ledger.DisputeStatus
	Stake           string
	CreatedAt       time.Time
	TxDigest        string
	SyncedAt        time.Time
}
