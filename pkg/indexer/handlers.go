package indexer

import (
	"fmt"
	"time"

	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// The mapping from ledger event to projection record is deterministic:
// replaying an event always produces the same record, which is what makes
// redelivery safe under the upsert discipline.

func mapRegistration(ev ledger.Event, syncedAt time.Time) (*projection.Registration, error) {
	p := ev.Registration
	if p == nil || p.CertID == "" || p.ImageHash == "" {
		return nil, fmt.Errorf("registration event %d has unexpected shape", ev.Seq)
	}
	return &projection.Registration{
		CertID:      p.CertID,
		ImageHash:   p.ImageHash,
		Creator:     p.Creator.Hex(),
		CreatedAt:   p.Timestamp,
		Title:       p.Title,
		Description: p.Description,
		TxDigest:    ev.TxDigest,
		SyncedAt:    syncedAt,
	}, nil
}

func mapDispute(ev ledger.Event, syncedAt time.Time) (*projection.DisputeRecord, error) {
	p := ev.Dispute
	if p == nil || p.DisputeID == "" || p.CertID == "" {
		return nil, fmt.Errorf("dispute event %d has unexpected shape", ev.Seq)
	}
	return &projection.DisputeRecord{
		DisputeID:       p.DisputeID,
		OriginalCertID:  p.CertID,
		FlaggedHash:     p.FlaggedHash,
		Flagger:         p.Flagger.Hex(),
		SimilarityScore: p.Score,
		Status:          ledger.DisputeOpen,
		Stake:           p.Stake.String(),
		CreatedAt:       p.Timestamp,
		TxDigest:        ev.TxDigest,
		SyncedAt:        syncedAt,
	}, nil
}

func resolvedFields(ev ledger.Event) (disputeID string, status ledger.DisputeStatus, err error) {
	p := ev.DisputeResolved
	if p == nil || p.DisputeID == "" || !p.Resolution.Terminal() {
		return "", "", fmt.Errorf("dispute_resolved event %d has unexpected shape", ev.Seq)
	}
	return p.DisputeID, p.Resolution, nil
}
