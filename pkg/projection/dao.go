package projection

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/phash"
)

// RegistrationDao is a data access object that maps directly to the
// 'registrations' table in PostgreSQL.
type RegistrationDao struct {
	bun.BaseModel `bun:"table:registrations,alias:r"`
	CertID        string    `bun:"cert_id,pk,type:varchar(64)"`
	ImageHash     string    `bun:"image_hash,notnull,type:varchar(64)"`
	Creator       string    `bun:"creator,notnull,type:varchar(42)"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	Title         string    `bun:"title,notnull,type:varchar(255)"`
	Description   string    `bun:"description,type:text"`
	TxDigest      string    `bun:"tx_digest,notnull,type:varchar(66)"`
	SyncedAt      time.Time `bun:"synced_at,nullzero,default:current_timestamp"`
}

// DisputeDao is a data access object that maps directly to the 'disputes'
// table in PostgreSQL.
type DisputeDao struct {
	bun.BaseModel   `bun:"table:disputes,alias:d"`
	DisputeID       string    `bun:"dispute_id,pk,type:varchar(64)"`
	OriginalCertID  string    `bun:"original_cert_id,notnull,type:varchar(64)"`
	FlaggedHash     string    `bun:"flagged_hash,notnull,type:varchar(64)"`
	Flagger         string    `bun:"flagger,notnull,type:varchar(42)"`
	SimilarityScore int16     `bun:"similarity_score,notnull"`
	Status          string    `bun:"status,notnull,type:varchar(16)"`
	Stake           string    `bun:"stake,notnull,type:numeric(38,18)"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	TxDigest        string    `bun:"tx_digest,notnull,type:varchar(66)"`
	SyncedAt        time.Time `bun:"synced_at,nullzero,default:current_timestamp"`
}

// CursorDao is a data access object that maps directly to the
// 'indexer_cursors' table in PostgreSQL. One row per event type; the
// cursor survives process restarts and replacement instances.
type CursorDao struct {
	bun.BaseModel `bun:"table:indexer_cursors,alias:c"`
	EventType     string    `bun:"event_type,pk,type:varchar(32)"`
	Cursor        string    `bun:"cursor,notnull,type:varchar(128)"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toRegistrationDao(r *Registration) *RegistrationDao {
	return &RegistrationDao{
		CertID:      r.CertID,
		ImageHash:   string(r.ImageHash),
		Creator:     r.Creator,
		CreatedAt:   r.CreatedAt,
		Title:       r.Title,
		Description: r.Description,
		TxDigest:    r.TxDigest,
		SyncedAt:    r.SyncedAt,
	}
}

func toRegistration(dao *RegistrationDao) *Registration {
	return &Registration{
		CertID:      dao.CertID,
		ImageHash:   phash.Fingerprint(dao.ImageHash),
		Creator:     dao.Creator,
		CreatedAt:   dao.CreatedAt,
		Title:       dao.Title,
		Description: dao.Description,
		TxDigest:    dao.TxDigest,
		SyncedAt:    dao.SyncedAt,
	}
}

func toDisputeDao(d *DisputeRecord) *DisputeDao {
	return &DisputeDao{
		DisputeID:       d.DisputeID,
		OriginalCertID:  d.OriginalCertID,
		FlaggedHash:     string(d.FlaggedHash),
		Flagger:         d.Flagger,
		SimilarityScore: int16(d.SimilarityScore),
		Status:          string(d.Status),
		Stake:           d.Stake,
		CreatedAt:       d.CreatedAt,
		TxDigest:        d.TxDigest,
		SyncedAt:        d.SyncedAt,
	}
}

func toDisputeRecord(dao *DisputeDao) *DisputeRecord {
	return &DisputeRecord{
		DisputeID:       dao.DisputeID,
		OriginalCertID:  dao.OriginalCertID,
		FlaggedHash:     phash.Fingerprint(dao.FlaggedHash),
		Flagger:         dao.Flagger,
		SimilarityScore: uint8(dao.SimilarityScore),
		Status:          ledger.DisputeStatus(dao.Status),
		Stake:           dao.Stake,
		CreatedAt:       dao.CreatedAt,
		TxDigest:        dao.TxDigest,
		SyncedAt:        dao.SyncedAt,
	}
}
