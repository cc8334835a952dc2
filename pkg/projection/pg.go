package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the projection store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) UpsertRegistration(ctx context.Context, r *Registration) error {
	dao := toRegistrationDao(r)
	if dao.SyncedAt.IsZero() {
		dao.SyncedAt = time.Now().UTC()
	}

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (cert_id) DO UPDATE").
		Set("image_hash = EXCLUDED.image_hash").
		Set("creator = EXCLUDED.creator").
		Set("created_at = EXCLUDED.created_at").
		Set("title = EXCLUDED.title").
		Set("description = EXCLUDED.description").
		Set("tx_digest = EXCLUDED.tx_digest").
		Set("synced_at = EXCLUDED.synced_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert registration %s: %w", r.CertID, err)
	}
	return nil
}

func (s *pgStore) UpsertDispute(ctx context.Context, d *DisputeRecord) error {
	dao := toDisputeDao(d)
	if dao.SyncedAt.IsZero() {
		dao.SyncedAt = time.Now().UTC()
	}

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (dispute_id) DO UPDATE").
		Set("original_cert_id = EXCLUDED.original_cert_id").
		Set("flagged_hash = EXCLUDED.flagged_hash").
		Set("flagger = EXCLUDED.flagger").
		Set("similarity_score = EXCLUDED.similarity_score").
		// A dispute that already reached a terminal status must not be
		// reopened by a redelivered open-dispute event.
		Set("status = CASE WHEN d.status = ? THEN EXCLUDED.status ELSE d.status END", string(ledger.DisputeOpen)).
		Set("stake = EXCLUDED.stake").
		Set("created_at = EXCLUDED.created_at").
		Set("tx_digest = EXCLUDED.tx_digest").
		Set("synced_at = EXCLUDED.synced_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert dispute %s: %w", d.DisputeID, err)
	}
	return nil
}

func (s *pgStore) SetDisputeStatus(ctx context.Context, disputeID string, status ledger.DisputeStatus, txDigest string) error {
	res, err := s.db.NewUpdate().
		Model((*DisputeDao)(nil)).
		Set("status = ?", string(status)).
		Set("tx_digest = ?", txDigest).
		Set("synced_at = ?", time.Now().UTC()).
		Where("dispute_id = ?", disputeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set dispute %s status: %w", disputeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set dispute %s status: %w", disputeID, err)
	}
	// A resolution can arrive before its dispute row when the streams
	// index out of order. Failing here holds the cursor so the event is
	// retried once the dispute lands, instead of being silently dropped.
	if n == 0 {
		return fmt.Errorf("dispute %s not projected yet", disputeID)
	}
	return nil
}

func (s *pgStore) GetRegistration(ctx context.Context, certID string) (*Registration, error) {
	dao := new(RegistrationDao)
	err := s.db.NewSelect().Model(dao).Where("cert_id = ?", certID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError(err, fmt.Sprintf("registration %s not found", certID))
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return toRegistration(dao), nil
}

func (s *pgStore) GetRegistrationByHash(ctx context.Context, hash string) (*Registration, error) {
	dao := new(RegistrationDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("image_hash = ?", hash).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError(err, "no registration for hash")
		}
		return nil, fmt.Errorf("failed to get registration by hash: %w", err)
	}
	return toRegistration(dao), nil
}

func (s *pgStore) ListRegistrations(ctx context.Context) ([]*Registration, error) {
	var daos []*RegistrationDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	out := make([]*Registration, 0, len(daos))
	for _, dao := range daos {
		out = append(out, toRegistration(dao))
	}
	return out, nil
}

func (s *pgStore) GetDispute(ctx context.Context, disputeID string) (*DisputeRecord, error) {
	dao := new(DisputeDao)
	err := s.db.NewSelect().Model(dao).Where("dispute_id = ?", disputeID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError(err, fmt.Sprintf("dispute %s not found", disputeID))
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return toDisputeRecord(dao), nil
}

func (s *pgStore) ListDisputesForCert(ctx context.Context, certID string) ([]*DisputeRecord, error) {
	var daos []*DisputeDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("original_cert_id = ?", certID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}

	out := make([]*DisputeRecord, 0, len(daos))
	for _, dao := range daos {
		out = append(out, toDisputeRecord(dao))
	}
	return out, nil
}

func (s *pgStore) GetCursor(ctx context.Context, typ ledger.EventType) (string, error) {
	dao := new(CursorDao)
	err := s.db.NewSelect().Model(dao).Where("event_type = ?", string(typ)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get cursor for %s: %w", typ, err)
	}
	return dao.Cursor, nil
}

func (s *pgStore) SetCursor(ctx context.Context, typ ledger.EventType, cursor string) error {
	dao := &CursorDao{
		EventType: string(typ),
		Cursor:    cursor,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (event_type) DO UPDATE").
		Set("cursor = EXCLUDED.cursor").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set cursor for %s: %w", typ, err)
	}
	return nil
}
