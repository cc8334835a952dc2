package projection_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/migrations/projectiondb"
	"github.com/hatchmark/hatchmark/pkg/pgutil"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

func setupStore(t *testing.T) (context.Context, projection.Store) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	migrator := migrate.NewMigrator(db, projectiondb.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	pgutil.AssertTableExists(t, db, "registrations")
	pgutil.AssertTableExists(t, db, "disputes")
	pgutil.AssertTableExists(t, db, "indexer_cursors")

	return ctx, projection.NewStore(db)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed projection tests")
}

func newTestRegistration(certID, txDigest string) *projection.Registration {
	return &projection.Registration{
		CertID:    certID,
		ImageHash: "0123456789abcdef",
		Creator:   "0x1111111111111111111111111111111111111111",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Title:     "Sunset",
		TxDigest:  txDigest,
	}
}

func newTestDispute(disputeID, certID string) *projection.DisputeRecord {
	return &projection.DisputeRecord{
		DisputeID:       disputeID,
		OriginalCertID:  certID,
		FlaggedHash:     "0123456789abcdee",
		Flagger:         "0x2222222222222222222222222222222222222222",
		SimilarityScore: 5,
		Status:          ledger.DisputeOpen,
		Stake:           "25",
		CreatedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		TxDigest:        "0xdd",
	}
}

func TestPGStore_RegistrationRoundTrip(t *testing.T) {
	ctx, s := setupStore(t)

	reg := newTestRegistration("c1", "0xaa")
	require.NoError(t, s.UpsertRegistration(ctx, reg))

	got, err := s.GetRegistration(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, reg.CertID, got.CertID)
	assert.Equal(t, reg.ImageHash, got.ImageHash)
	assert.Equal(t, reg.Creator, got.Creator)
	assert.Equal(t, reg.Title, got.Title)
	assert.False(t, got.SyncedAt.IsZero())

	byHash, err := s.GetRegistrationByHash(ctx, string(reg.ImageHash))
	require.NoError(t, err)
	assert.Equal(t, "c1", byHash.CertID)
}

func TestPGStore_UpsertRegistrationIsIdempotent(t *testing.T) {
	ctx, s := setupStore(t)

	require.NoError(t, s.UpsertRegistration(ctx, newTestRegistration("c1", "0xaa")))

	// A redelivered event overwrites in place rather than duplicating.
	updated := newTestRegistration("c1", "0xbb")
	updated.Title = "Sunset (restored)"
	require.NoError(t, s.UpsertRegistration(ctx, updated))

	all, err := s.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Sunset (restored)", all[0].Title)
	assert.Equal(t, "0xbb", all[0].TxDigest)
}

func TestPGStore_ListRegistrationsOrderedByAge(t *testing.T) {
	ctx, s := setupStore(t)

	older := newTestRegistration("older", "0xaa")
	newer := newTestRegistration("newer", "0xbb")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, s.UpsertRegistration(ctx, newer))
	require.NoError(t, s.UpsertRegistration(ctx, older))

	all, err := s.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "older", all[0].CertID)
	assert.Equal(t, "newer", all[1].CertID)
}

func TestPGStore_GetRegistrationNotFound(t *testing.T) {
	ctx, s := setupStore(t)

	_, err := s.GetRegistration(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))

	_, err = s.GetRegistrationByHash(ctx, "ffffffffffffffff")
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestPGStore_DisputeLifecycle(t *testing.T) {
	ctx, s := setupStore(t)

	require.NoError(t, s.UpsertRegistration(ctx, newTestRegistration("c1", "0xaa")))
	require.NoError(t, s.UpsertDispute(ctx, newTestDispute("d1", "c1")))

	got, err := s.GetDispute(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.OriginalCertID)
	assert.Equal(t, ledger.DisputeOpen, got.Status)
	assert.Equal(t, uint8(5), got.SimilarityScore)

	require.NoError(t, s.SetDisputeStatus(ctx, "d1", ledger.DisputeValid, "0xee"))

	got, err = s.GetDispute(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, ledger.DisputeValid, got.Status)
	assert.Equal(t, "0xee", got.TxDigest)

	forCert, err := s.ListDisputesForCert(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, forCert, 1)
	assert.Equal(t, "d1", forCert[0].DisputeID)

	forOther, err := s.ListDisputesForCert(ctx, "unrelated")
	require.NoError(t, err)
	assert.Empty(t, forOther)
}

func TestPGStore_SetDisputeStatusBeforeDisputeRow(t *testing.T) {
	ctx, s := setupStore(t)

	// The resolution stream can run ahead of the dispute stream. A
	// status write with no row to land on must fail so the indexer
	// holds its cursor and retries once the dispute is projected.
	err := s.SetDisputeStatus(ctx, "d-unseen", ledger.DisputeValid, "0xee")
	assert.Error(t, err)
}

func TestPGStore_RedeliveredDisputeKeepsResolution(t *testing.T) {
	ctx, s := setupStore(t)

	require.NoError(t, s.UpsertDispute(ctx, newTestDispute("d1", "c1")))
	require.NoError(t, s.SetDisputeStatus(ctx, "d1", ledger.DisputeValid, "0xee"))

	// A replayed open-dispute event must not roll the status back.
	require.NoError(t, s.UpsertDispute(ctx, newTestDispute("d1", "c1")))

	got, err := s.GetDispute(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, ledger.DisputeValid, got.Status)
}

func TestPGStore_GetDisputeNotFound(t *testing.T) {
	ctx, s := setupStore(t)

	_, err := s.GetDispute(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestPGStore_Cursors(t *testing.T) {
	ctx, s := setupStore(t)

	// An unset cursor reads back empty, meaning start from the beginning.
	cur, err := s.GetCursor(ctx, ledger.EventRegistration)
	require.NoError(t, err)
	assert.Equal(t, "", cur)

	require.NoError(t, s.SetCursor(ctx, ledger.EventRegistration, "17"))
	require.NoError(t, s.SetCursor(ctx, ledger.EventDispute, "3"))
	require.NoError(t, s.SetCursor(ctx, ledger.EventRegistration, "42"))

	cur, err = s.GetCursor(ctx, ledger.EventRegistration)
	require.NoError(t, err)
	assert.Equal(t, "42", cur)

	cur, err = s.GetCursor(ctx, ledger.EventDispute)
	require.NoError(t, err)
	assert.Equal(t, "3", cur)
}
