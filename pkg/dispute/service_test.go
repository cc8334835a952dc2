package dispute

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/phash"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

var (
	testCreator = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testFlagger = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

const (
	certHash    = phash.Fingerprint("0123456789abcdef")
	flaggedHash = phash.Fingerprint("0123456789abcdee")
)

// memStore holds projected registrations and disputes keyed by id.
type memStore struct {
	regs     map[string]*projection.Registration
	disputes map[string]*projection.DisputeRecord
}

func newMemStore() *memStore {
	return &memStore{
		regs:     map[string]*projection.Registration{},
		disputes: map[string]*projection.DisputeRecord{},
	}
}

func (s *memStore) UpsertRegistration(_ context.Context, r *projection.Registration) error {
	s.regs[r.CertID] = r
	return nil
}
func (s *memStore) UpsertDispute(_ context.Context, d *projection.DisputeRecord) error {
	s.disputes[d.DisputeID] = d
	return nil
}
func (s *memStore) SetDisputeStatus(_ context.Context, id string, status ledger.DisputeStatus, _ string) error {
	if d, ok := s.disputes[id]; ok {
		d.Status = status
	}
	return nil
}
func (s *memStore) GetRegistration(_ context.Context, certID string) (*projection.Registration, error) {
	r, ok := s.regs[certID]
	if !ok {
		return nil, apperrors.NotFoundError(nil, "registration not found")
	}
	return r, nil
}
func (s *memStore) GetRegistrationByHash(context.Context, string) (*projection.Registration, error) {
	return nil, apperrors.NotFoundError(nil, "registration not found")
}
func (s *memStore) ListRegistrations(context.Context) ([]*projection.Registration, error) {
	out := make([]*projection.Registration, 0, len(s.regs))
	for _, r := range s.regs {
		out = append(out, r)
	}
	return out, nil
}
func (s *memStore) GetDispute(_ context.Context, id string) (*projection.DisputeRecord, error) {
	d, ok := s.disputes[id]
	if !ok {
		return nil, apperrors.NotFoundError(nil, "dispute not found")
	}
	return d, nil
}
func (s *memStore) ListDisputesForCert(_ context.Context, certID string) ([]*projection.DisputeRecord, error) {
	var out []*projection.DisputeRecord
	for _, d := range s.disputes {
		if d.OriginalCertID == certID {
			out = append(out, d)
		}
	}
	return out, nil
}
func (s *memStore) GetCursor(context.Context, ledger.EventType) (string, error) { return "", nil }
func (s *memStore) SetCursor(context.Context, ledger.EventType, string) error   { return nil }

func seededStore(t *testing.T) *memStore {
	t.Helper()
	store := newMemStore()
	require.NoError(t, store.UpsertRegistration(context.Background(), &projection.Registration{
		CertID:    "c1",
		ImageHash: certHash,
		Creator:   testCreator.Hex(),
		Title:     "Sunset",
	}))
	require.NoError(t, store.UpsertDispute(context.Background(), &projection.DisputeRecord{
		DisputeID:      "d1",
		OriginalCertID: "c1",
		FlaggedHash:    flaggedHash,
		Flagger:        testFlagger.Hex(),
		Status:         ledger.DisputeOpen,
		Stake:          "25",
	}))
	return store
}

func TestBuildFlagTx(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	tx, err := svc.BuildFlagTx(context.Background(), "c1", flaggedHash, 5, decimal.NewFromInt(25))
	require.NoError(t, err)

	assert.Equal(t, ledger.TxFlag, tx.Kind)

	var p ledger.FlagPayload
	require.NoError(t, json.Unmarshal(tx.Payload, &p))
	assert.Equal(t, "c1", p.CertID)
	assert.Equal(t, flaggedHash, p.FlaggedHash)
	assert.Equal(t, uint8(5), p.Score)
	assert.True(t, p.Stake.Equal(decimal.NewFromInt(25)))
}

func TestBuildFlagTx_UnknownCert(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	_, err := svc.BuildFlagTx(context.Background(), "missing", flaggedHash, 5, decimal.NewFromInt(25))
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestBuildFlagTx_InvalidHash(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	_, err := svc.BuildFlagTx(context.Background(), "c1", "nope", 5, decimal.NewFromInt(25))
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestBuildResolveTx(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	tx, err := svc.BuildResolveTx(context.Background(), testCreator, "d1", "c1", ledger.DisputeValid)
	require.NoError(t, err)

	assert.Equal(t, ledger.TxResolve, tx.Kind)

	var p ledger.ResolvePayload
	require.NoError(t, json.Unmarshal(tx.Payload, &p))
	assert.Equal(t, "d1", p.DisputeID)
	assert.Equal(t, "c1", p.CertID)
	assert.Equal(t, ledger.DisputeValid, p.Resolution)
}

func TestBuildResolveTx_OnlyCreator(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	_, err := svc.BuildResolveTx(context.Background(), testFlagger, "d1", "c1", ledger.DisputeValid)
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnauthorized))
}

func TestBuildResolveTx_UnknownDispute(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	_, err := svc.BuildResolveTx(context.Background(), testCreator, "missing", "c1", ledger.DisputeValid)
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestBuildResolveTx_CertMismatch(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())

	_, err := svc.BuildResolveTx(context.Background(), testCreator, "d1", "other", ledger.DisputeValid)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestBuildResolveTx_AlreadyResolved(t *testing.T) {
	store := seededStore(t)
	require.NoError(t, store.SetDisputeStatus(context.Background(), "d1", ledger.DisputeInvalid, "0xaa"))
	svc := NewService(store, zap.NewNop())

	_, err := svc.BuildResolveTx(context.Background(), testCreator, "d1", "c1", ledger.DisputeValid)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))
}

func TestGetAndList(t *testing.T) {
	svc := NewService(seededStore(t), zap.NewNop())
	ctx := context.Background()

	d, err := svc.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "c1", d.OriginalCertID)

	forCert, err := svc.ListForCert(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, forCert, 1)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}
