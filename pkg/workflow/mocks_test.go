package workflow

import (
	"context"

	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// MockStore is a mock implementation of projection.Store. Only the read
// methods the orchestrator touches take func fields.
type MockStore struct {
	ListRegistrationsFunc func(ctx context.Context) ([]*projection.Registration, error)
	GetRegistrationFunc   func(ctx context.Context, certID string) (*projection.Registration, error)
	GetDisputeFunc        func(ctx context.Context, disputeID string) (*projection.DisputeRecord, error)
}

func (m *MockStore) ListRegistrations(ctx context.Context) ([]*projection.Registration, error) {
	if m.ListRegistrationsFunc != nil {
		return m.ListRegistrationsFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) GetRegistration(ctx context.Context, certID string) (*projection.Registration, error) {
	if m.GetRegistrationFunc != nil {
		return m.GetRegistrationFunc(ctx, certID)
	}
	return nil, nil
}

func (m *MockStore) GetDispute(ctx context.Context, disputeID string) (*projection.DisputeRecord, error) {
	if m.GetDisputeFunc != nil {
		return m.GetDisputeFunc(ctx, disputeID)
	}
	return nil, nil
}

func (m *MockStore) UpsertRegistration(context.Context, *projection.Registration) error { return nil }
func (m *MockStore) UpsertDispute(context.Context, *projection.DisputeRecord) error    { return nil }
func (m *MockStore) SetDisputeStatus(context.Context, string, ledger.DisputeStatus, string) error {
	return nil
}
func (m *MockStore) GetRegistrationByHash(context.Context, string) (*projection.Registration, error) {
	return nil, nil
}
func (m *MockStore) ListDisputesForCert(context.Context, string) ([]*projection.DisputeRecord, error) {
	return nil, nil
}
func (m *MockStore) GetCursor(context.Context, ledger.EventType) (string, error) { return "", nil }
func (m *MockStore) SetCursor(context.Context, ledger.EventType, string) error   { return nil }

// MockSubmitter is a mock implementation of ledger.Submitter
type MockSubmitter struct {
	SubmitFunc func(ctx context.Context, tx *ledger.SignedTx) (*ledger.TxResult, error)
}

func (m *MockSubmitter) Submit(ctx context.Context, tx *ledger.SignedTx) (*ledger.TxResult, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, tx)
	}
	return &ledger.TxResult{}, nil
}
