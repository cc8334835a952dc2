package indexer

import (
	"context"

	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// MockStore is a mock implementation of projection.Store
type MockStore struct {
	UpsertRegistrationFunc  func(ctx context.Context, r *projection.Registration) error
	UpsertDisputeFunc       func(ctx context.Context, d *projection.DisputeRecord) error
	SetDisputeStatusFunc    func(ctx context.Context, disputeID string, status ledger.DisputeStatus, txDigest string) error
	GetRegistrationFunc     func(ctx context.Context, certID string) (*projection.Registration, error)
	GetRegistrationByHashFn func(ctx context.Context, hash string) (*projection.Registration, error)
	ListRegistrationsFunc   func(ctx context.Context) ([]*projection.Registration, error)
	GetDisputeFunc          func(ctx context.Context, disputeID string) (*projection.DisputeRecord, error)
	ListDisputesForCertFunc func(ctx context.Context, certID string) ([]*projection.DisputeRecord, error)
	GetCursorFunc           func(ctx context.Context, typ ledger.EventType) (string, error)
	SetCursorFunc           func(ctx context.Context, typ ledger.EventType, cursor string) error
}

func (m *MockStore) UpsertRegistration(ctx context.Context, r *projection.Registration) error {
	if m.UpsertRegistrationFunc != nil {
		return m.UpsertRegistrationFunc(ctx, r)
	}
	return nil
}

func (m *MockStore) UpsertDispute(ctx context.Context, d *projection.DisputeRecord) error {
	if m.UpsertDisputeFunc != nil {
		return m.UpsertDisputeFunc(ctx, d)
	}
	return nil
}

func (m *MockStore) SetDisputeStatus(ctx context.Context, disputeID string, status ledger.DisputeStatus, txDigest string) error {
	if m.SetDisputeStatusFunc != nil {
		return m.SetDisputeStatusFunc(ctx, disputeID, status, txDigest)
	}
	return nil
}

func (m *MockStore) GetRegistration(ctx context.Context, certID string) (*projection.Registration, error) {
	if m.GetRegistrationFunc != nil {
		return m.GetRegistrationFunc(ctx, certID)
	}
	return nil, nil
}

func (m *MockStore) GetRegistrationByHash(ctx context.Context, hash string) (*projection.Registration, error) {
	if m.GetRegistrationByHashFn != nil {
		return m.GetRegistrationByHashFn(ctx, hash)
	}
	return nil, nil
}

func (m *MockStore) ListRegistrations(ctx context.Context) ([]*projection.Registration, error) {
	if m.ListRegistrationsFunc != nil {
		return m.ListRegistrationsFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) GetDispute(ctx context.Context, disputeID string) (*projection.DisputeRecord, error) {
	if m.GetDisputeFunc != nil {
		return m.GetDisputeFunc(ctx, disputeID)
	}
	return nil, nil
}

func (m *MockStore) ListDisputesForCert(ctx context.Context, certID string) ([]*projection.DisputeRecord, error) {
	if m.ListDisputesForCertFunc != nil {
		return m.ListDisputesForCertFunc(ctx, certID)
	}
	return nil, nil
}

func (m *MockStore) GetCursor(ctx context.Context, typ ledger.EventType) (string, error) {
	if m.GetCursorFunc != nil {
		return m.GetCursorFunc(ctx, typ)
	}
	return "", nil
}

func (m *MockStore) SetCursor(ctx context.Context, typ ledger.EventType, cursor string) error {
	if m.SetCursorFunc != nil {
		return m.SetCursorFunc(ctx, typ, cursor)
	}
	return nil
}

// MockSource is a mock implementation of ledger.EventSource
type MockSource struct {
	QueryEventsFunc func(ctx context.Context, typ ledger.EventType, cursor string, limit int) (*ledger.EventPage, error)
}

func (m *MockSource) QueryEvents(ctx context.Context, typ ledger.EventType, cursor string, limit int) (*ledger.EventPage, error) {
	if m.QueryEventsFunc != nil {
		return m.QueryEventsFunc(ctx, typ, cursor, limit)
	}
	return &ledger.EventPage{}, nil
}
