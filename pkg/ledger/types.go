// Package ledger defines the authoritative registry state machine: the
// Certificate and Dispute objects, the operations that mutate them, and the
// append-only event log replicated by the indexer.
package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/hatchmark/hatchmark/pkg/phash"
)

// Address identifies a ledger account.
type Address = common.Address

// Certificate is a creator-owned record asserting that a fingerprint was
// registered by a creator at a point in time. Immutable once created,
// never deleted.
type Certificate struct {
	ID          string            `json:"id"`
	ImageHash   phash.Fingerprint `json:"image_hash"`
	Creator     Address           `json:"creator"`
	CreatedAt   time.Time         `json:"created_at"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

// DisputeStatus is the dispute state machine position.
type DisputeStatus string

const (
	DisputeOpen    DisputeStatus = "open"
	DisputeValid   DisputeStatus = "valid"
	DisputeInvalid DisputeStatus = "invalid"
)

// Terminal reports whether the status can no longer transition.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeValid || s == DisputeInvalid
}

// Resolution is the outcome a certificate creator assigns to a dispute.
type Resolution = DisputeStatus

// Dispute is a challenger's staked claim that a flagged fingerprint
// infringes an existing certificate. Status transitions exactly once,
// Open -> Valid | Invalid, driven by the certificate's creator.
type Dispute struct {
	ID              string            `json:"id"`
	OriginalCertID  string            `json:"original_cert_id"`
	FlaggedHash     phash.Fingerprint `json:"flagged_hash"`
	Flagger         Address           `json:"flagger"`
	SimilarityScore uint8             `json:"similarity_score"`
	Status          DisputeStatus     `json:"status"`
	Stake           decimal.Decimal   `json:"stake"`
	CreatedAt       time.Time         `json:"created_at"`

	// Version guards against double resolution; bumped on every transition.
	Version int64 `json:"version"`
}

// EventType names one of the replicated event streams.
type EventType string

const (
	EventRegistration    EventType = "registration"
	EventDispute         EventType = "dispute"
	EventDisputeResolved EventType = "dispute_resolved"
)

// EventTypes lists every stream the indexer replicates.
func EventTypes() []EventType {
	return []EventType{EventRegistration, EventDispute, EventDisputeResolved}
}

// RegistrationEvent is emitted by a successful register transaction.
type RegistrationEvent struct {
	CertID      string            `json:"cert_id"`
	ImageHash   phash.Fingerprint `json:"image_hash"`
	Creator     Address           `json:"creator"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
}

// DisputeEvent is emitted by a successful flag transaction.
type DisputeEvent struct {
	DisputeID   string            `json:"dispute_id"`
	CertID      string            `json:"cert_id"`
	FlaggedHash phash.Fingerprint `json:"flagged_hash"`
	Flagger     Address           `json:"flagger"`
	Score       uint8             `json:"score"`
	Stake       decimal.Decimal   `json:"stake"`
	Timestamp   time.Time         `json:"timestamp"`
}

// DisputeResolvedEvent is emitted by a successful resolve transaction.
type DisputeResolvedEvent struct {
	DisputeID  string        `json:"dispute_id"`
	CertID     string        `json:"cert_id"`
	Resolution DisputeStatus `json:"resolution"`
	// StakeTo is the address the locked stake was released to.
	StakeTo   Address   `json:"stake_to"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one entry of the append-only log. Exactly one of the payload
// fields matching Type is set.
type Event struct {
	Seq      uint64    `json:"seq"`
	Type     EventType `json:"type"`
	TxDigest string    `json:"tx_digest"`

	Registration    *RegistrationEvent    `json:"registration,omitempty"`
	Dispute         *DisputeEvent         `json:"dispute,omitempty"`
	DisputeResolved *DisputeResolvedEvent `json:"dispute_resolved,omitempty"`
}

// EventPage is one bounded, oldest-first page of a typed event stream.
type EventPage struct {
	Events []Event
	// NextCursor resumes the stream after the last event of this page.
	// Opaque to callers; the in-process ledger issues decimal sequence
	// numbers.
	NextCursor string
	HasMore    bool
}
