package ledger

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/phash"
)

// TxKind names the registry operation a transaction performs.
type TxKind string

const (
	TxRegister TxKind = "register"
	TxFlag     TxKind = "flag"
	TxResolve  TxKind = "resolve"
)

// RegisterPayload is the register transaction body. The actor is not part
// of the payload: it is recovered from the submitter's signature.
type RegisterPayload struct {
	ImageHash   phash.Fingerprint `json:"image_hash"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

// FlagPayload is the flag transaction body.
type FlagPayload struct {
	CertID      string            `json:"cert_id"`
	FlaggedHash phash.Fingerprint `json:"flagged_hash"`
	Score       uint8             `json:"score"`
	Stake       decimal.Decimal   `json:"stake"`
}

// ResolvePayload is the resolve transaction body.
type ResolvePayload struct {
	DisputeID  string     `json:"dispute_id"`
	CertID     string     `json:"cert_id"`
	Resolution Resolution `json:"resolution"`
}

// UnsignedTx is the transaction descriptor handed to a client for signing.
// Digest commits to kind, nonce and payload; signing the digest authorizes
// exactly this operation once.
type UnsignedTx struct {
	Kind    TxKind          `json:"kind"`
	Nonce   string          `json:"nonce"`
	Payload json.RawMessage `json:"payload"`
	Digest  common.Hash     `json:"digest"`
}

func newTx(kind TxKind, payload any) (*UnsignedTx, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	tx := &UnsignedTx{
		Kind:    kind,
		Nonce:   uuid.NewString(),
		Payload: raw,
	}
	tx.Digest = tx.computeDigest()
	return tx, nil
}

func (tx *UnsignedTx) computeDigest() common.Hash {
	return crypto.Keccak256Hash([]byte(tx.Kind), []byte(tx.Nonce), tx.Payload)
}

// NewRegisterTx builds an unsigned register transaction.
func NewRegisterTx(p RegisterPayload) (*UnsignedTx, error) {
	if err := p.ImageHash.Validate(); err != nil {
		return nil, err
	}
	if p.Title == "" {
		return nil, apperrors.ValidationError(nil, "title is required")
	}
	return newTx(TxRegister, p)
}

// NewFlagTx builds an unsigned flag transaction.
func NewFlagTx(p FlagPayload) (*UnsignedTx, error) {
	if err := p.FlaggedHash.Validate(); err != nil {
		return nil, err
	}
	if p.CertID == "" {
		return nil, apperrors.ValidationError(nil, "cert_id is required")
	}
	return newTx(TxFlag, p)
}

// NewResolveTx builds an unsigned resolve transaction.
func NewResolveTx(p ResolvePayload) (*UnsignedTx, error) {
	if p.DisputeID == "" || p.CertID == "" {
		return nil, apperrors.ValidationError(nil, "dispute_id and cert_id are required")
	}
	if p.Resolution != DisputeValid && p.Resolution != DisputeInvalid {
		return nil, apperrors.ValidationError(nil, "resolution must be valid or invalid")
	}
	return newTx(TxResolve, p)
}

// SignedTx is an UnsignedTx plus the actor's 65-byte secp256k1 signature
// over the digest.
type SignedTx struct {
	Unsigned  *UnsignedTx `json:"unsigned"`
	Signature []byte      `json:"signature"`
}

// SignTx signs the transaction digest with the actor's key.
func SignTx(tx *UnsignedTx, key *ecdsa.PrivateKey) (*SignedTx, error) {
	sig, err := crypto.Sign(tx.Digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return &SignedTx{Unsigned: tx, Signature: sig}, nil
}

// Sender recovers the signing address. It also re-derives the digest, so a
// tampered payload fails recovery against the claimed digest.
func (s *SignedTx) Sender() (Address, error) {
	if s.Unsigned == nil {
		return Address{}, apperrors.ValidationError(nil, "missing unsigned transaction")
	}
	digest := s.Unsigned.computeDigest()
	if digest != s.Unsigned.Digest {
		return Address{}, apperrors.ValidationError(nil, "transaction digest mismatch")
	}
	pub, err := crypto.SigToPub(digest.Bytes(), s.Signature)
	if err != nil {
		return Address{}, apperrors.ValidationError(err, "invalid transaction signature")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// TxResult reports a committed transaction.
type TxResult struct {
	Digest string `json:"digest"`
	// ObjectID is the certificate or dispute the transaction created or
	// mutated.
	ObjectID string    `json:"object_id"`
	Event    EventType `json:"event"`
}
