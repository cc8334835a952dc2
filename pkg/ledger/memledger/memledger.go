// Package memledger is the in-process reference implementation of the
// registry state machine. Certificates live in an arena keyed by id with an
// explicit owner checked on every mutating call; disputes carry an
// optimistic version guard so a resolution commits exactly once. A single
// mutex serializes all mutations, standing in for the ledger's transaction
// atomicity.
package memledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
)

// DefaultMinStake is the minimum dispute stake unless overridden.
var DefaultMinStake = decimal.NewFromInt(10)

// Ledger implements ledger.Registry, ledger.EventSource and
// ledger.Submitter in process.
type Ledger struct {
	mu       sync.Mutex
	certs    map[string]*ledger.Certificate
	disputes map[string]*ledger.Dispute
	events   []ledger.Event
	balances map[ledger.Address]decimal.Decimal

	minStake decimal.Decimal
	now      func() time.Time
	seq      uint64
}

// Option configures the ledger.
type Option func(*Ledger)

// WithMinStake overrides the minimum dispute stake.
func WithMinStake(min decimal.Decimal) Option {
	return func(l *Ledger) { l.minStake = min }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		certs:    make(map[string]*ledger.Certificate),
		disputes: make(map[string]*ledger.Dispute),
		balances: make(map[ledger.Address]decimal.Decimal),
		minStake: DefaultMinStake,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MinStake reports the configured minimum dispute stake.
func (l *Ledger) MinStake() decimal.Decimal {
	return l.minStake
}

// Register creates a certificate owned by the actor and appends a
// registration event. Always succeeds for well-formed input.
func (l *Ledger) Register(_ context.Context, p ledger.RegisterParams) (*ledger.Certificate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.register(p, l.syntheticDigest())
}

// register validates and commits. Validation lives here, not in the
// exported wrapper, so transactions arriving through Submit pass the
// same gates.
func (l *Ledger) register(p ledger.RegisterParams, txDigest string) (*ledger.Certificate, error) {
	if err := p.ImageHash.Validate(); err != nil {
		return nil, err
	}
	if p.Title == "" {
		return nil, apperrors.ValidationError(nil, "title is required")
	}

	cert := &ledger.Certificate{
		ID:          uuid.NewString(),
		ImageHash:   p.ImageHash,
		Creator:     p.Actor,
		CreatedAt:   l.now().UTC(),
		Title:       p.Title,
		Description: p.Description,
	}
	l.certs[cert.ID] = cert

	l.append(ledger.Event{
		Type:     ledger.EventRegistration,
		TxDigest: txDigest,
		Registration: &ledger.RegistrationEvent{
			CertID:      cert.ID,
			ImageHash:   cert.ImageHash,
			Creator:     cert.Creator,
			Title:       cert.Title,
			Description: cert.Description,
			Timestamp:   cert.CreatedAt,
		},
	})
	return cert, nil
}

// Flag opens a staked dispute against a certificate.
func (l *Ledger) Flag(_ context.Context, p ledger.FlagParams) (*ledger.Dispute, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flag(p, l.syntheticDigest())
}

func (l *Ledger) flag(p ledger.FlagParams, txDigest string) (*ledger.Dispute, error) {
	if err := p.FlaggedHash.Validate(); err != nil {
		return nil, err
	}
	if _, ok := l.certs[p.CertID]; !ok {
		return nil, apperrors.NotFoundError(nil, fmt.Sprintf("certificate %s not found", p.CertID))
	}
	if p.Stake.LessThan(l.minStake) {
		return nil, apperrors.InsufficientStakeError(nil,
			fmt.Sprintf("stake %s below minimum %s", p.Stake, l.minStake))
	}

	d := &ledger.Dispute{
		ID:              uuid.NewString(),
		OriginalCertID:  p.CertID,
		FlaggedHash:     p.FlaggedHash,
		Flagger:         p.Actor,
		SimilarityScore: p.Score,
		Status:          ledger.DisputeOpen,
		Stake:           p.Stake,
		CreatedAt:       l.now().UTC(),
		Version:         1,
	}
	l.disputes[d.ID] = d

	l.append(ledger.Event{
		Type:     ledger.EventDispute,
		TxDigest: txDigest,
		Dispute: &ledger.DisputeEvent{
			DisputeID:   d.ID,
			CertID:      d.OriginalCertID,
			FlaggedHash: d.FlaggedHash,
			Flagger:     d.Flagger,
			Score:       d.SimilarityScore,
			Stake:       d.Stake,
			Timestamp:   d.CreatedAt,
		},
	})
	return d, nil
}

// Resolve transitions an open dispute to its terminal status. Only the
// certificate's creator may resolve, and only once.
func (l *Ledger) Resolve(_ context.Context, p ledger.ResolveParams) (*ledger.Dispute, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolve(p, l.syntheticDigest())
}

func (l *Ledger) resolve(p ledger.ResolveParams, txDigest string) (*ledger.Dispute, error) {
	if p.Resolution != ledger.DisputeValid && p.Resolution != ledger.DisputeInvalid {
		return nil, apperrors.ValidationError(nil, "resolution must be valid or invalid")
	}
	d, ok := l.disputes[p.DisputeID]
	if !ok {
		return nil, apperrors.NotFoundError(nil, fmt.Sprintf("dispute %s not found", p.DisputeID))
	}
	cert, ok := l.certs[p.CertID]
	if !ok || cert.ID != d.OriginalCertID {
		return nil, apperrors.ValidationError(nil, "certificate does not match dispute")
	}
	if cert.Creator != p.Actor {
		return nil, apperrors.UnAuthorizedError(nil, "only the certificate creator may resolve")
	}
	if d.Status != ledger.DisputeOpen {
		return nil, apperrors.AlreadyResolvedError(nil,
			fmt.Sprintf("dispute %s already %s", d.ID, d.Status))
	}

	expected := d.Version
	d.Status = p.Resolution
	d.Version = expected + 1

	// Stake leaves escrow: to the flagger when the claim held, to the
	// creator when it did not.
	stakeTo := cert.Creator
	if p.Resolution == ledger.DisputeValid {
		stakeTo = d.Flagger
	}
	l.balances[stakeTo] = l.balances[stakeTo].Add(d.Stake)

	l.append(ledger.Event{
		Type:     ledger.EventDisputeResolved,
		TxDigest: txDigest,
		DisputeResolved: &ledger.DisputeResolvedEvent{
			DisputeID:  d.ID,
			CertID:     cert.ID,
			Resolution: d.Status,
			StakeTo:    stakeTo,
			Timestamp:  l.now().UTC(),
		},
	})
	cp := *d
	return &cp, nil
}

// GetCertificate returns a certificate by id.
func (l *Ledger) GetCertificate(_ context.Context, id string) (*ledger.Certificate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cert, ok := l.certs[id]
	if !ok {
		return nil, apperrors.NotFoundError(nil, fmt.Sprintf("certificate %s not found", id))
	}
	cp := *cert
	return &cp, nil
}

// GetDispute returns a dispute by id.
func (l *Ledger) GetDispute(_ context.Context, id string) (*ledger.Dispute, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.disputes[id]
	if !ok {
		return nil, apperrors.NotFoundError(nil, fmt.Sprintf("dispute %s not found", id))
	}
	cp := *d
	return &cp, nil
}

// BalanceOf reports released stake credited to an address.
func (l *Ledger) BalanceOf(addr ledger.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// QueryEvents returns one bounded, oldest-first page of the typed stream
// after the cursor. Cursor "" starts from the beginning; the stream is
// replayable from any cursor.
func (l *Ledger) QueryEvents(_ context.Context, typ ledger.EventType, cursor string, limit int) (*ledger.EventPage, error) {
	if limit <= 0 {
		limit = 100
	}
	var after uint64
	if cursor != "" {
		v, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, apperrors.ValidationError(err, "malformed event cursor")
		}
		after = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	page := &ledger.EventPage{NextCursor: cursor}
	for _, ev := range l.events {
		if ev.Type != typ || ev.Seq <= after {
			continue
		}
		if len(page.Events) == limit {
			page.HasMore = true
			break
		}
		page.Events = append(page.Events, ev)
		page.NextCursor = strconv.FormatUint(ev.Seq, 10)
	}
	return page, nil
}

// Submit verifies a signed transaction, recovers the actor and dispatches
// the operation it names. Semantic rejections surface as the operation's
// own error.
func (l *Ledger) Submit(_ context.Context, tx *ledger.SignedTx) (*ledger.TxResult, error) {
	actor, err := tx.Sender()
	if err != nil {
		return nil, err
	}
	digest := tx.Unsigned.Digest.Hex()

	l.mu.Lock()
	defer l.mu.Unlock()

	switch tx.Unsigned.Kind {
	case ledger.TxRegister:
		var p ledger.RegisterPayload
		if err := json.Unmarshal(tx.Unsigned.Payload, &p); err != nil {
			return nil, apperrors.ValidationError(err, "malformed register payload")
		}
		cert, err := l.register(ledger.RegisterParams{
			ImageHash:   p.ImageHash,
			Title:       p.Title,
			Description: p.Description,
			Actor:       actor,
		}, digest)
		if err != nil {
			return nil, err
		}
		return &ledger.TxResult{Digest: digest, ObjectID: cert.ID, Event: ledger.EventRegistration}, nil

	case ledger.TxFlag:
		var p ledger.FlagPayload
		if err := json.Unmarshal(tx.Unsigned.Payload, &p); err != nil {
			return nil, apperrors.ValidationError(err, "malformed flag payload")
		}
		d, err := l.flag(ledger.FlagParams{
			CertID:      p.CertID,
			FlaggedHash: p.FlaggedHash,
			Score:       p.Score,
			Stake:       p.Stake,
			Actor:       actor,
		}, digest)
		if err != nil {
			return nil, err
		}
		return &ledger.TxResult{Digest: digest, ObjectID: d.ID, Event: ledger.EventDispute}, nil

	case ledger.TxResolve:
		var p ledger.ResolvePayload
		if err := json.Unmarshal(tx.Unsigned.Payload, &p); err != nil {
			return nil, apperrors.ValidationError(err, "malformed resolve payload")
		}
		d, err := l.resolve(ledger.ResolveParams{
			DisputeID:  p.DisputeID,
			CertID:     p.CertID,
			Resolution: p.Resolution,
			Actor:      actor,
		}, digest)
		if err != nil {
			return nil, err
		}
		return &ledger.TxResult{Digest: digest, ObjectID: d.ID, Event: ledger.EventDisputeResolved}, nil

	default:
		return nil, apperrors.ValidationError(nil, fmt.Sprintf("unknown transaction kind %q", tx.Unsigned.Kind))
	}
}

// append assigns the next sequence number. Callers hold l.mu.
func (l *Ledger) append(ev ledger.Event) {
	l.seq++
	ev.Seq = l.seq
	l.events = append(l.events, ev)
}

// syntheticDigest stands in for a transaction digest when an operation is
// invoked directly instead of through Submit. Callers hold l.mu.
func (l *Ledger) syntheticDigest() string {
	return crypto.Keccak256Hash([]byte(uuid.NewString())).Hex()
}
