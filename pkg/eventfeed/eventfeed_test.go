package eventfeed

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
	"github.com/hatchmark/hatchmark/pkg/ledger/memledger"
	"github.com/hatchmark/hatchmark/pkg/phash"
)

func newFeedServer(t *testing.T, l *memledger.Ledger) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/ledger", NewHandler(l, zap.NewNop()).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	l := memledger.New()
	ctx := context.Background()

	var certIDs []string
	for i := 0; i < 3; i++ {
		cert, err := l.Register(ctx, ledger.RegisterParams{
			ImageHash: phash.Fingerprint("0123456789abcdef"),
			Title:     "Sunset",
			Actor:     ledger.Address{0x01},
		})
		require.NoError(t, err)
		certIDs = append(certIDs, cert.ID)
	}

	srv := newFeedServer(t, l)
	client := NewClient(srv.URL + "/ledger")

	page1, err := client.QueryEvents(ctx, ledger.EventRegistration, "", 2)
	require.NoError(t, err)
	require.Len(t, page1.Events, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, certIDs[0], page1.Events[0].Registration.CertID)

	page2, err := client.QueryEvents(ctx, ledger.EventRegistration, page1.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Events, 1)
	assert.False(t, page2.HasMore)
	assert.Equal(t, certIDs[2], page2.Events[0].Registration.CertID)
}

func TestClient_EmptyStream(t *testing.T) {
	srv := newFeedServer(t, memledger.New())
	client := NewClient(srv.URL + "/ledger")

	page, err := client.QueryEvents(context.Background(), ledger.EventDispute, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.False(t, page.HasMore)
}

func TestClient_UnknownEventType(t *testing.T) {
	srv := newFeedServer(t, memledger.New())
	client := NewClient(srv.URL + "/ledger")

	_, err := client.QueryEvents(context.Background(), "bogus", "", 10)
	assert.Error(t, err)
}

func TestClient_ServerDown(t *testing.T) {
	srv := newFeedServer(t, memledger.New())
	srv.Close()
	client := NewClient(srv.URL + "/ledger")

	_, err := client.QueryEvents(context.Background(), ledger.EventRegistration, "", 10)
	assert.Error(t, err)
}

func TestClient_SubmitRoundTrip(t *testing.T) {
	l := memledger.New()
	srv := newFeedServer(t, l)
	client := NewClient(srv.URL + "/ledger")
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := ledger.NewRegisterTx(ledger.RegisterPayload{
		ImageHash: "0123456789abcdef",
		Title:     "Sunset",
	})
	require.NoError(t, err)

	signed, err := ledger.SignTx(tx, key)
	require.NoError(t, err)

	result, err := client.Submit(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, ledger.EventRegistration, result.Event)
	assert.NotEmpty(t, result.ObjectID)

	// The committed transaction is visible on the event stream.
	page, err := client.QueryEvents(ctx, ledger.EventRegistration, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, result.ObjectID, page.Events[0].Registration.CertID)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), page.Events[0].Registration.Creator)
}

func TestClient_Submit_SemanticRejection(t *testing.T) {
	srv := newFeedServer(t, memledger.New())
	client := NewClient(srv.URL + "/ledger")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	// Flagging a certificate that does not exist is rejected by the
	// ledger; the client must surface it as the category the status
	// implies, not as a transport failure.
	tx, err := ledger.NewFlagTx(ledger.FlagPayload{
		CertID:      "missing",
		FlaggedHash: "0123456789abcdef",
		Score:       5,
		Stake:       decimal.NewFromInt(25),
	})
	require.NoError(t, err)

	signed, err := ledger.SignTx(tx, key)
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), signed)
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestClient_Submit_TamperedPayload(t *testing.T) {
	srv := newFeedServer(t, memledger.New())
	client := NewClient(srv.URL + "/ledger")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := ledger.NewRegisterTx(ledger.RegisterPayload{
		ImageHash: "0123456789abcdef",
		Title:     "Sunset",
	})
	require.NoError(t, err)

	signed, err := ledger.SignTx(tx, key)
	require.NoError(t, err)
	signed.Unsigned.Payload = []byte(`{"image_hash":"ffffffffffffffff","title":"Stolen"}`)

	_, err = client.Submit(context.Background(), signed)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
}

func TestHandler_RejectsBadLimit(t *testing.T) {
	srv := newFeedServer(t, memledger.New())

	resp, err := srv.Client().Get(srv.URL + "/ledger/events/registration?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}
