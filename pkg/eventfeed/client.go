package eventfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
)

const defaultClientTimeout = 30 * time.Second

// Client implements ledger.EventSource and ledger.Submitter against a
// remote event feed.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a new event feed client for the given base URL,
// e.g. "http://api-server:8080/ledger".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryEvents fetches one page of the typed event stream.
func (c *Client) QueryEvents(ctx context.Context, typ ledger.EventType, cursor string, limit int) (*ledger.EventPage, error) {
	u, err := url.Parse(fmt.Sprintf("%s/events/%s", c.baseURL, typ))
	if err != nil {
		return nil, fmt.Errorf("build event feed url: %w", err)
	}

	q := u.Query()
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build event feed request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.LedgerError(err, "event feed unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, apperrors.LedgerError(err, "event feed read failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.LedgerError(
			fmt.Errorf("event feed returned %d: %s", resp.StatusCode, body),
			"event feed request failed")
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperrors.LedgerError(err, "event feed returned malformed page")
	}

	return &ledger.EventPage{
		Events:     p.Events,
		NextCursor: p.NextCursor,
		HasMore:    p.HasMore,
	}, nil
}

// Submit sends a signed transaction to the remote ledger. Semantic
// rejections come back as ServiceErrors with the category the status code
// implies, so callers can tell them from transport failures and avoid
// retrying what the ledger has already refused.
func (c *Client) Submit(ctx context.Context, tx *ledger.SignedTx) (*ledger.TxResult, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.LedgerError(err, "ledger unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.LedgerError(err, "submit response read failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, submitError(resp.StatusCode, body)
	}

	var result ledger.TxResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.LedgerError(err, "submit returned malformed result")
	}
	return &result, nil
}

// submitError rebuilds a ServiceError from the wire error shape.
func submitError(status int, body []byte) error {
	var wire struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &wire)
	msg := wire.Error
	if msg == "" {
		msg = fmt.Sprintf("submit returned %d", status)
	}

	cause := fmt.Errorf("submit returned %d: %s", status, body)
	switch status {
	case http.StatusBadRequest:
		return apperrors.ValidationError(cause, msg)
	case http.StatusUnauthorized:
		return apperrors.UnAuthorizedError(cause, msg)
	case http.StatusNotFound:
		return apperrors.NotFoundError(cause, msg)
	case http.StatusConflict:
		return apperrors.AlreadyResolvedError(cause, msg)
	default:
		return apperrors.LedgerError(cause, msg)
	}
}
