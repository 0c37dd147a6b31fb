// Package httpapi is the HTTP transport layer of the session manager: a thin
// JSON client for the platform API plus the bearer-auth round tripper that
// wraps every outgoing call.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/logging"
)

// DefaultTimeout bounds every outgoing call unless configured otherwise.
const DefaultTimeout = 10 * time.Second

// Client issues JSON requests against the platform API and normalizes
// transport failures and HTTP statuses into the shared sentinel errors.
type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// New builds a Client for baseURL. A nil rt means http.DefaultTransport;
// pass an *AuthTransport to get bearer attachment and retry-once behavior.
func New(baseURL string, timeout time.Duration, rt http.RoundTripper, log logging.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: rt},
		log:     log,
	}
}

// Post sends body as JSON and decodes the JSON reply into out. Either may
// be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, "", body, out)
}

// PostWithBearer is Post with an explicit bearer token attached directly,
// bypassing whatever transport decoration the client carries. The refresh
// coordinator uses it to authenticate with the stale token.
func (c *Client) PostWithBearer(ctx context.Context, path, tok string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, tok, body, out)
}

// Get decodes the JSON reply of a GET into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthHeaderName, common.BearerPrefix+bearer)
	}
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.log.Info(ctx, "api call",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if err := errorFromStatus(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorFromStatus maps HTTP statuses to the stable error taxonomy surfaced
// to callers.
func errorFromStatus(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case code == http.StatusForbidden:
		return common.ErrForbidden
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code >= 500:
		return common.ErrServer
	default:
		return fmt.Errorf("%w: unexpected status %d", common.ErrServer, code)
	}
}

// mapTransportError normalizes errors returned by http.Client.Do. Errors the
// auth transport already classified pass through unchanged.
func mapTransportError(err error) error {
	switch {
	case errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrNoCredential),
		errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrTimeout),
		errors.Is(err, common.ErrNetwork):
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", common.ErrNetwork, err)
}
