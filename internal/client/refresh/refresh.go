// Package refresh exchanges a stale bearer token for a fresh one through the
// platform's refresh endpoint. A failed exchange is fatal to the session:
// credentials are cleared and the caller is forced back to login.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/reviewly/authsession/internal/client/credential"
	"github.com/reviewly/authsession/internal/client/httpapi"
	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/logging"
)

const (
	refreshPath = "/api/auth/refresh"

	// DefaultMaxAttempts bounds retries of a transiently failing exchange.
	DefaultMaxAttempts = 3

	backoffBase = 500 * time.Millisecond
)

// CredentialStore is the slice of the credential store the coordinator uses.
type CredentialStore interface {
	Load(ctx context.Context) (credential.Credential, error)
	Save(ctx context.Context, cred credential.Credential) error
	Clear(ctx context.Context)
}

// Config tunes a Coordinator.
type Config struct {
	// MaxAttempts caps attempts against a transiently failing endpoint
	// (network errors and timeouts only; a rejection aborts immediately).
	// Zero means DefaultMaxAttempts.
	MaxAttempts int

	// OnSessionExpired runs after a terminal refresh failure has cleared
	// the credentials, so the application can route the user back to the
	// login screen. May be nil.
	OnSessionExpired func()
}

// Coordinator performs the token exchange. Concurrent callers are coalesced:
// however many requests observe an expired token at once, a single exchange
// hits the endpoint and every waiter receives its result.
type Coordinator struct {
	api   *httpapi.Client
	store CredentialStore
	log   logging.Logger
	cfg   Config

	group singleflight.Group
}

// New builds a Coordinator. The api client must not be decorated with the
// auth transport's refresh behavior; the coordinator marks its own calls
// with httpapi.Bypass anyway, so sharing a client stays safe.
func New(api *httpapi.Client, store CredentialStore, cfg Config, log logging.Logger) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Coordinator{api: api, store: store, cfg: cfg, log: log}
}

type refreshResponse struct {
	Token string `json:"token"`
}

// Refresh exchanges the current (possibly stale) token for a new one, stores
// it, and returns it. On terminal failure it clears all credentials, fires
// OnSessionExpired, and returns ErrSessionExpired.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	// The winning caller's context drives the exchange; coalesced waiters
	// share its outcome.
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Coordinator) exchange(ctx context.Context) (string, error) {
	cred, err := c.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if cred.Token == "" {
		return "", common.ErrNoCredential
	}

	ctx = httpapi.Bypass(ctx)

	var resp refreshResponse
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), retry.NewFibonacci(backoffBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.api.PostWithBearer(ctx, refreshPath, cred.Token, nil, &resp)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrNetwork) || errors.Is(err, common.ErrTimeout) {
			return retry.RetryableError(err)
		}
		return err
	})

	if err == nil && resp.Token == "" {
		err = fmt.Errorf("refresh endpoint returned no token")
	}
	if err != nil {
		c.log.Warn(ctx, "token refresh failed, clearing credentials", "error", err)
		c.store.Clear(ctx)
		if c.cfg.OnSessionExpired != nil {
			c.cfg.OnSessionExpired()
		}
		return "", fmt.Errorf("%w: %v", common.ErrSessionExpired, err)
	}

	cred.Token = resp.Token
	if err := c.store.Save(ctx, cred); err != nil {
		// The token is still usable in memory for this process.
		c.log.Warn(ctx, "refreshed token could not be persisted", "error", err)
	}
	return resp.Token, nil
}
