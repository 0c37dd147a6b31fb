package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/reviewly/authsession/internal/client/credential"
	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/logging"
)

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

type fakeStore struct {
	cred    credential.Credential
	loads   atomic.Int32
	loadErr error
}

func (f *fakeStore) Load(ctx context.Context) (credential.Credential, error) {
	f.loads.Add(1)
	return f.cred, f.loadErr
}

type fakeRefresher struct {
	token string
	err   error
	calls atomic.Int32
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	f.calls.Add(1)
	return f.token, f.err
}

func authedClient(srv *httptest.Server, store *fakeStore, r *fakeRefresher) *Client {
	return New(srv.URL, 0, &AuthTransport{
		Store:     store,
		Refresher: r,
		Log:       logging.NewDiscard(),
	}, logging.NewDiscard())
}

func testCred(tok string) credential.Credential {
	return credential.Credential{
		Token: tok,
		User:  &credential.User{ID: "u-1", Name: "A", Email: "a@x"},
	}
}

func TestAuthTransport_AttachesFreshToken(t *testing.T) {
	valid := signToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, common.BearerPrefix+valid, r.Header.Get(common.AuthHeaderName))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(valid)}
	refresher := &fakeRefresher{token: "unused"}

	err := authedClient(srv, store, refresher).Get(context.Background(), "/reviews", nil)
	require.NoError(t, err)
	require.Zero(t, refresher.calls.Load(), "a fresh token must not trigger a refresh")
}

func TestAuthTransport_RefreshesExpiredTokenBeforeSend(t *testing.T) {
	expired := signToken(t, time.Now().Add(-time.Second))
	fresh := signToken(t, time.Now().Add(time.Hour))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// The outgoing request must carry the new token, not the old one.
		require.Equal(t, common.BearerPrefix+fresh, r.Header.Get(common.AuthHeaderName))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(expired)}
	refresher := &fakeRefresher{token: fresh}

	err := authedClient(srv, store, refresher).Get(context.Background(), "/reviews", nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), refresher.calls.Load())
	require.Equal(t, int32(1), hits.Load())
}

func TestAuthTransport_RetriesExactlyOnceOnUnauthorized(t *testing.T) {
	valid := signToken(t, time.Now().Add(time.Hour))
	fresh := signToken(t, time.Now().Add(2*time.Hour))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, common.BearerPrefix+fresh, r.Header.Get(common.AuthHeaderName))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(valid)}
	refresher := &fakeRefresher{token: fresh}

	err := authedClient(srv, store, refresher).Get(context.Background(), "/reviews", nil)
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load(), "one original call plus one retry")
	require.Equal(t, int32(1), refresher.calls.Load())
}

func TestAuthTransport_SecondUnauthorizedPropagates(t *testing.T) {
	valid := signToken(t, time.Now().Add(time.Hour))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(valid)}
	refresher := &fakeRefresher{token: valid}

	err := authedClient(srv, store, refresher).Get(context.Background(), "/reviews", nil)
	require.ErrorIs(t, err, common.ErrUnauthorized)
	require.Equal(t, int32(2), hits.Load(), "exactly one retry, never two")
	require.Equal(t, int32(1), refresher.calls.Load())
}

func TestAuthTransport_RetryReplaysRequestBody(t *testing.T) {
	valid := signToken(t, time.Now().Add(time.Hour))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"title":"great"}`, string(body), "retried call must carry the identical body")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(valid)}
	refresher := &fakeRefresher{token: valid}

	body := map[string]string{"title": "great"}
	err := authedClient(srv, store, refresher).Post(context.Background(), "/reviews", body, nil)
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestAuthTransport_RefreshFailureSurfaces(t *testing.T) {
	expired := signToken(t, time.Now().Add(-time.Second))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(expired)}
	refresher := &fakeRefresher{err: common.ErrSessionExpired}

	err := authedClient(srv, store, refresher).Get(context.Background(), "/reviews", nil)
	require.ErrorIs(t, err, common.ErrSessionExpired)
	require.Zero(t, hits.Load(), "a failed pre-send refresh must not let the call go out")
}

func TestAuthTransport_BypassSkipsInterception(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get(common.AuthHeaderName))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{cred: testCred(signToken(t, time.Now().Add(time.Hour)))}
	refresher := &fakeRefresher{}

	err := authedClient(srv, store, refresher).Get(Bypass(context.Background()), "/api/auth/refresh", nil)
	require.NoError(t, err)
	require.Zero(t, store.loads.Load(), "bypassed calls must not consult the store")
	require.Zero(t, refresher.calls.Load())
}

func TestAuthTransport_NoTokenSendsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get(common.AuthHeaderName))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{} // nothing stored
	refresher := &fakeRefresher{}

	err := authedClient(srv, store, refresher).Get(context.Background(), "/public", nil)
	require.NoError(t, err)
	require.Zero(t, refresher.calls.Load(), "no stored token means nothing to refresh up front")
}
