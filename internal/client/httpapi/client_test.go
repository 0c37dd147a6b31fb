package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/logging"
)

func newTestClient(srv *httptest.Server, timeout time.Duration) *Client {
	return New(srv.URL, timeout, nil, logging.NewDiscard())
}

func TestClient_PostRoundTrip(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}
	type reply struct {
		OK bool `json:"ok"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get(common.RequestIDHeaderName))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out reply
	err := newTestClient(srv, 0).Post(context.Background(), "/api/auth/login", payload{Email: "a@x"}, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
}

func TestClient_PostWithBearer_AttachesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, common.BearerPrefix+"stale-token", r.Header.Get(common.AuthHeaderName))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv, 0).PostWithBearer(context.Background(), "/api/auth/refresh", "stale-token", nil, nil)
	require.NoError(t, err)
}

func TestClient_StatusToSentinelMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, common.ErrUnauthorized},
		{http.StatusForbidden, common.ErrForbidden},
		{http.StatusNotFound, common.ErrNotFound},
		{http.StatusInternalServerError, common.ErrServer},
		{http.StatusBadGateway, common.ErrServer},
		{http.StatusTeapot, common.ErrServer},
	}

	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		err := newTestClient(srv, 0).Get(context.Background(), "/whatever", nil)
		require.ErrorIs(t, err, tc.want, "status %d", tc.status)
		srv.Close()
	}
}

func TestClient_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	err := newTestClient(srv, 50*time.Millisecond).Get(context.Background(), "/slow", nil)
	require.ErrorIs(t, err, common.ErrTimeout)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	err := newTestClient(srv, 0).Get(context.Background(), "/", nil)
	require.ErrorIs(t, err, common.ErrNetwork)
}

func TestClient_NoCredentialMutationOnFailure(t *testing.T) {
	// Transport failures surface as errors; nothing in the client touches
	// credentials. This guards the error taxonomy against accidental
	// re-wrapping of already-normalized errors.
	require.ErrorIs(t, mapTransportError(common.ErrSessionExpired), common.ErrSessionExpired)
	require.ErrorIs(t, mapTransportError(common.ErrNoCredential), common.ErrNoCredential)
	require.ErrorIs(t, mapTransportError(context.DeadlineExceeded), common.ErrTimeout)
}
