package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/reviewly/authsession/internal/client/credential"
	"github.com/reviewly/authsession/internal/client/token"
	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/logging"
)

// CredentialReader supplies the current credential before each call.
type CredentialReader interface {
	Load(ctx context.Context) (credential.Credential, error)
}

// Refresher exchanges the current token for a fresh one.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// AuthTransport decorates a RoundTripper with bearer authentication. Before
// send it attaches the stored token, refreshing first when the token already
// looks expired. On an unauthorized reply it refreshes and resubmits the
// identical call exactly once; the second reply is returned as-is, so no
// call ever retries more than once even when the refresh endpoint itself is
// failing.
type AuthTransport struct {
	Base      http.RoundTripper
	Store     CredentialReader
	Refresher Refresher
	Log       logging.Logger
}

type bypassKey struct{}

// Bypass marks a request's context so the auth transport passes it through
// untouched. The refresh call itself runs under Bypass, which makes refresh
// recursion impossible even when the coordinator shares this transport.
func Bypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if v, _ := ctx.Value(bypassKey{}).(bool); v {
		return t.base().RoundTrip(req)
	}

	cred, err := t.Store.Load(ctx)
	if err != nil {
		return nil, err
	}

	tok := cred.Token
	if tok != "" && token.IsExpired(tok) {
		fresh, err := t.Refresher.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		tok = fresh
	}

	resp, err := t.send(req, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// The request body has been consumed; without GetBody the call cannot
	// be replayed, so the rejection stands.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	t.Log.Warn(ctx, "request rejected as unauthorized, refreshing and retrying once",
		"method", req.Method, "path", req.URL.Path)

	fresh, err := t.Refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return t.send(req, fresh)
}

// send dispatches a clone of req carrying the given bearer token. The clone
// keeps the original request replayable.
func (t *AuthTransport) send(req *http.Request, tok string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if tok != "" {
		clone.Header.Set(common.AuthHeaderName, common.BearerPrefix+tok)
	}
	return t.base().RoundTrip(clone)
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
