package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/reviewly/authsession/internal/common"
)

// CookieFileChannel is the secondary credential channel. It mirrors the
// platform's cookie layout: two cookies under the fixed token/user keys,
// Path=/, a bounded Max-Age, SameSite=Lax, with the user serialized as
// URL-encoded JSON. The records are kept in a JSON file with 0600 perms.
type CookieFileChannel struct {
	path   string
	maxAge time.Duration

	now func() time.Time // test seam
}

func NewCookieFileChannel(path string, maxAge time.Duration) *CookieFileChannel {
	return &CookieFileChannel{path: path, maxAge: maxAge, now: time.Now}
}

func (c *CookieFileChannel) Save(ctx context.Context, cred Credential) error {
	userRaw, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	cookies := []*http.Cookie{
		c.newCookie(common.TokenStorageKey, cred.Token),
		c.newCookie(common.UserStorageKey, url.QueryEscape(string(userRaw))),
	}

	raw, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}

	// Write-then-rename keeps the pair replacement a single operation for
	// concurrent readers.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

func (c *CookieFileChannel) newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		Expires:  c.now().Add(c.maxAge),
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *CookieFileChannel) Load(ctx context.Context) (Credential, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("read cookie file: %w", err)
	}

	var cookies []*http.Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		// A corrupted file loads as absent, never as an error.
		return Credential{}, nil
	}

	var cred Credential
	if v, ok := c.value(cookies, common.TokenStorageKey); ok {
		cred.Token = v
	}
	if v, ok := c.value(cookies, common.UserStorageKey); ok {
		if decoded, err := url.QueryUnescape(v); err == nil {
			var user User
			if err := json.Unmarshal([]byte(decoded), &user); err == nil && user.WellFormed() {
				cred.User = &user
			}
		}
	}
	return cred, nil
}

func (c *CookieFileChannel) value(cookies []*http.Cookie, name string) (string, bool) {
	for _, ck := range cookies {
		if ck == nil || ck.Name != name {
			continue
		}
		if !ck.Expires.IsZero() && !ck.Expires.After(c.now()) {
			return "", false
		}
		return ck.Value, true
	}
	return "", false
}

func (c *CookieFileChannel) Clear(ctx context.Context) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}
