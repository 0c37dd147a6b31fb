// Package session exposes the observable in-memory view of the
// authenticated session: {status, current user}. The credential store stays
// authoritative; this package only derives and republishes.
package session

import (
	"context"
	"sync"

	"github.com/reviewly/authsession/internal/client/credential"
	"github.com/reviewly/authsession/internal/client/token"
	"github.com/reviewly/authsession/internal/logging"
)

// Status is the lifecycle state of the session view.
type Status int

const (
	// StatusUnknown is the pre-bootstrap state.
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot handed to observers.
type State struct {
	Status Status
	User   *credential.User
}

// Authenticated reports whether the snapshot represents a signed-in user.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Store is the slice of the credential store the manager reads.
type Store interface {
	Load(ctx context.Context) (credential.Credential, error)
	Clear(ctx context.Context)
	Subscribe(fn func())
}

// Manager holds the session view. State changes only through Bootstrap,
// Login, Logout, or a store change notification — no other path mutates it.
type Manager struct {
	store Store
	log   logging.Logger

	mu     sync.RWMutex
	status Status
	user   *credential.User
	subs   []func(State)
}

// NewManager builds a Manager and subscribes it to store change
// notifications, so a logout or credential rewrite observed out-of-band is
// reflected here without polling by the caller.
func NewManager(store Store, log logging.Logger) *Manager {
	m := &Manager{store: store, log: log, status: StatusUnknown}
	store.Subscribe(m.onStoreChange)
	return m
}

// Bootstrap derives the initial state from the stored credential. Calling it
// again simply re-reads and re-derives.
func (m *Manager) Bootstrap(ctx context.Context) State {
	return m.derive(ctx)
}

// Login records a successful authentication. The caller has already
// persisted the credential; this only updates the in-memory view.
func (m *Manager) Login(tok string, user *credential.User) {
	if tok == "" || !user.WellFormed() {
		m.set(State{Status: StatusUnauthenticated})
		return
	}
	m.set(State{Status: StatusAuthenticated, User: user})
}

// Logout clears the persisted credential and resets the view.
func (m *Manager) Logout(ctx context.Context) {
	m.store.Clear(ctx)
	m.set(State{Status: StatusUnauthenticated})
}

// Current returns the latest snapshot.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{Status: m.status, User: m.user}
}

// Subscribe registers an observer invoked on every state change with the new
// snapshot. Observers run synchronously and must be quick.
func (m *Manager) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// onStoreChange re-derives the view after the credential store reports a
// change (local save/clear or an external rewrite seen by the watcher).
func (m *Manager) onStoreChange() {
	m.derive(context.Background())
}

// derive recomputes the view from storage: authenticated iff a
// non-expired-looking token and a well-formed user are both present.
func (m *Manager) derive(ctx context.Context) State {
	st := State{Status: StatusUnauthenticated}

	cred, err := m.store.Load(ctx)
	if err == nil && cred.Usable() && !token.IsExpired(cred.Token) {
		st = State{Status: StatusAuthenticated, User: cred.User}
	}

	m.set(st)
	return st
}

func (m *Manager) set(st State) {
	m.mu.Lock()
	changed := m.status != st.Status || !sameUser(m.user, st.User)
	m.status = st.Status
	m.user = st.User
	subs := make([]func(State), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(st)
	}
}

func sameUser(a, b *credential.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
