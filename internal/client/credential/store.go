package credential

import (
	"context"
	"errors"
	"sync"

	"github.com/reviewly/authsession/internal/logging"
)

// ErrAllChannelsFailed is returned by Save when neither channel accepted
// the write. A single channel failing is logged and absorbed.
var ErrAllChannelsFailed = errors.New("credential write failed on all channels")

// Channel is a single storage backend for the credential pair.
//
// Contract:
//   - Save replaces the stored pair in one storage operation.
//   - Load returns a zero-value Credential when nothing usable is stored;
//     malformed or partially written records load as absent fields, not as
//     errors the caller must branch on.
//   - Clear removes the pair and is idempotent.
type Channel interface {
	Save(ctx context.Context, cred Credential) error
	Load(ctx context.Context) (Credential, error)
	Clear(ctx context.Context) error
}

// DualStore replicates the credential across two channels so that a failure
// or restriction in one channel does not strand the user logged out. Reads
// prefer the primary channel and fall back to the secondary for whichever
// fields the primary is missing.
type DualStore struct {
	primary   Channel
	secondary Channel
	log       logging.Logger

	mu   sync.Mutex
	subs []func()
}

func NewDualStore(primary, secondary Channel, log logging.Logger) *DualStore {
	return &DualStore{primary: primary, secondary: secondary, log: log}
}

// Save writes both channels independently and succeeds if at least one
// accepted the write. Per-channel failures are logged, never propagated.
func (s *DualStore) Save(ctx context.Context, cred Credential) error {
	var ok bool
	if err := s.primary.Save(ctx, cred); err != nil {
		s.log.Warn(ctx, "primary credential write failed", "error", err)
	} else {
		ok = true
	}
	if err := s.secondary.Save(ctx, cred); err != nil {
		s.log.Warn(ctx, "secondary credential write failed", "error", err)
	} else {
		ok = true
	}
	if !ok {
		return ErrAllChannelsFailed
	}
	s.notify()
	return nil
}

// Load reads the primary channel first. When the token or user is missing
// it falls back to the secondary channel for the missing field. The returned
// user is nil unless it is well-formed, no matter what raw bytes a channel
// holds.
func (s *DualStore) Load(ctx context.Context) (Credential, error) {
	cred, err := s.primary.Load(ctx)
	if err != nil {
		s.log.Warn(ctx, "primary credential read failed", "error", err)
		cred = Credential{}
	}

	if !cred.Usable() {
		fallback, err := s.secondary.Load(ctx)
		if err != nil {
			s.log.Warn(ctx, "secondary credential read failed", "error", err)
		} else {
			if cred.Token == "" {
				cred.Token = fallback.Token
			}
			if !cred.User.WellFormed() && fallback.User.WellFormed() {
				cred.User = fallback.User
			}
		}
	}

	if !cred.User.WellFormed() {
		cred.User = nil
	}
	return cred, nil
}

// Clear removes the credential from both channels. It is idempotent and
// never fails: channel errors are logged and absorbed.
func (s *DualStore) Clear(ctx context.Context) {
	if err := s.primary.Clear(ctx); err != nil {
		s.log.Warn(ctx, "primary credential clear failed", "error", err)
	}
	if err := s.secondary.Clear(ctx); err != nil {
		s.log.Warn(ctx, "secondary credential clear failed", "error", err)
	}
	s.notify()
}

// Subscribe registers fn to run after every Save or Clear, and after the
// watcher detects an out-of-band change. Callbacks run synchronously on the
// mutating goroutine and must be quick.
func (s *DualStore) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *DualStore) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
