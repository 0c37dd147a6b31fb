package credential

import (
	"context"
	"time"
)

// Watch polls the channels for out-of-band changes (another process of the
// platform writing or clearing the same credential files) and fires the
// store's subscribers when the stored pair changes. It blocks until ctx is
// cancelled, so run it on its own goroutine.
func (s *DualStore) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := s.fingerprint(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fp := s.fingerprint(ctx)
			if fp != last {
				last = fp
				s.log.Info(ctx, "credential changed externally")
				s.notify()
			}
		}
	}
}

func (s *DualStore) fingerprint(ctx context.Context) string {
	cred, _ := s.Load(ctx)
	fp := cred.Token
	if cred.User != nil {
		fp += "\x00" + cred.User.ID + "\x00" + cred.User.Name + "\x00" + cred.User.Email
	}
	return fp
}
