package service

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/internal/domain"
)

// ReplayGuard refuses transactions signed outside the acceptance window and
// transaction IDs already seen inside it. Callers pass healthvault.TransactionID,
// which does not depend on how the signature is encoded.
type ReplayGuard struct {
	seen   *cache.Cache
	window time.Duration
	now    func() time.Time
}

func NewReplayGuard(window time.Duration) *ReplayGuard {
	return &ReplayGuard{
		seen:   cache.New(2*window, window),
		window: window,
		now:    time.Now,
	}
}

func (g *ReplayGuard) Check(signedAt time.Time, txID string) error {
	now := g.now()
	if signedAt.Before(now.Add(-g.window)) || signedAt.After(now.Add(g.window)) {
		return errors.Wrap(domain.ErrForbidden, "transaction is outside the acceptance window")
	}
	// Add fails when the key is present
	if err := g.seen.Add(strings.ToLower(txID), struct{}{}, cache.DefaultExpiration); err != nil {
		return errors.Wrap(domain.ErrForbidden, "transaction was already submitted")
	}
	return nil
}
