// Package election implements the primary/replica election state machine
// (SPEC_FULL §4.5): every replica periodically checks the config store's
// single Primary row and either claims it (if absent), renews it (if this
// replica already holds it and is still within its cool-down window),
// attempts to take it over (if the holder has gone quiet past the
// promotion timeout), or stands down.
//
// Grounded on original_source/indexer/src/indexer.rs's start_primary_check:
// a single Uuid-valued config row, a cool-down window of half the
// promotion timeout during which the current primary renews without
// contention, and a CAS-based takeover once the holder is silent for the
// full promotion timeout.
package election

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/barreleye-go/indexer/internal/configstore"
	"github.com/barreleye-go/indexer/internal/models"
)

// Elector drives one replica's view of who is primary.
type Elector struct {
	store            configstore.Store
	replicaID        string
	promotionTimeout time.Duration
	pingInterval     time.Duration
	onPrimary        func(bool)
	log              *zap.Logger

	isPrimary bool
}

// New builds an Elector. promotionTimeout must be at least 2x pingInterval
// (SPEC_FULL §4.5 invariant) so a holder gets at least one renewal chance
// inside its own cool-down window before any other replica can contest it.
func New(store configstore.Store, replicaID string, promotionTimeout, pingInterval time.Duration, onPrimary func(bool), log *zap.Logger) (*Elector, error) {
	if promotionTimeout < 2*pingInterval {
		return nil, errors.Errorf("election: promotion_timeout (%s) must be at least 2x ping_interval (%s)", promotionTimeout, pingInterval)
	}
	return &Elector{
		store:            store,
		replicaID:        replicaID,
		promotionTimeout: promotionTimeout,
		pingInterval:     pingInterval,
		onPrimary:        onPrimary,
		log:              log,
	}, nil
}

// IsPrimary reports this replica's last-known role.
func (e *Elector) IsPrimary() bool {
	return e.isPrimary
}

// CheckOnce runs a single election check against the config store.
func (e *Elector) CheckOnce(ctx context.Context) error {
	now := time.Now()
	cooldownCutoff := uint32(now.Add(-e.promotionTimeout / 2).Unix())
	promotionCutoff := uint32(now.Add(-e.promotionTimeout).Unix())

	row, found, err := e.store.Get(ctx, models.KeyPrimary())
	if err != nil {
		return errors.Wrap(err, "election: get primary")
	}

	switch {
	case !found:
		// First run ever: claim outright.
		if err := e.store.Set(ctx, models.KeyPrimary(), e.replicaID); err != nil {
			return errors.Wrap(err, "election: claim primary")
		}
		e.setPrimary(false) // confirmed on the next iteration, same as original

	case row.Value == e.replicaID && row.UpdatedAt >= cooldownCutoff:
		// Already primary and still inside the cool-down window: renew.
		won, err := e.store.SetIfEqual(ctx, models.KeyPrimary(), e.replicaID, row.Value)
		if err != nil {
			return errors.Wrap(err, "election: renew primary")
		}
		e.setPrimary(won)

	case row.UpdatedAt < promotionCutoff:
		// Holder has gone quiet past the promotion timeout: attempt takeover.
		// is_primary flips true on a later iteration, once the claim is
		// confirmed still standing inside its own cool-down window.
		if _, err := e.store.SetIfEqual(ctx, models.KeyPrimary(), e.replicaID, row.Value); err != nil {
			return errors.Wrap(err, "election: attempt takeover")
		}
		e.setPrimary(false)

	default:
		// Cool-down in progress for someone else, or this is a secondary.
		e.setPrimary(false)
	}

	return nil
}

func (e *Elector) setPrimary(v bool) {
	if e.isPrimary == v {
		return
	}
	e.isPrimary = v
	if e.log != nil {
		e.log.Info("primary role changed", zap.Bool("is_primary", v), zap.String("replica_id", e.replicaID))
	}
	if e.onPrimary != nil {
		e.onPrimary(v)
	}
}

// Run drives CheckOnce every pingInterval until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pingInterval)
	defer ticker.Stop()

	if err := e.CheckOnce(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.CheckOnce(ctx); err != nil {
				if e.log != nil {
					e.log.Warn("election check failed", zap.Error(err))
				}
			}
		}
	}
}
