// Package swap exchanges identity and style between two cards in the card
// database. Every edit snapshots the affected rows into the ledger before
// touching them.
package swap

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/card"
	"github.com/arcanaland/arenaswap/internal/cardstore"
	"github.com/arcanaland/arenaswap/internal/ledger"
)

// Engine runs swaps against one store and records them in one ledger.
type Engine struct {
	store  *cardstore.Store
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New returns an Engine. A nil logger is replaced with a no-op logger.
func New(store *cardstore.Store, led *ledger.Ledger, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, ledger: led, logger: logger}
}

// run executes fn in a session. The session commits only when fn reports a
// change and no error.
func (e *Engine) run(ctx context.Context, fn func(*cardstore.Session, *ledger.Op) (bool, error)) (bool, error) {
	sess, err := e.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Rollback()

	changed, err := fn(sess, e.ledger.Begin())
	if err != nil || !changed {
		return false, err
	}
	if err := sess.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func checkPair(a, b int64) error {
	if a == b {
		return apperr.Validation(nil, "cannot swap GrpId %d with itself", a)
	}
	for _, id := range []int64{a, b} {
		if cardstore.IsReserved(id) {
			return apperr.Validation(nil, "GrpId %d is reserved for swaps", id)
		}
	}
	return nil
}

// Full exchanges the GrpId of cards a and b so each entry takes the other's
// identity. The ids are moved through the two reserved ids so GrpId stays
// unique at every step.
func (e *Engine) Full(ctx context.Context, a, b int64) (bool, error) {
	if err := checkPair(a, b); err != nil {
		return false, err
	}
	return e.run(ctx, func(sess *cardstore.Session, op *ledger.Op) (bool, error) {
		parked, err := sess.ReservedInUse(ctx)
		if err != nil {
			return false, err
		}
		if len(parked) > 0 {
			return false, apperr.Constraint(nil, "reserved GrpId %v already holds a card; apply the changeset to recover", parked)
		}
		for _, id := range []int64{a, b} {
			if _, err := sess.Row(ctx, id); err != nil {
				return false, err
			}
		}
		if err := op.Snapshot(ctx, sess, []int64{a, b}); err != nil {
			return false, err
		}

		// Phase 1: park both rows.
		if err := sess.ParkGrpID(ctx, a, cardstore.TempGrpIDA); err != nil {
			return false, err
		}
		if err := sess.ParkGrpID(ctx, b, cardstore.TempGrpIDB); err != nil {
			return false, err
		}
		// Phase 2: move them to their new ids.
		if err := sess.UnparkGrpID(ctx, cardstore.TempGrpIDA, b); err != nil {
			return false, err
		}
		if err := sess.UnparkGrpID(ctx, cardstore.TempGrpIDB, a); err != nil {
			return false, err
		}

		e.logger.Info("cards swapped", zap.Int64("a", a), zap.Int64("b", b))
		return true, nil
	})
}

// Style exchanges only the Tags and ArtId of a and b.
func (e *Engine) Style(ctx context.Context, a, b int64) (bool, error) {
	if err := checkPair(a, b); err != nil {
		return false, err
	}
	return e.run(ctx, func(sess *cardstore.Session, op *ledger.Op) (bool, error) {
		ca, err := sess.Card(ctx, a)
		if err != nil {
			return false, err
		}
		cb, err := sess.Card(ctx, b)
		if err != nil {
			return false, err
		}
		if err := op.Snapshot(ctx, sess, []int64{a, b}); err != nil {
			return false, err
		}
		if _, err := sess.UpdateRow(ctx, a, map[string]any{"Tags": cb.Tags, "ArtId": cb.ArtID}); err != nil {
			return false, err
		}
		if _, err := sess.UpdateRow(ctx, b, map[string]any{"Tags": ca.Tags, "ArtId": ca.ArtID}); err != nil {
			return false, err
		}
		e.logger.Info("styles swapped", zap.Int64("a", a), zap.Int64("b", b))
		return true, nil
	})
}

// AddTag appends tag to every card in ids that lacks it. Cards that already
// carry the tag are left alone; the result is false when none needed it.
func (e *Engine) AddTag(ctx context.Context, ids []int64, tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.Contains(tag, ",") {
		return false, apperr.Validation(nil, "invalid tag %q", tag)
	}
	return e.run(ctx, func(sess *cardstore.Session, op *ledger.Op) (bool, error) {
		var pending []card.Card
		for _, id := range ids {
			c, err := sess.Card(ctx, id)
			if err != nil {
				return false, err
			}
			if !c.HasTag(tag) {
				pending = append(pending, c)
			}
		}
		if len(pending) == 0 {
			return false, nil
		}

		touched := make([]int64, len(pending))
		for i, c := range pending {
			touched[i] = c.GrpID
		}
		if err := op.Snapshot(ctx, sess, touched); err != nil {
			return false, err
		}
		for _, c := range pending {
			if _, err := sess.UpdateRow(ctx, c.GrpID, map[string]any{"Tags": c.WithTag(tag)}); err != nil {
				return false, err
			}
		}
		e.logger.Info("tag added", zap.String("tag", tag), zap.Int64s("ids", touched))
		return true, nil
	})
}

// UnlockParallax adds the parallax style tag to ids.
func (e *Engine) UnlockParallax(ctx context.Context, ids []int64) (bool, error) {
	return e.AddTag(ctx, ids, card.ParallaxTag)
}

// SetTags replaces the Tags column of id.
func (e *Engine) SetTags(ctx context.Context, id int64, tags string) (bool, error) {
	return e.run(ctx, func(sess *cardstore.Session, op *ledger.Op) (bool, error) {
		if err := op.Snapshot(ctx, sess, []int64{id}); err != nil {
			return false, err
		}
		if err := e.ledger.ApplyOverride(ctx, sess, id, ledger.Entry{"Tags": tags}); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Rename sets the localized name of id and records it in the changeset so
// the name survives a replay.
func (e *Engine) Rename(ctx context.Context, id int64, name string) (bool, error) {
	return e.run(ctx, func(sess *cardstore.Session, op *ledger.Op) (bool, error) {
		c, err := sess.Card(ctx, id)
		if err != nil {
			return false, err
		}
		if _, ok, err := sess.Localization(ctx, c.TitleID); err != nil {
			return false, err
		} else if !ok {
			return false, apperr.NotFound("no localization %d for GrpId %d", c.TitleID, id)
		}
		if err := op.Snapshot(ctx, sess, []int64{id}); err != nil {
			return false, err
		}
		if _, err := sess.SetLocalization(ctx, c.TitleID, name); err != nil {
			return false, err
		}
		if err := e.ledger.RecordLocalization(id, c.TitleID, name); err != nil {
			return false, err
		}
		return true, nil
	})
}
