// ABOUTME: Optimistic drag-and-drop reconciliation between the board cache and the server
// ABOUTME: Rewrites cached cards before the mutation and restores the snapshot when it fails
package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/status"
	"go.uber.org/zap"
)

// Mutator applies a status change on the server.
type Mutator interface {
	UpdateStatus(ctx context.Context, recordID uuid.UUID, axis status.Axis, value string) error
}

// Loader fetches the authoritative cards of a conference.
type Loader interface {
	LoadBoard(ctx context.Context, conferenceID uuid.UUID) ([]Card, error)
}

// ErrDragFinished is returned when a drag is dropped a second time.
var ErrDragFinished = errors.New("drag already dropped")

// Drag is one card picked up from a column.
type Drag struct {
	RecordID     uuid.UUID
	ConferenceID uuid.UUID
	Axis         status.Axis
	Source       string

	mu      gosync.Mutex
	dropped bool
}

type Reconciler struct {
	cache   Cache
	mutator Mutator
	loader  Loader
	logger  *zap.Logger
}

func NewReconciler(cache Cache, mutator Mutator, loader Loader, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{cache: cache, mutator: mutator, loader: loader, logger: logger}
}

// Board returns the cached cards of a conference, loading them on a miss.
func (r *Reconciler) Board(ctx context.Context, conferenceID uuid.UUID) ([]Card, error) {
	key := Key(conferenceID)
	raw, err := r.cache.Get(key)
	if err == nil {
		return decode(raw)
	}
	if !errors.Is(err, ErrMiss) {
		return nil, err
	}
	return r.reload(ctx, key)
}

// BeginDrag captures the current value of axis on the record's cached card.
func (r *Reconciler) BeginDrag(recordID uuid.UUID, axis status.Axis) (*Drag, error) {
	axis, err := status.ParseAxis(string(axis))
	if err != nil {
		return nil, err
	}

	keys, err := r.cache.Keys(KeyPrefix)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		raw, err := r.cache.Get(key)
		if err != nil {
			continue
		}
		cards, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		for i := range cards {
			if cards[i].Record.ID == recordID {
				return &Drag{
					RecordID:     recordID,
					ConferenceID: cards[i].Record.ConferenceID,
					Axis:         axis,
					Source:       status.Get(&cards[i].Record, axis),
				}, nil
			}
		}
	}

	return nil, apperr.NotFound("board card", recordID.String())
}

// Drop moves the dragged card to target. The cache is rewritten before the
// server is asked; when the server refuses, every snapshot is put back. The
// touched boards are reloaded from the server either way.
func (r *Reconciler) Drop(ctx context.Context, drag *Drag, target string) error {
	drag.mu.Lock()
	defer drag.mu.Unlock()
	if drag.dropped {
		return ErrDragFinished
	}
	// A target that is not a valid column leaves the card in hand.
	if err := status.Validate(drag.Axis, target); err != nil {
		return err
	}
	drag.dropped = true

	if target == drag.Source {
		return nil
	}

	snapshot, err := r.snapshot()
	if err != nil {
		return err
	}

	touched := r.rewrite(snapshot, drag, target)

	mutErr := r.mutator.UpdateStatus(ctx, drag.RecordID, drag.Axis, target)
	if mutErr != nil {
		r.logger.Warn("status change rejected, restoring board",
			zap.String("record_id", drag.RecordID.String()),
			zap.String("axis", string(drag.Axis)),
			zap.String("target", target),
			zap.Error(mutErr))
		r.restore(snapshot)
	}

	r.invalidate(ctx, touched)
	return mutErr
}

func (r *Reconciler) snapshot() (map[string][]byte, error) {
	keys, err := r.cache.Keys(KeyPrefix)
	if err != nil {
		return nil, err
	}
	snap := make(map[string][]byte, len(keys))
	for _, key := range keys {
		raw, err := r.cache.Get(key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		snap[key] = raw
	}
	return snap, nil
}

// rewrite applies the optimistic change to every cached board holding the card.
func (r *Reconciler) rewrite(snapshot map[string][]byte, drag *Drag, target string) []string {
	var touched []string
	for key, raw := range snapshot {
		cards, err := decode(raw)
		if err != nil {
			r.logger.Warn("skipping undecodable board", zap.String("key", key), zap.Error(err))
			continue
		}

		changed := false
		for i := range cards {
			if cards[i].Record.ID == drag.RecordID {
				status.Set(&cards[i].Record, drag.Axis, target)
				changed = true
			}
		}
		if !changed {
			continue
		}

		touched = append(touched, key)
		updated, err := json.Marshal(cards)
		if err == nil {
			err = r.cache.Set(key, updated)
		}
		if err != nil {
			r.logger.Warn("optimistic update failed", zap.String("key", key), zap.Error(err))
		}
	}
	if len(touched) == 0 {
		touched = append(touched, Key(drag.ConferenceID))
	}
	return touched
}

func (r *Reconciler) restore(snapshot map[string][]byte) {
	for key, raw := range snapshot {
		if err := r.cache.Set(key, raw); err != nil {
			r.logger.Error("failed to restore board", zap.String("key", key), zap.Error(err))
		}
	}
}

// invalidate reloads each key from the server. A key that cannot be reloaded
// is dropped so the next read fetches it.
func (r *Reconciler) invalidate(ctx context.Context, keys []string) {
	for _, key := range keys {
		if _, err := r.reload(ctx, key); err != nil {
			r.logger.Warn("board reload failed", zap.String("key", key), zap.Error(err))
			if err := r.cache.Delete(key); err != nil {
				r.logger.Error("failed to drop stale board", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) reload(ctx context.Context, key string) ([]Card, error) {
	conferenceID, err := ConferenceID(key)
	if err != nil {
		return nil, fmt.Errorf("bad board key %q: %w", key, err)
	}
	cards, err := r.loader.LoadBoard(ctx, conferenceID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(cards)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(key, raw); err != nil {
		return nil, err
	}
	return cards, nil
}

func decode(raw []byte) ([]Card, error) {
	var cards []Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}
