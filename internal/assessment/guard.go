package assessment

import (
	"context"
	"fmt"

	"github.com/rtdacademy/assessments/internal/docstore"
)

// AttemptGuard owns the read-modify-write of attempts and status. read is
// the state the caller based its decision on.
type AttemptGuard interface {
	CompareAndUpdateAttempts(ctx context.Context, path string, read PublicState, mutate func(*PublicState)) (PublicState, error)
}

// LooseGuard writes the mutated copy of read without re-checking the stored
// document. Two concurrent evaluations can both pass the ceiling check and
// overshoot it by one.
type LooseGuard struct {
	Store docstore.Store
}

func (g LooseGuard) CompareAndUpdateAttempts(ctx context.Context, path string, read PublicState, mutate func(*PublicState)) (PublicState, error) {
	next := read
	mutate(&next)
	if err := g.Store.Set(ctx, path, next); err != nil {
		return PublicState{}, err
	}
	return next, nil
}

// CASGuard uses the store's per-path atomic update and refuses the write
// when attempts or status moved since read.
type CASGuard struct {
	Store docstore.Store
}

func (g CASGuard) CompareAndUpdateAttempts(ctx context.Context, path string, read PublicState, mutate func(*PublicState)) (PublicState, error) {
	var out PublicState
	err := docstore.UpdateJSON(ctx, g.Store, path, func(cur *PublicState, exists bool) (bool, error) {
		if !exists {
			return false, &NotFoundError{What: "assessment " + path}
		}
		if cur.Attempts != read.Attempts || cur.Status != read.Status {
			return false, fmt.Errorf("attempts at %s: %w", path, docstore.ErrConflict)
		}
		mutate(cur)
		out = *cur
		return true, nil
	})
	if err != nil {
		return PublicState{}, err
	}
	return out, nil
}

// NewAttemptGuard maps a configured strategy name to a guard.
func NewAttemptGuard(name string, store docstore.Store) (AttemptGuard, error) {
	switch name {
	case "", "loose":
		return LooseGuard{Store: store}, nil
	case "cas":
		return CASGuard{Store: store}, nil
	default:
		return nil, fmt.Errorf("unknown attempt guard %q (expected loose or cas)", name)
	}
}
