// Package docstore is a hierarchical key-value document store with per-path
// atomic reads, writes and updates. There are no cross-path transactions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid document path")
	ErrConflict    = errors.New("document changed concurrently")
)

// UpdateFunc receives the current document (nil when absent) and returns the
// replacement. Returning a nil document leaves the path untouched; returning
// an error aborts the update and is passed through to the caller.
type UpdateFunc func(current json.RawMessage) (json.RawMessage, error)

type Store interface {
	Get(ctx context.Context, path string, dst any) (bool, error)
	Set(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, fn UpdateFunc) error
	Delete(ctx context.Context, path string) error
}

// Join builds a slash separated path, rejecting segments that could escape
// their position in the hierarchy.
func Join(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", ErrInvalidPath
	}
	for _, s := range segments {
		if err := validSegment(s); err != nil {
			return "", err
		}
	}
	return strings.Join(segments, "/"), nil
}

func validSegment(s string) error {
	if s == "" || s == "." || s == ".." {
		return fmt.Errorf("%w: empty or relative segment %q", ErrInvalidPath, s)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == ',' || r == '@' || r == '+' || r == '.':
		default:
			return fmt.Errorf("%w: segment %q contains %q", ErrInvalidPath, s, r)
		}
	}
	return nil
}

func checkPath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, s := range strings.Split(path, "/") {
		if err := validSegment(s); err != nil {
			return err
		}
	}
	return nil
}

func decode(raw []byte, dst any) error {
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// UpdateJSON adapts a typed mutation to an UpdateFunc. mutate receives a zero
// value and exists=false when the document is absent; returning false skips
// the write.
func UpdateJSON[T any](ctx context.Context, s Store, path string, mutate func(cur *T, exists bool) (bool, error)) error {
	return s.Update(ctx, path, func(raw json.RawMessage) (json.RawMessage, error) {
		var cur T
		exists := raw != nil
		if exists {
			if err := json.Unmarshal(raw, &cur); err != nil {
				return nil, err
			}
		}
		write, err := mutate(&cur, exists)
		if err != nil || !write {
			return nil, err
		}
		return json.Marshal(cur)
	})
}
