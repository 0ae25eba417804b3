// Package keys turns composite entity keys into the canonical strings used
// for cache and lease identity.
package keys

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Key is an ordered sequence of path segments. Segments may be scalars,
// nested map[string]any / []any structures, nil, or the Unresolved sentinel.
type Key []any

type unresolved struct{}

func (unresolved) String() string {
	return "<unresolved>"
}

// Unresolved marks a segment whose value is not yet available, e.g. an
// identifier still being fetched. A key containing it cannot be canonicalized.
var Unresolved unresolved

var ErrUnresolvedSegment = errors.New("unresolved key segment")

// Canonicalize serializes a key into its canonical string form. Two
// structurally equal keys canonicalize identically regardless of the order
// object members were inserted in: objects are serialized with their member
// keys sorted, arrays in order, nil as null.
//
// It fails if the Unresolved sentinel appears anywhere in the key, at any
// depth.
func Canonicalize(key Key) (string, error) {
	for i, segment := range key {
		if err := checkResolved(segment); err != nil {
			return "", fmt.Errorf("segment %d: %w", i, err)
		}
	}

	// encoding/json serializes map keys in sorted order, which is exactly
	// the canonical form we need for structural equality.
	serialized, err := json.Marshal([]any(key))
	if err != nil {
		return "", fmt.Errorf("failed to serialize key: %w", err)
	}

	return string(serialized), nil
}

func checkResolved(segment any) error {
	switch typed := segment.(type) {
	case unresolved:
		return ErrUnresolvedSegment
	case map[string]any:
		for memberKey, member := range typed {
			if err := checkResolved(member); err != nil {
				return fmt.Errorf("member %q: %w", memberKey, err)
			}
		}
	case []any:
		for i, member := range typed {
			if err := checkResolved(member); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	}
	return nil
}
