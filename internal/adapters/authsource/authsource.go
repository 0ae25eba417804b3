// Package authsource defines the push-based authentication state source. The
// cache models the auth state as one lease under a reserved key, so the same
// claim/release/eviction mechanics apply to it as to any document.
package authsource

import "context"

// User is the signed-in identity delivered by the source.
type User struct {
	UID         string
	DisplayName string
	Email       string
}

// Callbacks receives auth-state transitions: a signed-in user, a sign-out, or
// a source error.
type Callbacks struct {
	OnUser      func(user User)
	OnSignedOut func()
	OnError     func(err error)
}

// Source is an authentication backend publishing a single signed-in /
// signed-out / error state.
type Source interface {
	Subscribe(ctx context.Context, callbacks Callbacks) (func(), error)
}
