package domain

import "errors"

var (
	ErrInvalidKey          = errors.New("key contains unresolved segment")
	ErrClientUninitialized = errors.New("client has not been bound")
	ErrSubscriptionFailed  = errors.New("upstream subscription failed")
)
