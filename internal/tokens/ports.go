// Package tokens defines the persisted slot holding the session token.
package tokens

import "context"

// Key is the name of the slot the login flow writes the token to.
const Key = "token"

// Store is a single persisted key-value slot for the session token.
type Store interface {
	// Get returns the stored token. ok is false when the slot is empty.
	Get(ctx context.Context) (token string, ok bool, err error)
	// Set replaces the stored token.
	Set(ctx context.Context, token string) error
	// Delete empties the slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context) error
	// DeleteIf empties the slot only while it still holds token, and
	// reports whether it did. A token written since it was read survives.
	DeleteIf(ctx context.Context, token string) (bool, error)
}
