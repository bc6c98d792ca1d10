// Package credentials provides credential store collaborators that turn a
// secret alias into an opaque SecretHandle.
//
// A handle proves the secret exists without carrying it: the value stays in
// the store and only "<store>:<alias>" ever reaches a build plan, a log line
// or an error message.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the alias is unknown to the store or has an empty value.
var ErrNotFound = errors.New("secret not found")

// Store looks up secrets by alias.
type Store interface {
	// Name identifies the store in secret handle references.
	Name() string

	// LookupSecret returns a handle for alias, or an error wrapping ErrNotFound.
	LookupSecret(ctx context.Context, alias string) (SecretHandle, error)
}

// SecretHandle is an opaque reference to a secret held by a Store.
type SecretHandle struct {
	store string
	alias string
}

// NewSecretHandle builds a handle. Stores use it after confirming the secret exists.
func NewSecretHandle(store, alias string) SecretHandle {
	return SecretHandle{store: store, alias: alias}
}

// ParseReference parses "<store>:<alias>".
func ParseReference(ref string) (SecretHandle, error) {
	store, alias, ok := strings.Cut(ref, ":")
	if !ok || store == "" || alias == "" {
		return SecretHandle{}, fmt.Errorf("invalid secret reference %q: want <store>:<alias>", ref)
	}
	return SecretHandle{store: store, alias: alias}, nil
}

// Store returns the name of the store that holds the secret.
func (h SecretHandle) Store() string { return h.store }

// Alias returns the secret alias.
func (h SecretHandle) Alias() string { return h.alias }

// IsZero reports whether h is the zero handle.
func (h SecretHandle) IsZero() bool { return h.alias == "" }

// Reference renders "<store>:<alias>".
func (h SecretHandle) Reference() string {
	if h.IsZero() {
		return ""
	}
	return h.store + ":" + h.alias
}

// String implements fmt.Stringer with the reference, never a value.
func (h SecretHandle) String() string { return h.Reference() }

// MarshalText implements encoding.TextMarshaler.
func (h SecretHandle) MarshalText() ([]byte, error) {
	return []byte(h.Reference()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *SecretHandle) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = SecretHandle{}
		return nil
	}
	parsed, err := ParseReference(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func notFound(store, alias string) error {
	return fmt.Errorf("%s: alias %q: %w", store, alias, ErrNotFound)
}
