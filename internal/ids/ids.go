// Package ids centralizes identifier generation so every subsystem mints
// IDs the same way instead of scattering uuid.New() calls.
package ids

import "github.com/google/uuid"

// New returns a fresh random identifier.
func New() string {
	return uuid.New().String()
}

// Prefixed returns a fresh identifier with a component prefix, e.g.
// "goal-3fa8...".
func Prefixed(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
