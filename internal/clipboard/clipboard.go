// Package clipboard holds serialized value graphs between a copy and a paste.
// Pasting rebuilds the graph with fresh object identities, so the same
// clipboard content can be pasted any number of times.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-lang/grt/internal/grt"
)

// ErrEmpty is returned when pasting from an empty or expired clipboard
var ErrEmpty = errors.New("clipboard is empty")

// Clipboard defines the interface for clipboard backends
type Clipboard interface {
	// Put replaces the clipboard content
	Put(ctx context.Context, data []byte) error

	// Get returns the clipboard content
	Get(ctx context.Context) ([]byte, error)

	// Clear empties the clipboard
	Clear(ctx context.Context) error
}

// Config holds common configuration for clipboard backends
type Config struct {
	// TTL is how long content stays on the clipboard. Zero keeps it forever.
	TTL time.Duration
	// Prefix is prepended to the storage key
	Prefix string
	// Name selects one of several clipboards sharing a backend
	Name string
}

// DefaultConfig returns a default clipboard configuration
func DefaultConfig() Config {
	return Config{
		TTL:    time.Hour,
		Prefix: "grt:clipboard:",
		Name:   "default",
	}
}

func (c Config) key() string {
	return c.Prefix + c.Name
}

// Copy serializes v onto the clipboard
func Copy(ctx context.Context, cb Clipboard, v grt.Value) error {
	data, err := grt.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	return cb.Put(ctx, data)
}

// Paste rebuilds the clipboard content inside gctx. Every pasted object gets
// a new id; references to objects that were not copied keep pointing at the
// originals. The result is detached and nothing is recorded for undo.
func Paste(ctx context.Context, cb Clipboard, gctx *grt.Context) (grt.Value, error) {
	data, err := cb.Get(ctx)
	if err != nil {
		return nil, err
	}
	v, err := grt.Unmarshal(gctx, data, grt.UnmarshalOptions{FreshIDs: true})
	if err != nil {
		return nil, fmt.Errorf("failed to paste: %w", err)
	}
	return v, nil
}

// IsEmpty checks if an error means the clipboard had nothing to paste
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmpty)
}
