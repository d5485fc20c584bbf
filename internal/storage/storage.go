package storage

import (
	"context"
	"errors"

	"gamehall/internal/core"
)

// Keys of the local key/value cache
const (
	KeyData  = "gamehall.data"
	KeyTheme = "gamehall.theme"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("not found in local cache")

// Snapshot is the persisted offline state
type Snapshot struct {
	Devices     []*core.Device  `json:"devices"`
	Sessions    []*core.Session `json:"sessions"`
	CurrentUser *core.Operator  `json:"currentUser"`
}

// Cache defines the interface for the local durable cache
type Cache interface {
	// Snapshot
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// Theme preference
	GetTheme(ctx context.Context) (string, error)
	SaveTheme(ctx context.Context, theme string) error

	// Lifecycle
	Close() error
}
