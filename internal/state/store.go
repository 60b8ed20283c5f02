// Package state keeps the history of transform runs in SQLite.
package state

import "github.com/leapstack-labs/crossva/pkg/core"

// Store is the run history interface implemented by SQLiteStore.
type Store = core.RunStore

// Run is an alias for core.Run.
type Run = core.Run

var _ Store = (*SQLiteStore)(nil)
