package domain

import "time"

// Snapshot is the full journal state for one user as held by the remote
// store: one row per identity, whole arrays, last-write timestamp.
type Snapshot struct {
	Trades    []Trade   `json:"trades"`
	Goals     []Goal    `json:"goals"`
	UpdatedAt time.Time `json:"updatedAt"`
}
