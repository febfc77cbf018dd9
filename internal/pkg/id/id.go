package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ULIDs sort lexicographically by generation time,
// which keeps trade and exit-leg ids in insertion order for free.
func New() string {
	return ulid.Make().String()
}
