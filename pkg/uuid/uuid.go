// Package uuid provides UUID v7 identifiers for stored records.
// v7 ids sort by creation time, which keeps sqlite primary key inserts local.
package uuid

import (
	guuid "github.com/google/uuid"
)

// UUID is a 128-bit identifier.
type UUID = guuid.UUID

// NewV7 returns a time-ordered UUID. If the random source fails it falls back
// to a v4 id rather than returning an error to every caller.
func NewV7() UUID {
	u, err := guuid.NewV7()
	if err != nil {
		return guuid.New()
	}
	return u
}

// NewString returns NewV7 in canonical form.
func NewString() string {
	return NewV7().String()
}
