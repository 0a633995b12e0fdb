// Package artist holds the artist entity.
package artist

import "strings"

// Artist is a performer referenced by events. Names are unique
// case-sensitively after trimming; artists are never deleted by the
// pipeline.
type Artist struct {
	id   int64
	name string
}

// New creates an Artist with a trimmed name and no identifier.
func New(name string) Artist {
	return Artist{name: strings.TrimSpace(name)}
}

// Hydrate reconstructs a persisted Artist.
func Hydrate(id int64, name string) Artist {
	return Artist{id: id, name: name}
}

// ID returns the database identifier, 0 for unsaved artists.
func (a Artist) ID() int64 { return a.id }

// Name returns the artist name.
func (a Artist) Name() string { return a.name }
