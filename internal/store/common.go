package store

import "github.com/google/uuid"

// newID generates an id for non-code memory records. Code units carry a
// deterministic content-derived id, but records of other categories have
// no (project, path, line, name) tuple to hash, so they get a uuid.
func newID() string {
	return uuid.NewString()
}
