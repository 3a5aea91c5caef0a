package command

import (
	"os"

	"wardkeeper/pkg/envlist"
)

// Superusers replaces the framework-provided permission decorator the
// reference implementation leaned on with an explicit predicate, invoked at
// the top of every privileged handler.
type Superusers struct {
	ids map[int64]struct{}
}

// LoadSuperusers reads SUPERUSERS from the environment.
func LoadSuperusers() Superusers {
	ids := envlist.Int64s(os.Getenv("SUPERUSERS"))
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Superusers{ids: set}
}

// NewSuperusers builds a Superusers set directly, bypassing the environment —
// primarily useful for tests and for callers assembling the set programmatically.
func NewSuperusers(ids map[int64]struct{}) Superusers {
	return Superusers{ids: ids}
}

// IsSuperuser reports whether userID is in the privileged set.
func (s Superusers) IsSuperuser(userID int64) bool {
	_, ok := s.ids[userID]
	return ok
}
