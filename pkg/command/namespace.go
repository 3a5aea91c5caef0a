// Package command implements the grammar-binding substrate (C2): the
// prefix/separator namespace every registered command matches against, and
// the superuser gate every privileged handler checks first.
package command

import (
	"os"
	"strings"

	"wardkeeper/pkg/envlist"
)

// Namespace binds prefixes and separators as two independent inputs on
// purpose: separators are never derived from a host-wide namespaced-command
// separator, because doing so would break space-separated command
// arguments (e.g. "/recall 3 123456").
type Namespace struct {
	Prefixes   []string
	Separators []string
}

// DefaultNamespace builds the global namespace from COMMAND_START, falling
// back to "/" when unset.
func DefaultNamespace() Namespace {
	prefixes := envlist.Strings(os.Getenv("COMMAND_START"))
	if len(prefixes) == 0 {
		prefixes = []string{"/"}
	}
	return Namespace{Prefixes: prefixes, Separators: []string{" "}}
}

// StripPrefix reports whether text begins with one of the namespace's
// prefixes and, if so, returns the remainder. A miss is not an error — it
// just means the message isn't addressed to this command grammar at all,
// and matchers must stay silent about it.
func (n Namespace) StripPrefix(text string) (rest string, ok bool) {
	for _, p := range n.Prefixes {
		if strings.HasPrefix(text, p) {
			return text[len(p):], true
		}
	}
	return text, false
}

// Split tokenizes rest on the namespace's separators (default: a single
// space), collapsing runs of separators and discarding empty tokens.
func (n Namespace) Split(rest string) []string {
	seps := n.Separators
	if len(seps) == 0 {
		seps = []string{" "}
	}
	return strings.FieldsFunc(rest, func(r rune) bool {
		for _, sep := range seps {
			if len(sep) == 1 && rune(sep[0]) == r {
				return true
			}
		}
		return false
	})
}
