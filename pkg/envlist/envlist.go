// Package envlist parses the loosely-structured list values the deployment
// accepts for environment variables such as SUPERUSERS or
// ANTI_RECALL__MONITOR_GROUPS: a JSON array, a comma-/whitespace-separated
// list, or a single bare token.
package envlist

import (
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// Strings parses raw into a list of strings, trying a JSON array first and
// falling back to splitting on commas and whitespace (also when raw starts
// with "[" but is not a valid JSON array). An empty input yields nil, and no
// input is ever an error — list-shaped env vars are cosmetic configuration,
// not something worth failing startup over.
func Strings(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var out []string
		_, err := jsonparser.ArrayEach([]byte(raw), func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
			if err != nil {
				return
			}
			out = append(out, string(value))
		})
		if err == nil {
			return out
		}
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Int64s applies Strings and converts every successfully-parsed token to an
// int64, silently dropping tokens that aren't numeric. Booleans are never
// coerced to integers here — a bare "true"/"false" token is simply dropped.
func Int64s(raw string) []int64 {
	tokens := Strings(raw)
	out := make([]int64, 0, len(tokens))
	for _, t := range tokens {
		v, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
