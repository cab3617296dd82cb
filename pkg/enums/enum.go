// Package enums holds the closed string sets persisted by the engine.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](value, kind string, set []T) (T, error) {
	if v := T(value); known(v, set) {
		return v, nil
	}
	return "", parseErr(kind, value)
}

func parseErr(kind, value string) error {
	return fmt.Errorf("invalid %s %q", kind, value)
}
