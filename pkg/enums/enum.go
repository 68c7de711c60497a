package enums

import (
	"fmt"
	"slices"
)

// parse matches value against the known members of an enum. kind names the
// enum in the error.
func parse[T ~string](kind, value string, members []T) (T, error) {
	if slices.Contains(members, T(value)) {
		return T(value), nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
