package enums

import (
	"fmt"
	"slices"
)

// set lists every legal value of a string enum in declaration order.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

// parse returns the matching member or an error naming the enum.
func (s set[T]) parse(raw, name string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", name, raw)
}
