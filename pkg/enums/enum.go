// Package enums holds the string enums persisted in Postgres and carried
// over the wire.
package enums

import "slices"

// values is the closed set of members of one enum type.
type values[T ~string] []T

func (v values[T]) contains(s T) bool { return slices.Contains(v, s) }

func (v values[T]) list() []T { return slices.Clone(v) }
