// Package util holds small generic helpers.
package util

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// NonZero returns a pointer to v, or nil when v is the zero value. Used for
// nullable projection columns.
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
