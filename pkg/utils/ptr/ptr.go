// Package ptr has small helpers to take addresses of values.
package ptr

// To returns a pointer to the given value.
func To[T any](v T) *T {
	return &v
}
