// Package stdx holds small generic helpers missing from the standard library.
package stdx

// Must panics when err is not nil and returns v otherwise.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Zero returns the zero value of T.
func Zero[T any]() T {
	var zero T
	return zero
}
