// Copyright (c) 2026 Registra. All rights reserved.

/*
Package pointer provides generic helpers for creating and dereferencing
pointers without boilerplate.

The main consumer is the partial-update machinery: patch structs use nil
pointers to mean "leave this field alone", and pointer.To builds those
patches from value literals.
*/
package pointer

// To returns a pointer to the provided value.
// Useful for building patch structs whose fields are pointers
// (e.g. pointer.To(true)).
func To[T any](v T) *T {
	return &v
}

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Fallback safely dereferences a pointer.
// If the pointer is nil, it returns the provided fallback value instead.
func Fallback[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
