package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// OrZero dereferences v, or gives the zero value when v is nil.
func OrZero[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// StringOrNil trims s and returns nil when nothing is left.
func StringOrNil(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
