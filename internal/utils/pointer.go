package utils

// Ptr returns a pointer to v, for literals and computed values that must be
// passed where a pointer is expected.
//
// Example:
//
//	temperature := utils.Ptr(0.1)
func Ptr[T any](v T) *T {
	return &v
}
