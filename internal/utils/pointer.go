package utils

// Ptr returns a pointer to v, so optional wire fields can be set from
// literals without a temporary variable.
func Ptr[T any](v T) *T {
	return &v
}
