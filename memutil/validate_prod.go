//go:build !debug_memtier

package memutil

const (
	// DebugMargin is the number of guard bytes placed after each allocation in pools managed
	// by this module
	DebugMargin int = 0
)

// WriteGuardBytes writes an easy-to-identify marker across the provided slice, which must be
// DebugMargin bytes long. This method no-ops unless the debug_memtier build tag is present.
func WriteGuardBytes(guard []byte) {
}

// ValidateGuardBytes verifies that the marker written by WriteGuardBytes is still present.
// It returns true if the marker is intact and false otherwise.
// This method no-ops unless the debug_memtier build tag is present.
func ValidateGuardBytes(guard []byte) bool {
	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned.
// This method no-ops unless the debug_memtier build tag is present.
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics
// if it is not. This method no-ops unless the debug_memtier build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}
