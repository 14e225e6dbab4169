//go:build debug_memtier

package memutil

import "encoding/binary"

const (
	// DebugMargin is the number of guard bytes placed after each allocation in pools managed
	// by this module
	DebugMargin int = 8
	// corruptionGuardMagic is a 4-byte pattern that is copied into guard bytes placed after
	// allocations in pools managed by this module
	corruptionGuardMagic uint32 = 0x6D54E9C1
)

// WriteGuardBytes writes an easy-to-identify marker across the provided slice, which must be
// DebugMargin bytes long. This method no-ops unless the debug_memtier build tag is present.
func WriteGuardBytes(guard []byte) {
	for i := 0; i+4 <= DebugMargin; i += 4 {
		binary.LittleEndian.PutUint32(guard[i:], corruptionGuardMagic)
	}
}

// ValidateGuardBytes verifies that the marker written by WriteGuardBytes is still present.
// It returns true if the marker is intact and false otherwise.
// This method no-ops unless the debug_memtier build tag is present.
func ValidateGuardBytes(guard []byte) bool {
	for i := 0; i+4 <= DebugMargin; i += 4 {
		if binary.LittleEndian.Uint32(guard[i:]) != corruptionGuardMagic {
			return false
		}
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned.
// This method no-ops unless the debug_memtier build tag is present.
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics
// if it is not. This method no-ops unless the debug_memtier build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
