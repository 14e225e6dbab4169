package tiered

import "github.com/pkg/errors"

// ErrOutOfMemory is the error returned when no region can satisfy an allocation. Use
// errors.Is to test for it; returned errors carry additional context about the request
// and the state of the fallback chain.
var ErrOutOfMemory error = errors.New("out of memory")
