package tiered

import (
	"github.com/cockroachdb/errors"
	"github.com/memtier/tiered/region"
	"golang.org/x/exp/slog"
)

const (
	// DefaultThreshold is the value that is used as the Threshold when none is provided via
	// CreateOptions. Requests of 16 bytes or more prefer the external region.
	DefaultThreshold int = 16
	// DefaultReservationFloor is the value that is used as the ReservationFloor when none
	// is provided via CreateOptions. It is equal to 32KiB.
	DefaultReservationFloor int = 32 * 1024
)

// CreateOptions contains optional settings when creating an Allocator
type CreateOptions struct {
	// Threshold is the size in bytes at and above which requests prefer the external
	// region. Leaving it 0 selects DefaultThreshold.
	Threshold int
	// ReservationFloor is the number of free bytes that must remain in the internal region
	// above and beyond a large request before that request is permitted to fall back to the
	// internal region. Leaving it 0 selects DefaultReservationFloor.
	ReservationFloor int
}

// New creates a new Allocator routing requests across the regions served by the
// provided region.Provider
//
// logger - Destination for debug traces. It is valid to pass nil, in which case
// slog.Default() is used.
//
// provider - The region primitives that allocations will be routed to
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, provider region.Provider, options CreateOptions) (*Allocator, error) {
	if provider == nil {
		return nil, errors.New("a region.Provider is required to create an Allocator")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.Threshold < 0 {
		return nil, errors.Newf("tiered.CreateOptions.Threshold must not be negative, but was %d", options.Threshold)
	}
	if options.ReservationFloor < 0 {
		return nil, errors.Newf("tiered.CreateOptions.ReservationFloor must not be negative, but was %d", options.ReservationFloor)
	}

	allocator := &Allocator{
		logger:   logger,
		provider: provider,

		threshold:        options.Threshold,
		reservationFloor: options.ReservationFloor,
	}

	if allocator.threshold == 0 {
		allocator.threshold = DefaultThreshold
	}
	if allocator.reservationFloor == 0 {
		allocator.reservationFloor = DefaultReservationFloor
	}

	return allocator, nil
}
