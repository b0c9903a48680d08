package memutils

import "github.com/pkg/errors"

var (
	// ErrInvalidBounds is returned when a heap is initialized with a start address that is not
	// strictly above its end address, or with bounds that fall outside the backing region
	ErrInvalidBounds error = errors.New("heap start must be above heap end and within the region")
	// ErrOutOfMemory is returned when the break cannot be moved far enough to satisfy a request
	ErrOutOfMemory error = errors.New("out of memory")
	// ErrInvalidPointer is returned from free and realloc operations when the provided address
	// does not look like a live allocation
	ErrInvalidPointer error = errors.New("invalid pointer")
	// ErrDoubleRelease is returned when the provided address is already present on the free list
	ErrDoubleRelease error = errors.New("double release")
	// ErrInvalidSize is returned when a negative size is requested
	ErrInvalidSize error = errors.New("invalid size")
)
