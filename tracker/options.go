package tracker

// Options contains optional settings when creating a Tracker. It is valid to leave every
// field blank.
type Options struct {
	// ValidateEveryCall runs the heap's consistency checks after every forwarded call and
	// reports a violation as an error from that call. Malloc, Calloc and Realloc return
	// heap.Null alongside the error, but the allocation they made remains tracked.
	ValidateEveryCall bool
	// Synchronized serializes every call through a mutex, so that a single Tracker can be
	// shared between goroutines
	Synchronized bool
}
