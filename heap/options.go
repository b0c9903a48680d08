package heap

// CreateOptions contains optional settings when creating a Heap. It is valid to leave
// every field blank.
type CreateOptions struct {
	// Start is the highest address (exclusive) of the heap. Zero means the end of the region.
	Start Address
	// End is the lowest address the break may reach. Zero means the beginning of the region.
	End Address

	// IntegrityCheck is consulted every time the break is about to grow. When nil,
	// AlwaysApprove is used.
	IntegrityCheck IntegrityCheck
}
