package memutils

// Validatable is implemented by types that can check their own internal consistency,
// such as a heap walking its segments
type Validatable interface {
	Validate() error
}
