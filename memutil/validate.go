package memutil

// Validatable is implemented by objects that can run internal consistency checks on themselves
type Validatable interface {
	Validate() error
}
