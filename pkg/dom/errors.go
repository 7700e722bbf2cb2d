package dom

// Errors
var (
	ErrNotFound          = &DomError{"instance not found"}
	ErrParentNotFound    = &DomError{"parent instance not found"}
	ErrDuplicateReferent = &DomError{"referent already present in dom"}
	ErrCycle             = &DomError{"instance cannot be parented to its own descendant"}
	ErrRemoveRoot        = &DomError{"root instance cannot be removed"}
)

// DomError represents a dom mutation or lookup error
type DomError struct {
	Message string
}

func (e *DomError) Error() string {
	return "dom: " + e.Message
}
