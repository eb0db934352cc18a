package document

import "fmt"

// ParseError reports a structurally invalid document. Path is the file that
// failed and Reason describes the violation.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid document %s: %s", e.Path, e.Reason)
}
