package service

import "fmt"

// ValidationError reports a malformed query parameter.  It is raised before
// any store access and maps to HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
