package engine

// ValidationError rejects a request before any write. The message is shown to
// the user as-is.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// ForbiddenError indicates the caller's role does not allow the operation.
type ForbiddenError struct{}

func (e ForbiddenError) Error() string { return "Access denied" }
