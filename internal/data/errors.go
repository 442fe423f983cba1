package data

// notFoundError signals a missing case session. Exposed as a sentinel so
// callers can branch with errors.Is.
type notFoundError struct{}

func (notFoundError) Error() string { return "case session not found" }

// ErrNotFound is returned when a case session does not exist in the store.
var ErrNotFound error = notFoundError{}
