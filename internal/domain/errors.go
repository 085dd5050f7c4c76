package domain

import "fmt"

// UnreachableError reports a connection-level failure: the upstream never
// answered at the transport layer. It is a distinct class from an
// application-level non-success status and must never trigger the batch
// fallback.
type UnreachableError struct {
	Backend string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("upstream unreachable at %s: %v", e.Backend, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint is the remediation text surfaced to callers on 503 responses.
func (e *UnreachableError) Hint() string {
	return fmt.Sprintf("agent backend expected at %s - check that it is running and reachable", e.Backend)
}

// StatusError reports an application-level non-success status from an
// upstream endpoint, with the upstream error body preserved verbatim for
// propagation.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}
