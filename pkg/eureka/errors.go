package eureka

import "fmt"

// NotFoundError is returned when no registered instance matches the
// requested instance ID.
type NotFoundError struct {
	InstanceID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("instance %q not registered", e.InstanceID)
}

// UnavailableError is returned when the registry or a managed instance
// cannot be reached at all.
type UnavailableError struct {
	URL string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// StatusError is returned when an endpoint answered with a non-success
// HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}
