package cvapi

import "fmt"

// AuthenticationError reports a rejected login or session token, or an
// endpoint that could not be reached while authenticating.
type AuthenticationError struct {
	Hostname string
	Reason   string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := "authentication failed"
	if e.Hostname != "" {
		msg += " for " + e.Hostname
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NotFoundError reports a named entity missing from its collection.
type NotFoundError struct{ Resource, Name string }

func (e *NotFoundError) Error() string { return e.Resource + " not found: " + e.Name }

// ArgumentError reports arguments a node cannot accept for an operation.
type ArgumentError struct{ Operation, Reason string }

func (e *ArgumentError) Error() string { return e.Operation + ": " + e.Reason }

// RemoteOperationError reports a failure returned by the CommCell itself.
// Message is the service's text, unmodified.
type RemoteOperationError struct {
	Operation  string
	StatusCode int
	Code       int
	Message    string
}

func (e *RemoteOperationError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: error %d: %s", e.Operation, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}
