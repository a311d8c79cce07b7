package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the management API.
type ErrorKind string

const (
	// KindConfig marks a malformed server descriptor or name.
	KindConfig ErrorKind = "ConfigError"
	// KindDuplicateName marks an add for a name already in the registry.
	KindDuplicateName ErrorKind = "DuplicateNameError"
	// KindParse marks an unrecognized install command or invalid JSON.
	KindParse ErrorKind = "ParseError"
	// KindProcessStart marks a spawn or handshake failure.
	KindProcessStart ErrorKind = "ProcessStartError"
	// KindProcessTimeout marks a ping, list or call that exceeded its deadline.
	KindProcessTimeout ErrorKind = "ProcessTimeoutError"
	// KindToolExecution marks a remote tool that failed or raised.
	KindToolExecution ErrorKind = "ToolExecutionError"
	// KindNotFound marks an operation on a name with no config or runtime.
	KindNotFound ErrorKind = "NotFoundError"
	// KindStorage marks a failure reading or writing the registry.
	KindStorage ErrorKind = "StorageError"
	// KindInternal marks an unanticipated fault caught at an entry point.
	KindInternal ErrorKind = "InternalError"
)

// Error is the typed error carried across component boundaries.
//
// Message is the human-readable text surfaced to API callers. Err, when set,
// is the underlying cause and is reachable through errors.Unwrap.
type Error struct {
	Kind ErrorKind
	// Name is the server the error relates to, if any.
	Name    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError converts any error into an *Error. Errors that are not already
// typed become KindInternal. A nil input yields nil.
//
// Example:
//
//	if apiErr := api.AsError(err); apiErr != nil {
//	    c.JSON(status, gin.H{"success": false, "error": apiErr.Message})
//	}
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	if e := AsError(err); e != nil {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// NewConfigError creates a descriptor validation error.
func NewConfigError(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// NewDuplicateNameError creates the error returned when adding a name that
// already exists.
func NewDuplicateNameError(name string) *Error {
	return &Error{
		Kind:    KindDuplicateName,
		Name:    name,
		Message: fmt.Sprintf("MCP server with name '%s' already exists.", name),
	}
}

// NewParseError creates a parser failure.
func NewParseError(message string) *Error {
	return &Error{Kind: KindParse, Message: message}
}

// NewNotFoundError creates the error returned for names absent from the
// registry.
func NewNotFoundError(name string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Name:    name,
		Message: fmt.Sprintf("MCP server %s not found in config file.", name),
	}
}

// NewNotRunningError creates the error returned for names with no live
// runtime.
func NewNotRunningError(name string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Name:    name,
		Message: fmt.Sprintf("MCP server %s is not running.", name),
	}
}

// NewProcessStartError wraps a spawn or handshake failure.
func NewProcessStartError(name string, err error) *Error {
	return &Error{
		Kind:    KindProcessStart,
		Name:    name,
		Message: fmt.Sprintf("failed to start MCP server %s: %v", name, err),
		Err:     err,
	}
}

// NewProcessTimeoutError wraps a deadline overrun for operation op.
func NewProcessTimeoutError(name, op string, err error) *Error {
	return &Error{
		Kind:    KindProcessTimeout,
		Name:    name,
		Message: fmt.Sprintf("MCP server %s: %s timed out", name, op),
		Err:     err,
	}
}

// NewToolExecutionError wraps a remote tool failure.
func NewToolExecutionError(name, message string, err error) *Error {
	return &Error{
		Kind:    KindToolExecution,
		Name:    name,
		Message: message,
		Err:     err,
	}
}

// NewStorageError wraps a registry persistence failure.
func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// NewInternalError normalizes an unanticipated fault.
func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf("internal error: %v", err), Err: err}
}
