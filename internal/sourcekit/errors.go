package sourcekit

import "fmt"

// MissingResponseFieldError reports a response without a required key.
type MissingResponseFieldError struct {
	Key string
}

func (e *MissingResponseFieldError) Error() string {
	return fmt.Sprintf("sourcekit response missing field %s", e.Key)
}

// UnexpectedFieldTypeError reports a response key holding the wrong JSON type.
type UnexpectedFieldTypeError struct {
	Key  string
	Want string
	Got  string
}

func (e *UnexpectedFieldTypeError) Error() string {
	return fmt.Sprintf("sourcekit response field %s: want %s, got %s", e.Key, e.Want, e.Got)
}

// InternalDiagnosticError reports a response carrying key.internal_diagnostic.
// Such a response is never treated as an answer.
type InternalDiagnosticError struct {
	Diagnostic string
	Response   map[string]any
}

func (e *InternalDiagnosticError) Error() string {
	return fmt.Sprintf("sourcekit internal diagnostic: %s", e.Diagnostic)
}

// TransportError reports a failure to run the service or decode its output.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sourcekit %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
