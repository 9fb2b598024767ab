package stallone

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ForeignException represents a Java exception raised inside the foreign
// object space. It captures the exception class, message, stack trace and
// the chain of causes.
type ForeignException struct {
	// Exception is the exception class name (e.g., "java.lang.IllegalArgumentException").
	Exception string `json:"exception" msgpack:"exception"`

	// Message is the exception message.
	Message string `json:"message" msgpack:"message"`

	// StackTrace is the printed Java stack trace.
	StackTrace string `json:"stacktrace" msgpack:"stacktrace"`

	// Cause is the exception this one was raised from, if any.
	Cause *ForeignException `json:"cause,omitempty" msgpack:"cause,omitempty"`

	// ExceptionArgs holds extra structured detail the agent attached.
	ExceptionArgs []interface{} `json:"args,omitempty" msgpack:"args,omitempty"`
}

// ToString formats the exception with its stack trace and causes.
func (e *ForeignException) ToString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n%s", e.Exception, e.Message, e.StackTrace)
	for c := e.Cause; c != nil; c = c.Cause {
		fmt.Fprintf(&b, "\nCaused by: %s: %s\n%s", c.Exception, c.Message, c.StackTrace)
	}
	return b.String()
}

// Error implements the error interface with the class and message only.
func (e *ForeignException) Error() string {
	return fmt.Sprintf("%s: %s", e.Exception, e.Message)
}

// Unwrap returns the cause, so errors.Is and errors.As walk the Java cause
// chain.
func (e *ForeignException) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Root returns the innermost cause, e itself when there is none.
func (e *ForeignException) Root() *ForeignException {
	for e.Cause != nil {
		e = e.Cause
	}
	return e
}

// NewForeignExceptionFromJSON parses a ForeignException from JSON bytes, as the
// agent writes them to stderr when it fails outside of a request.
func NewForeignExceptionFromJSON(data []byte) (*ForeignException, error) {
	var ex ForeignException
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}
