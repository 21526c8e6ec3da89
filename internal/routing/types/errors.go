package types

import (
	"errors"
	"fmt"
	"syscall"
)

// RouteError represents an error that occurred while talking to the kernel route protocol
type RouteError struct {
	Kind  ErrorKind
	Op    string // Operation that failed, e.g. "bind" or "decode"
	Cause error  // Underlying error
}

// ErrorKind represents the category of route protocol error
type ErrorKind int

// Error kind constants
const (
	// ErrSocketCreate indicates the netlink socket could not be created
	ErrSocketCreate ErrorKind = iota
	// ErrBind indicates the socket could not be bound
	ErrBind
	// ErrSend indicates the request write failed
	ErrSend
	// ErrReceive indicates a read failed or the response did not fit the buffer
	ErrReceive
	// ErrMalformedMessage indicates a header or attribute claims more bytes than remain
	ErrMalformedMessage
	// ErrKernelReported indicates the kernel answered with an error message
	ErrKernelReported
	// ErrUnsupportedFamily indicates an address family outside of the IPv4 main table
	ErrUnsupportedFamily
	// ErrMessageTooLarge indicates an encoded request would exceed its buffer bound
	ErrMessageTooLarge
	// ErrInvalidAddress indicates a lookup target could not be parsed
	ErrInvalidAddress
	// ErrUnsupportedPlatform indicates the host has no netlink route protocol
	ErrUnsupportedPlatform
)

// String returns a string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrSocketCreate:
		return "SocketCreateFailed"
	case ErrBind:
		return "BindFailed"
	case ErrSend:
		return "SendFailed"
	case ErrReceive:
		return "ReceiveFailed"
	case ErrMalformedMessage:
		return "MalformedMessage"
	case ErrKernelReported:
		return "KernelReportedError"
	case ErrUnsupportedFamily:
		return "UnsupportedFamily"
	case ErrMessageTooLarge:
		return "MessageTooLarge"
	case ErrInvalidAddress:
		return "InvalidAddress"
	case ErrUnsupportedPlatform:
		return "UnsupportedPlatform"
	default:
		return "UnknownError"
	}
}

// NewError creates a RouteError of the given kind
func NewError(kind ErrorKind, op string, cause error) *RouteError {
	return &RouteError{Kind: kind, Op: op, Cause: cause}
}

// ErrorOf returns a bare RouteError usable as an errors.Is target
func ErrorOf(kind ErrorKind) *RouteError {
	return &RouteError{Kind: kind}
}

// Error implements the error interface for RouteError
func (re *RouteError) Error() string {
	if re.Cause == nil {
		return fmt.Sprintf("route protocol [%s] %s", re.Kind.String(), re.Op)
	}
	return fmt.Sprintf("route protocol [%s] %s: %v", re.Kind.String(), re.Op, re.Cause)
}

// Unwrap returns the underlying error
func (re *RouteError) Unwrap() error {
	return re.Cause
}

// Is reports whether target is a RouteError of the same kind
func (re *RouteError) Is(target error) bool {
	t, ok := target.(*RouteError)
	if !ok {
		return false
	}
	return t.Kind == re.Kind
}

// IsKind reports whether err wraps a RouteError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *RouteError
	if !errors.As(err, &re) {
		return false
	}
	return re.Kind == kind
}

// KernelError is an error answered by the kernel, optionally with an extended ack message
type KernelError struct {
	Errno   int32  // Positive errno value
	Message string // Human readable message from the extended ack, may be empty
	Offset  uint32 // Offset of the offending attribute in the request, 0 when absent
}

// Error implements the error interface for KernelError
func (ke *KernelError) Error() string {
	if ke.Message != "" {
		return ke.Message
	}
	if ke.Errno != 0 {
		return syscall.Errno(ke.Errno).Error()
	}
	return "netlink reported error"
}

// Unwrap exposes the errno so callers can match syscall errors
func (ke *KernelError) Unwrap() error {
	if ke.Errno == 0 {
		return nil
	}
	return syscall.Errno(ke.Errno)
}
