// Package dccstack holds the error taxonomy shared by the lp2 and z21
// protocol engines (see spec §7).
package dccstack

import "errors"

// ErrorCode is the engine-level result delivered to a user callback on
// completion of a CV read/write or other device interaction. It mirrors the
// taxonomy in spec §7; FileError and NetworkError are not produced by this
// core (they belong to the file-transfer collaborator out of scope here).
type ErrorCode uint8

const (
	NoError ErrorCode = iota
	UnknownCommand
	ValueRejected
	ShortCircuit
	Timeout
	RequestFailed
	InvalidRequest
)

func (e ErrorCode) String() string {
	switch e {
	case NoError:
		return "no error"
	case UnknownCommand:
		return "unknown command"
	case ValueRejected:
		return "value rejected"
	case ShortCircuit:
		return "short circuit"
	case Timeout:
		return "timeout"
	case RequestFailed:
		return "request failed"
	case InvalidRequest:
		return "invalid request"
	default:
		return "unrecognized error"
	}
}

func (e ErrorCode) Error() string { return e.String() }

// Programmer-level errors: bad arguments passed to a constructor or call,
// as opposed to a device-reported ErrorCode. Mirrors the teacher's split
// between wire-level SDOAbortCode and local ErrIllegalArgument.
var (
	ErrIllegalArgument = errors.New("dccstack: illegal argument")
	ErrNotConnected    = errors.New("dccstack: not connected")
	ErrAlreadyPending  = errors.New("dccstack: sequence already has a pending request")
)
