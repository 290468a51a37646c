package qmux

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable transport-level error taxonomy. A QMI-reported
// failure carries a QMIErrorCode instead; both surface
// to the caller with the same *Error shape so the kind symbol alone
// carries the distinction.
type ErrorKind string

const (
	ErrTimeout            ErrorKind = "timeout"
	ErrWriteError         ErrorKind = "write_error"
	ErrDeviceClosed       ErrorKind = "device_closed"
	ErrDecodeError        ErrorKind = "decode_error"
	ErrUnexpectedResponse ErrorKind = "unexpected_response"
	ErrShutdown           ErrorKind = "shutdown"
	// ErrQMIFailure marks an error whose real classification lives in
	// QMIError, not Kind; Kind is still populated for callers that only
	// care about the transport/QMI distinction.
	ErrQMIFailure ErrorKind = "qmi_failure"
)

// Error is a structured transport error with enough context to diagnose a
// failed call without re-deriving it from the bytes.
type Error struct {
	Op            string // e.g. "Call", "write", "decode"
	ServiceID     uint8
	ClientID      uint8
	TransactionID uint16
	Kind          ErrorKind
	QMIError      QMIErrorCode // populated iff Kind == ErrQMIFailure
	Msg           string
	Inner         error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	parts = append(parts, fmt.Sprintf("service=%d", e.ServiceID))
	if e.TransactionID != 0 {
		parts = append(parts, fmt.Sprintf("tid=%d", e.TransactionID))
	}

	msg := e.Msg
	if msg == "" {
		if e.Kind == ErrQMIFailure {
			msg = e.QMIError.String()
		} else {
			msg = string(e.Kind)
		}
	}

	return fmt.Sprintf("qmux: %s (%s)", msg, joinParts(parts))
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

// Unwrap supports errors.Is/As against the wrapped error.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison against a bare ErrorKind or QMIErrorCode,
// and against another *Error by kind (and QMI code when Kind is a QMI
// failure).
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	switch t := target.(type) {
	case kindSentinel:
		return e.Kind == ErrorKind(t)
	case qmiSentinel:
		return e.Kind == ErrQMIFailure && e.QMIError == QMIErrorCode(t)
	case *Error:
		if e.Kind != t.Kind {
			return false
		}
		if e.Kind == ErrQMIFailure {
			return e.QMIError == t.QMIError
		}
		return true
	}
	return false
}

// kindSentinel and qmiSentinel let callers write errors.Is(err,
// qmux.KindError(ErrTimeout)) without constructing a full *Error.
type kindSentinel ErrorKind
type qmiSentinel QMIErrorCode

func (s kindSentinel) Error() string { return string(s) }
func (s qmiSentinel) Error() string  { return QMIErrorCode(s).String() }

// KindError returns a sentinel usable with errors.Is to test an *Error's Kind.
func KindError(kind ErrorKind) error { return kindSentinel(kind) }

// QMIError returns a sentinel usable with errors.Is to test an *Error's
// QMIError code.
func QMIError(code QMIErrorCode) error { return qmiSentinel(code) }

func newError(op string, serviceID, clientID uint8, transactionID uint16, kind ErrorKind, msg string) *Error {
	return &Error{
		Op:            op,
		ServiceID:     serviceID,
		ClientID:      clientID,
		TransactionID: transactionID,
		Kind:          kind,
		Msg:           msg,
	}
}

func newQMIError(op string, serviceID, clientID uint8, transactionID uint16, code QMIErrorCode) *Error {
	return &Error{
		Op:            op,
		ServiceID:     serviceID,
		ClientID:      clientID,
		TransactionID: transactionID,
		Kind:          ErrQMIFailure,
		QMIError:      code,
	}
}

func wrapError(op string, serviceID uint8, inner error) *Error {
	if inner == nil {
		return nil
	}
	if e, ok := inner.(*Error); ok {
		wrapped := *e
		wrapped.Op = op
		return &wrapped
	}
	return &Error{
		Op:        op,
		ServiceID: serviceID,
		Kind:      ErrDecodeError,
		Msg:       inner.Error(),
		Inner:     inner,
	}
}

// IsKind reports whether err is a *qmux.Error with the given transport kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsQMIError reports whether err is a *qmux.Error carrying the given QMI
// error code.
func IsQMIError(err error, code QMIErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrQMIFailure && e.QMIError == code
	}
	return false
}
