package icpcert

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a container decoding failure.
type ErrorKind int

const (
	// BadPasswordOrCorrupt covers a wrong password and a malformed container.
	// The decryption primitive cannot reliably tell the two apart, so they
	// share one kind.
	BadPasswordOrCorrupt ErrorKind = iota + 1
	// NoCertificateFound means the container decoded but held no certificate.
	NoCertificateFound
)

func (k ErrorKind) String() string {
	switch k {
	case BadPasswordOrCorrupt:
		return "bad password or corrupt container"
	case NoCertificateFound:
		return "no certificate found"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// DecodeError is the only error type returned by ParseCertificate and
// DecodeContainer. Err carries the underlying library error, if any.
type DecodeError struct {
	Kind ErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches any DecodeError of the same kind, so the package sentinels work
// with errors.Is regardless of the wrapped cause.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

var (
	ErrBadPasswordOrCorrupt = &DecodeError{Kind: BadPasswordOrCorrupt}
	ErrNoCertificateFound   = &DecodeError{Kind: NoCertificateFound}
)

// KindOf returns the ErrorKind of err if it is (or wraps) a DecodeError.
func KindOf(err error) (ErrorKind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

func badPasswordOrCorrupt(err error) *DecodeError {
	return &DecodeError{Kind: BadPasswordOrCorrupt, Err: err}
}
