package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an object-store failure that a later attempt may not
// hit: throttling, a 5xx from the storage API, a dropped connection or an
// expired credential that the provider chain will refresh.
type TransientError struct {
	Err error
	// Status is the storage API response code, or 0 when no response arrived.
	Status int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable. status may be 0.
func NewTransientError(err error, status int) *TransientError {
	return &TransientError{Err: err, Status: status}
}

// Fragments the SDK transports leave in wrapped socket errors after the
// typed error has been flattened to a string.
var droppedConnection = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err was marked with NewTransientError, or is a
// socket-level fault on the way to the bucket.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return isSocketFault(err) || mentionsDroppedConnection(err)
}

func isSocketFault(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func mentionsDroppedConnection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, frag := range droppedConnection {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// IsTransientStatus reports whether a storage API response code means the
// bucket was busy or briefly unavailable rather than the request being wrong.
func IsTransientStatus(status int) bool {
	switch {
	case status == 408, status == 429:
		return true
	case status >= 500 && status <= 504 && status != 501:
		return true
	default:
		return false
	}
}
