// Package errors provides domain-specific error types for telemlink.
//
// These types carry structured context (operation, address) that helps
// callers tell a failed connect attempt apart from a runtime socket
// fault, and classification helpers the I/O pump uses to distinguish
// poll timeouts, peer closes, and real errors.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrNotConnected is returned by write operations on an idle link.
	ErrNotConnected = errors.New("link is not connected")

	// ErrConnectTimeout marks a client connect attempt that exceeded
	// its deadline before the remote answered.
	ErrConnectTimeout = errors.New("connection attempt timed out")

	// ErrAcceptTimeout marks a server connect attempt that saw no
	// inbound peer before its deadline.
	ErrAcceptTimeout = errors.New("no inbound connection arrived")
)

// ── Structured error types ───────────────────────────────────────────

// LinkError represents a failure in a link operation.
type LinkError struct {
	Op   string // operation: "dial", "listen", "accept", "write", "read"
	Addr string // network address involved
	Err  error  // underlying error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// Wrap creates a LinkError around an underlying failure.
func Wrap(op, addr string, err error) *LinkError {
	return &LinkError{Op: op, Addr: addr, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsTimeout reports whether err is a deadline expiry, either one of
// our sentinels or a net.Error timeout from the socket layer.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectTimeout) || errors.Is(err, ErrAcceptTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed reports whether err means the connection is gone — a peer
// close or a local teardown — as opposed to a genuine transport fault.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection" on
	// platforms where errors.Is does not see through the chain.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use telemlink/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }
