package dbpool

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrManagerClosed is returned by Acquire after Close has been called.
	ErrManagerClosed = errors.New("pool manager closed")

	// ErrUnusableHandle is returned when a connector reports success
	// but yields no pool.
	ErrUnusableHandle = errors.New("connector returned an unusable pool handle")
)

// ConnectFailureKind is a best-effort diagnostic classification of a failed
// connect attempt. It never changes control flow.
type ConnectFailureKind int

const (
	// ConnectFailureGeneric covers every failure not recognized below.
	ConnectFailureGeneric ConnectFailureKind = iota
	// ConnectFailureAuth indicates rejected credentials or an unknown login.
	ConnectFailureAuth
	// ConnectFailureNetwork indicates an unreachable server or a connection
	// blocked by a firewall or host-based access rule.
	ConnectFailureNetwork
)

// String returns the kind's name as used in logs.
func (k ConnectFailureKind) String() string {
	switch k {
	case ConnectFailureAuth:
		return "auth"
	case ConnectFailureNetwork:
		return "network"
	default:
		return "generic"
	}
}

// ConnectionError reports a failed attempt to open the pool.
type ConnectionError struct {
	Kind ConnectFailureKind
	Err  error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	switch e.Kind {
	case ConnectFailureAuth:
		return fmt.Sprintf("database connection failed (login rejected): %v", e.Err)
	case ConnectFailureNetwork:
		return fmt.Sprintf("database connection failed (server unreachable or blocked): %v", e.Err)
	default:
		return fmt.Sprintf("database connection failed: %v", e.Err)
	}
}

// Unwrap returns the underlying connect error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsAuthFailure reports whether err is a connection error classified as a
// login failure.
func IsAuthFailure(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Kind == ConnectFailureAuth
}

// sqlStater is implemented by driver errors carrying a SQLSTATE code,
// e.g. *pgconn.PgError.
type sqlStater interface {
	SQLState() string
}

// SQLState extracts the SQLSTATE code from err, or "" when none is present.
func SQLState(err error) string {
	var se sqlStater
	if errors.As(err, &se) {
		return se.SQLState()
	}
	return ""
}

var authMessages = []string{
	"password authentication failed",
	"authentication failed",
	"login failed",
	"access denied",
	"does not exist", // role "x" does not exist
}

var networkMessages = []string{
	"no pg_hba.conf entry",
	"firewall",
	"connection refused",
	"no route to host",
	"network is unreachable",
	"no such host",
	"i/o timeout",
	"timeout expired",
}

// ClassifyConnectError inspects a connect failure and guesses its cause.
func ClassifyConnectError(err error) ConnectFailureKind {
	if err == nil {
		return ConnectFailureGeneric
	}

	switch code := SQLState(err); {
	case code == "28P01" || code == "28000":
		return ConnectFailureAuth
	case strings.HasPrefix(code, "08"):
		return ConnectFailureNetwork
	}

	msg := strings.ToLower(err.Error())
	// host-based access rules also mention the user, check them first
	for _, m := range networkMessages {
		if strings.Contains(msg, m) {
			return ConnectFailureNetwork
		}
	}
	for _, m := range authMessages {
		if strings.Contains(msg, m) {
			return ConnectFailureAuth
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return ConnectFailureNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ConnectFailureNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectFailureNetwork
	}

	return ConnectFailureGeneric
}
