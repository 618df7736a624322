package dbpool_test

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/connkeeper/internal/dbpool"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: deadline reached" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dbpool.ConnectFailureKind
	}{
		{"nil", nil, dbpool.ConnectFailureGeneric},
		{"invalid password sqlstate", &pgconn.PgError{Code: "28P01", Message: "bad"}, dbpool.ConnectFailureAuth},
		{"invalid authorization sqlstate", &pgconn.PgError{Code: "28000"}, dbpool.ConnectFailureAuth},
		{"connection exception sqlstate", &pgconn.PgError{Code: "08006"}, dbpool.ConnectFailureNetwork},
		{"password message", errors.New("FATAL: password authentication failed for user \"app\""), dbpool.ConnectFailureAuth},
		{"unknown role", errors.New("role \"ghost\" does not exist"), dbpool.ConnectFailureAuth},
		{"hba rule", errors.New("no pg_hba.conf entry for host \"10.0.0.1\", user \"app\""), dbpool.ConnectFailureNetwork},
		{"refused message", errors.New("dial tcp 10.0.0.1:5432: connect: connection refused"), dbpool.ConnectFailureNetwork},
		{"refused errno", fmt.Errorf("connect: %w", syscall.ECONNREFUSED), dbpool.ConnectFailureNetwork},
		{"dial op", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("boom")}, dbpool.ConnectFailureNetwork},
		{"timeout", timeoutError{}, dbpool.ConnectFailureNetwork},
		{"other", errors.New("server closed the connection"), dbpool.ConnectFailureGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dbpool.ClassifyConnectError(tt.err))
		})
	}
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("password authentication failed")
	err := error(&dbpool.ConnectionError{Kind: dbpool.ConnectFailureAuth, Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.True(t, dbpool.IsConnectionError(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, dbpool.IsAuthFailure(err))
	assert.Contains(t, err.Error(), "login rejected")

	network := &dbpool.ConnectionError{Kind: dbpool.ConnectFailureNetwork, Err: cause}
	assert.False(t, dbpool.IsAuthFailure(network))
	assert.Contains(t, network.Error(), "unreachable")

	assert.False(t, dbpool.IsConnectionError(cause))
}

func TestSQLState(t *testing.T) {
	assert.Equal(t, "23505", dbpool.SQLState(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.Equal(t, "", dbpool.SQLState(errors.New("plain")))
	assert.Equal(t, "", dbpool.SQLState(nil))
}
