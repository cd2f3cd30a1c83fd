// Package connect provides remote command sessions to network devices.
package connect

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors forming the connector failure taxonomy. Callers classify
// failures with errors.Is.
var (
	// ErrConnection means the device was unreachable or rejected
	// authentication.
	ErrConnection = errors.New("connection error")
	// ErrCommandTimeout means a command did not complete within its
	// timeout.
	ErrCommandTimeout = errors.New("command timeout")
	// ErrCommand means a command failed or was rejected by the device.
	ErrCommand = errors.New("command error")
)

// Credentials authenticate a session to a device.
type Credentials struct {
	Username string
	Password string
	KeyFile  string
}

// Session is one live command channel to a device. Close is idempotent.
type Session interface {
	Run(ctx context.Context, command string, timeout time.Duration) (string, error)
	Close() error
}

// Connector opens command sessions to devices. family is a device family
// hint (e.g. cisco_ios) for transports that need per-vendor behavior.
type Connector interface {
	Open(ctx context.Context, host string, creds Credentials, family string) (Session, error)
}
