package connect

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// SSHConnector opens SSH sessions to devices using password or private-key
// authentication.
type SSHConnector struct {
	Port        int
	DialTimeout time.Duration
}

// NewSSHConnector creates an SSH connector.
func NewSSHConnector(port int, dialTimeout time.Duration) *SSHConnector {
	if port <= 0 {
		port = 22
	}
	if dialTimeout <= 0 {
		dialTimeout = 20 * time.Second
	}
	return &SSHConnector{Port: port, DialTimeout: dialTimeout}
}

// Open dials the device and authenticates. The family hint is unused by the
// SSH transport; command selection happens at the session-manager layer.
func (c *SSHConnector) Open(ctx context.Context, host string, creds Credentials, family string) (Session, error) {
	config, err := c.clientConfig(creds)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(c.Port))
	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(ErrConnection, "dial %s: %v", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(ErrConnection, "handshake with %s: %v", addr, err)
	}

	return &sshSession{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

func (c *SSHConnector) clientConfig(creds Credentials) (*ssh.ClientConfig, error) {
	authMethods := make([]ssh.AuthMethod, 0, 2)
	if creds.Password != "" {
		authMethods = append(authMethods, ssh.Password(creds.Password))
	}
	if creds.KeyFile != "" {
		key, err := os.ReadFile(creds.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(ErrConnection, "read private key %s: %v", creds.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Wrapf(ErrConnection, "parse private key %s: %v", creds.KeyFile, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if len(authMethods) == 0 {
		return nil, errors.Wrap(ErrConnection, "no authentication method configured")
	}

	return &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.DialTimeout,
	}, nil
}

type sshSession struct {
	client    *ssh.Client
	closeOnce sync.Once
	closeErr  error
}

// Run executes one command in a fresh SSH exec channel. Remote execution is
// not preemptible; on timeout the channel is torn down and the output
// discarded.
func (s *sshSession) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", errors.Wrapf(ErrCommand, "open exec channel: %v", err)
	}
	defer sess.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		out, runErr := sess.CombinedOutput(command)
		done <- result{output: out, err: runErr}
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return "", errors.Wrapf(ErrCommand, "run %q: %v", command, r.err)
		}
		output := strings.ReplaceAll(string(r.output), "\r\n", "\n")
		if strings.Contains(output, "Invalid input") || strings.Contains(output, "Incomplete command") {
			return "", errors.Wrapf(ErrCommand, "device rejected %q", command)
		}
		return output, nil
	case <-timeoutCh:
		return "", errors.Wrapf(ErrCommandTimeout, "run %q exceeded %s", command, timeout)
	case <-ctx.Done():
		return "", errors.Wrapf(ErrCommandTimeout, "run %q: %v", command, ctx.Err())
	}
}

func (s *sshSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
