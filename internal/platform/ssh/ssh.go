package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/proxmate/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback

	// ConnectAttempts bounds how often a failed dial is retried. Handshake
	// failures are never retried. Zero means a single attempt.
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
}

// Client executes commands on a remote host via SSH.
// It parses the private key once during construction and
// creates connections on demand per command.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // guests are freshly cloned
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{config: &configCopy, signer: signer}, nil
}

// NewClientFromKeyFile reads the private key at path and creates a client.
func NewClientFromKeyFile(host string, port int, user, path string) (*Client, error) {
	// #nosec G304 -- key path comes from the operator's configuration
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	return NewClient(&Config{Host: host, Port: port, User: user, PrivateKey: key})
}

// WithConnectRetry returns a copy of c that retries failed dials.
func (c *Client) WithConnectRetry(attempts int, delay time.Duration) *Client {
	cfg := *c.config
	cfg.ConnectAttempts = attempts
	cfg.ConnectRetryDelay = delay
	return &Client{config: &cfg, signer: c.signer}
}

// Addr returns host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Execute runs a command and returns its combined output.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	var out bytes.Buffer
	err := c.Stream(ctx, command, nil, &out)
	return out.String(), err
}

// Stream runs command with stdin attached and copies stdout and stderr to out
// as they arrive. Cancelling ctx closes the connection.
func (c *Client) Stream(ctx context.Context, command string, stdin io.Reader, out io.Writer) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	if stdin != nil {
		session.Stdin = stdin
	}
	if out == nil {
		out = io.Discard
	}
	session.Stdout = out
	session.Stderr = out

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = client.Close()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return &CommandError{Host: c.config.Host, Command: command, Err: err}
		}
		return nil
	}
}

// connect establishes the SSH connection, retrying refused or timed out
// dials up to ConnectAttempts times.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	var client *ssh.Client
	err := retry.Do(ctx, retry.Transient(func() error {
		var err error
		client, err = c.dial(ctx)
		return err
	}),
		retry.WithMaxAttempts(c.config.ConnectAttempts),
		retry.WithDelay(c.config.ConnectRetryDelay),
		retry.WithTerminal(func(last error) error { return last }))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := c.Addr()
	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, retry.Fatal(fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err))
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// CommandError is returned when a remote command fails.
type CommandError struct {
	Host    string
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed on %s: %v\nCommand: %s", e.Host, e.Err, firstLine(e.Command))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitStatus returns the remote exit status, or -1 when the command did not
// exit normally.
func (e *CommandError) ExitStatus() int {
	var exitErr *ssh.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitStatus()
	}
	return -1
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
