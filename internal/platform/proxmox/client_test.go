package proxmox

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxmate/internal/platform/proxmox/proxmoxtest"
)

func TestLogin_FreshLoginPersistsToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	dir := t.TempDir()

	c := newTestClient(t, srv, WithTokenCache(NewFileTokenCache(dir)))
	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, 1, srv.Logins())

	_, err := os.Stat(filepath.Join(dir, TokenFileName))
	require.NoError(t, err)

	// A second client reuses the cached ticket.
	other := newTestClient(t, srv, WithTokenCache(NewFileTokenCache(dir)),
		WithPasswordSource(func(context.Context) (string, error) {
			return "", errors.New("password should not be requested")
		}))
	_, err = other.ClusterVMs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Logins())
}

func TestLogin_ReusesInMemoryCredentials(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	for range 3 {
		_, err := c.ClusterVMs(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Logins())
}

func TestLogin_ExpiredCacheWarnsAndLogsIn(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	dir := t.TempDir()
	cache := NewFileTokenCache(dir)
	require.NoError(t, cache.Save(&Credentials{
		Ticket:    "stale",
		CSRFToken: "stale",
		IssuedAt:  time.Now().Add(-3 * time.Hour),
	}))

	rep := &recordingReporter{}
	c := newTestClient(t, srv, WithTokenCache(cache), WithReporter(rep))
	require.NoError(t, c.Login(context.Background()))

	assert.Equal(t, 1, srv.Logins())
	assert.Contains(t, rep.Warnings(), "Token expired")

	saved, err := cache.Load()
	require.NoError(t, err)
	assert.NotEqual(t, "stale", saved.Ticket)
}

func TestLogin_InMemoryCredentialsExpire(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	now := time.Now()
	c := newTestClient(t, srv, WithClock(func() time.Time { return now }))

	require.NoError(t, c.Login(context.Background()))
	now = now.Add(MaxTicketAge + time.Minute)
	require.NoError(t, c.Login(context.Background()))

	assert.Equal(t, 2, srv.Logins())
}

func TestSession_CredentialsSurviveInvalidate(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	creds, err := c.session(context.Background())
	require.NoError(t, err)
	c.invalidate()

	require.NotNil(t, creds)
	var out []VMResource
	err = c.send(context.Background(), creds, http.MethodGet, "/cluster/resources", nil, nil, &out)
	assert.NoError(t, err, "a request holding validated credentials still carries its ticket")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := NewClient(srv.URL(), srv.Username,
		WithPasswordSource(StaticPassword("wrong")),
		WithTimeouts(fastTimeouts()))

	err := c.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_ServerErrorIsInvalidCredentials(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	srv.Fail(http.MethodPost, "/access/ticket", http.StatusInternalServerError, "ldap down", 1)
	c := newTestClient(t, srv)

	err := c.Login(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_NoPasswordSource(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	c := NewClient(srv.URL(), srv.Username, WithTimeouts(fastTimeouts()))

	assert.ErrorIs(t, c.Login(context.Background()), ErrInvalidCredentials)
}

func TestUnauthorized_InvalidatesCredentials(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	dir := t.TempDir()
	c := newTestClient(t, srv, WithTokenCache(NewFileTokenCache(dir)))

	_, err := c.ClusterVMs(context.Background())
	require.NoError(t, err)

	srv.ExpireTicket()
	_, err = c.ClusterVMs(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The next call authenticates again instead of reusing the cached ticket.
	_, err = c.ClusterVMs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Logins())
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not implemented", http.StatusNotImplemented, ErrNotImplemented},
		{"server error", http.StatusInternalServerError, ErrServer},
		{"not found", http.StatusNotFound, ErrConnection},
		{"bad request", http.StatusBadRequest, ErrConnection},
		{"service unavailable", http.StatusServiceUnavailable, ErrConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t)
			srv.Fail(http.MethodGet, "/cluster/resources", tt.status, "injected", 1)
			c := newTestClient(t, srv)

			_, err := c.ClusterVMs(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Error(), "injected")
		})
	}
}

func TestTransportFailureIsConnectionError(t *testing.T) {
	t.Parallel()
	srv := proxmoxtest.NewServer()
	url := srv.URL()
	srv.Close()

	c := NewClient(url, "root@pam", WithPasswordSource(StaticPassword("secret")), WithTimeouts(fastTimeouts()))
	err := c.Login(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}

func TestErrorDetails(t *testing.T) {
	t.Parallel()
	body := []byte(`{"data":null,"errors":{"newid":"invalid format","name":"too long"}}`)
	assert.Equal(t, "name: too long; newid: invalid format", errorDetails(body))
	assert.Empty(t, errorDetails([]byte(`{"data":null}`)))
	assert.Empty(t, errorDetails([]byte(`not json`)))
}

func TestRedact(t *testing.T) {
	t.Parallel()
	params := map[string][]string{"username": {"root@pam"}, "password": {"hunter2"}}
	out := redact(params)
	assert.Equal(t, "<redacted>", out.Get("password"))
	assert.Equal(t, "hunter2", params["password"][0])
}

type countingTransport struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return http.DefaultTransport.RoundTrip(req)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	transport := &countingTransport{}

	c := newTestClient(t, srv, WithHTTPClient(&http.Client{Transport: transport}))
	_, err := c.ClusterVMs(context.Background())
	require.NoError(t, err)

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Equal(t, 2, transport.calls, "login and listing go through the custom client")
}
