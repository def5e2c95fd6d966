package proxmox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MaxTicketAge is how long a login ticket may be used.
const MaxTicketAge = 2 * time.Hour

// TokenFileName is the name of the token cache inside the project directory.
const TokenFileName = ".proxmox_token"

// Credentials is an authenticated session: the ticket sent as the
// PVEAuthCookie and the CSRF token sent on mutating requests.
type Credentials struct {
	Ticket    string
	CSRFToken string
	IssuedAt  time.Time
}

// Expired reports whether the credentials are older than MaxTicketAge at now.
func (c *Credentials) Expired(now time.Time) bool {
	return now.Sub(c.IssuedAt) > MaxTicketAge
}

// valid reports whether c can be used at now.
func (c *Credentials) valid(now time.Time) bool {
	return c != nil && c.Ticket != "" && !c.Expired(now)
}

// TokenCache persists credentials between runs.
type TokenCache interface {
	// Load returns the cached credentials, or nil when there are none.
	Load() (*Credentials, error)
	Save(creds *Credentials) error
}

// FileTokenCache stores credentials as JSON in a file.
type FileTokenCache struct {
	Path string
}

// NewFileTokenCache returns a cache at dir/.proxmox_token.
func NewFileTokenCache(dir string) *FileTokenCache {
	return &FileTokenCache{Path: filepath.Join(dir, TokenFileName)}
}

type tokenFile struct {
	Date      string `json:"date"`
	Ticket    string `json:"ticket"`
	CSRFToken string `json:"csrf_token"`
}

// tokenDateLayouts are accepted when reading the cache. The last two match
// files written by older tooling.
var tokenDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
}

// Load implements TokenCache.
func (f *FileTokenCache) Load() (*Credentials, error) {
	// #nosec G304
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse token cache %s: %w", f.Path, err)
	}

	issued, err := parseTokenDate(tf.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token cache date: %w", err)
	}

	return &Credentials{Ticket: tf.Ticket, CSRFToken: tf.CSRFToken, IssuedAt: issued}, nil
}

// Save implements TokenCache.
func (f *FileTokenCache) Save(creds *Credentials) error {
	data, err := json.Marshal(tokenFile{
		Date:      creds.IssuedAt.UTC().Format(time.RFC3339),
		Ticket:    creds.Ticket,
		CSRFToken: creds.CSRFToken,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

func parseTokenDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range tokenDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
