package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultServerURL is used when neither the caller nor the environment names a server.
const DefaultServerURL = "http://localhost:8000"

// SyncConfig is the persisted sync state. It is always read and written as a whole.
type SyncConfig struct {
	ServerURL  string `json:"serverUrl" toml:"server_url"`
	Token      string `json:"token,omitempty" toml:"token"`
	Email      string `json:"email,omitempty" toml:"email"`
	LastSyncAt string `json:"lastSyncAt,omitempty" toml:"last_sync_at"`
	AutoSync   bool   `json:"autoSync" toml:"auto_sync"`
}

// DefaultSyncConfig returns the logged-out configuration.
func DefaultSyncConfig(serverURL string) SyncConfig {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return SyncConfig{
		ServerURL: serverURL,
		AutoSync:  true,
	}
}

// LoggedIn reports whether a bearer token is stored.
func (c SyncConfig) LoggedIn() bool {
	return c.Token != ""
}

// Redacted returns a copy safe for logging.
func (c SyncConfig) Redacted() SyncConfig {
	if c.Token != "" {
		c.Token = "***REDACTED***"
	}
	return c
}

var syncTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseSyncTime parses a server timestamp. Timestamps without a zone are UTC.
func ParseSyncTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range syncTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
