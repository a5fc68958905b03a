package memsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/files"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/logger"
)

// Session is an authenticated API token and its expiry. It is never
// mutated after LoadSession returns it.
type Session struct {
	Token   string
	Expires time.Time
}

// Valid reports whether the token is usable at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && s.Expires.After(now)
}

// Credentials authenticate a fresh login.
type Credentials struct {
	Username string
	Password string
}

type cachedSession struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

// vendor timestamps carry a zone offset without a colon
var expiryLayouts = []string{
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
}

func parseExpiry(value string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", value)
}

// DefaultSessionPath is the token cache under the user's cache directory.
func DefaultSessionPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "posync", "memsource-token.json")
}

// LoadSession returns the cached token when it is still valid at now.
// Otherwise it logs in with creds and rewrites the cache file.
func LoadSession(ctx context.Context, opts Options, path string, creds Credentials, now time.Time) (Session, error) {
	if path != "" {
		cached, err := readSession(path)
		switch {
		case err == nil && cached.Valid(now):
			logger.Debug("Reusing cached Memsource session", "expires", cached.Expires)
			return cached, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			logger.Warn("Ignoring unreadable Memsource session cache", "path", path, "error", err)
		}
	}

	session, err := Login(ctx, opts, creds)
	if err != nil {
		return Session{}, err
	}
	if path != "" {
		if err := writeSession(path, session); err != nil {
			logger.Warn("Could not cache Memsource session", "path", path, "error", err)
		}
	}
	return session, nil
}

// Login exchanges credentials for a new session.
func Login(ctx context.Context, opts Options, creds Credentials) (Session, error) {
	op := "memsource login"
	if creds.Username == "" || creds.Password == "" {
		return Session{}, apperrors.New(apperrors.KindAuth, "Memsource username and password are required.", nil)
	}
	opts = opts.withDefaults()
	resp, err := httpclient.NewResty(opts.BaseURL, opts.HTTPClient).R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(loginRequest{UserName: creds.Username, Password: creds.Password}).
		Post("/api2/v1/auth/login")
	if err != nil {
		return Session{}, httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return Session{}, httpclient.StatusError(op, resp)
	}
	var body loginResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Token == "" {
		return Session{}, apperrors.New(apperrors.KindAuth, op+": response did not contain a token", err)
	}
	expires, err := parseExpiry(body.Expires)
	if err != nil {
		return Session{}, apperrors.New(apperrors.KindAuth, op+": response expiry was invalid", err)
	}
	logger.Info("Logged in to Memsource", "user", creds.Username, "expires", expires)
	return Session{Token: body.Token, Expires: expires}, nil
}

func readSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, err
	}
	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return Session{}, fmt.Errorf("decode session cache: %w", err)
	}
	return Session{Token: cached.Token, Expires: cached.Expiry}, nil
}

func writeSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(cachedSession{Token: s.Token, Expiry: s.Expires})
	if err != nil {
		return err
	}
	return files.AtomicWrite(path, data, 0o600)
}
