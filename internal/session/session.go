package session

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
)

const (
	report_store_load    = "store.load"
	report_store_save    = "store.save"
	report_store_restore = "store.restore"
	report_store_capture = "store.capture"
)

// DefaultLoginTimeout bounds how long Capture waits for a human to finish logging in.
const DefaultLoginTimeout = 5 * time.Minute

const DefaultFilename = "session.json"

var (
	ErrSession        = errors.New("session")
	ErrSessionMissing = fmt.Errorf("%w: not found", ErrSession)
	ErrSessionInvalid = fmt.Errorf("%w: invalid", ErrSession)
)

// Cookie is a browser cookie in the shape browser automation tools write to session files.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HttpOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

func (c Cookie) valid() bool {
	return c.Name != "" && c.Domain != ""
}

// State is a complete browser session snapshot.
type State struct {
	Cookies []Cookie `json:"cookies"`
	// Origins is the local storage snapshot, kept verbatim.
	Origins json.RawMessage `json:"origins,omitempty"`
}

// CookieJar is a browser context cookies can be read from and injected into.
type CookieJar interface {
	SetCookies(ctx context.Context, cookies []Cookie) error
	Cookies(ctx context.Context) ([]Cookie, error)
}

// LoginBrowser is a browser a human can complete the interactive login in.
type LoginBrowser interface {
	CookieJar
	Open(ctx context.Context, url string) error
	WaitForURL(ctx context.Context, match func(url string) bool) error
}

// Info describes a session file on disk.
type Info struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
	Size   *int64 `json:"size"`
}

// Store persists browser sessions as json files.
type Store struct {
	dir          string
	loginTimeout time.Duration
	tel          telemetry.API
}

type storeConfig struct {
	loginTimeout time.Duration
	tel          telemetry.API
}

type StoreOption func(cfg *storeConfig)

func WithLoginTimeout(timeout time.Duration) StoreOption {
	return func(cfg *storeConfig) {
		cfg.loginTimeout = timeout
	}
}

func WithTelemetryAPI(tel telemetry.API) StoreOption {
	return func(cfg *storeConfig) {
		cfg.tel = tel
	}
}

// NewStore creates a Store keeping per-owner session files under dir.
func NewStore(dir string, options ...StoreOption) Store {
	assert.NotEmptyStr(dir, "dir")

	cfg := storeConfig{
		loginTimeout: DefaultLoginTimeout,
		tel:          telemetry.SlogAPI{},
	}
	for _, opt := range options {
		opt(&cfg)
	}

	return Store{
		dir:          dir,
		loginTimeout: cfg.loginTimeout,
		tel:          telemetry.NewScopedAPI("session", cfg.tel),
	}
}

// PathFor returns the session file of an owner, or the shared session.json when owner is empty.
// Owner ids are hashed so no two owners ever share a file, whatever characters they contain.
func (s Store) PathFor(owner string) string {
	if owner == "" {
		return filepath.Join(s.dir, DefaultFilename)
	}
	sum := sha256.Sum256([]byte(owner))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Decode reads either of the two session file shapes: a bare array of cookies or an object
// holding the array under `cookies`. Any malformed cookie invalidates the whole session.
func Decode(data []byte) (State, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return State{}, fmt.Errorf("%w: empty file", ErrSessionInvalid)
	}

	var state State
	switch data[0] {
	case '[':
		err := json.Unmarshal(data, &state.Cookies)
		if err != nil {
			return State{}, fmt.Errorf("%w: %s", ErrSessionInvalid, err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		err := json.Unmarshal(data, &wrapper)
		if err != nil {
			return State{}, fmt.Errorf("%w: %s", ErrSessionInvalid, err)
		}
		rawCookies, ok := wrapper["cookies"]
		if !ok {
			return State{}, fmt.Errorf("%w: object has no cookies key", ErrSessionInvalid)
		}
		err = json.Unmarshal(rawCookies, &state.Cookies)
		if err != nil {
			return State{}, fmt.Errorf("%w: %s", ErrSessionInvalid, err)
		}
		state.Origins = wrapper["origins"]
	default:
		return State{}, fmt.Errorf("%w: unknown format", ErrSessionInvalid)
	}

	if len(state.Cookies) == 0 {
		return State{}, fmt.Errorf("%w: no cookies", ErrSessionInvalid)
	}
	for i, c := range state.Cookies {
		if !c.valid() {
			return State{}, fmt.Errorf("%w: cookie %d has no name or domain", ErrSessionInvalid, i)
		}
	}
	return state, nil
}

// Load reads a session file, a missing file gives ErrSessionMissing and anything that is not a
// complete snapshot gives ErrSessionInvalid.
func (s Store) Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, ErrSessionMissing
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: %s", ErrSessionInvalid, err)
	}
	return Decode(data)
}

// Save writes the session in the object shape, replacing any previous file at path.
func (s Store) Save(path string, state State) error {
	if len(state.Cookies) == 0 {
		return fmt.Errorf("save session: %w: no cookies", ErrSessionInvalid)
	}
	if state.Origins == nil {
		state.Origins = json.RawMessage("[]")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("save session: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveFrom snapshots the cookies of a live browser context into path.
func (s Store) SaveFrom(ctx context.Context, jar CookieJar, path string) error {
	cookies, err := jar.Cookies(ctx)
	if err != nil {
		s.tel.ReportBroken(report_store_save, err, path)
		return fmt.Errorf("read browser cookies: %w", err)
	}
	err = s.Save(path, State{Cookies: cookies})
	if err != nil {
		s.tel.ReportBroken(report_store_save, err, path)
		return err
	}
	return nil
}

// Restore loads the session at path into the browser. It returns false when the session
// is missing, invalid or could not be injected, callers then fall back to Capture.
func (s Store) Restore(ctx context.Context, jar CookieJar, path string) bool {
	state, err := s.Load(path)
	if errors.Is(err, ErrSessionMissing) {
		s.tel.ReportDebug(report_store_load, "no session", path)
		return false
	}
	if err != nil {
		s.tel.ReportWarning(report_store_load, err, path)
		return false
	}
	err = jar.SetCookies(ctx, state.Cookies)
	if err != nil {
		s.tel.ReportWarning(report_store_restore, err, path)
		return false
	}
	s.tel.ReportDebug(report_store_restore, len(state.Cookies), path)
	return true
}

// Capture opens the login page and blocks until a human has logged in (or the login
// timeout passes), then saves the browser's cookies to path.
func (s Store) Capture(ctx context.Context, browser LoginBrowser, loginUrl string, loggedIn func(string) bool, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.loginTimeout)
	defer cancel()

	err := browser.Open(ctx, loginUrl)
	if err != nil {
		s.tel.ReportBroken(report_store_capture, err, loginUrl)
		return fmt.Errorf("open login page: %w", err)
	}
	err = browser.WaitForURL(ctx, loggedIn)
	if err != nil {
		s.tel.ReportWarning(report_store_capture, err)
		return fmt.Errorf("wait for login: %w", err)
	}
	return s.SaveFrom(ctx, browser, path)
}

// Stat describes the session file at path.
func (s Store) Stat(path string) Info {
	info := Info{Path: path}
	stat, err := os.Stat(path)
	if err != nil {
		return info
	}
	size := stat.Size()
	info.Exists = true
	info.Size = &size
	return info
}

// Raw returns the session file content as is.
func (s Store) Raw(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrSessionMissing
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, ErrSessionInvalid
	}
	return data, nil
}

// Delete removes the session file, it reports false when there was nothing to delete.
func (s Store) Delete(path string) (bool, error) {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
