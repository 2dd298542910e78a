// Package tracker implements the client-side instrumentation logic:
// session lifecycle with idle expiry, user-agent classification, IP
// geolocation, and best-effort event transport. It backs the embedded
// browser snippet's behavior and is usable directly from Go programs.
package tracker

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"analyzr/internal/events"
)

// DefaultSessionTTL is the idle-expiry window for a visitor session.
const DefaultSessionTTL = 10 * time.Minute

// Session is the ephemeral client-side session. It is never persisted
// server-side; the store is the local-storage analogue.
type Session struct {
	ID        string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's idle window has elapsed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NewSessionID generates an opaque session identifier with negligible
// collision probability.
func NewSessionID() string {
	return "session-" + uuid.NewString()
}

// Store holds at most one session per browser context. Implementations
// must be safe for concurrent use.
type Store interface {
	Get() (Session, bool, error)
	Set(Session) error
	Clear() error
}

// MemoryStore is an in-memory Store, used in tests and embedded callers.
type MemoryStore struct {
	mu      sync.Mutex
	session Session
	present bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.present, nil
}

func (m *MemoryStore) Set(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.present = true
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
	m.present = false
	return nil
}

// fileSession is the on-disk shape: the session id plus a millisecond
// epoch expiry, mirroring the two snippet local-storage keys.
type fileSession struct {
	SessionID   string `json:"session_id"`
	ExpiresAtMs int64  `json:"session_expiration_timestamp"`
}

// FileStore persists the session to a JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get() (Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}

	var fs fileSession
	if err := json.Unmarshal(data, &fs); err != nil || fs.SessionID == "" {
		// A corrupt store behaves like an empty one.
		return Session{}, false, nil
	}

	return Session{
		ID:        fs.SessionID,
		ExpiresAt: time.UnixMilli(fs.ExpiresAtMs),
	}, true, nil
}

func (f *FileStore) Set(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(fileSession{
		SessionID:   s.ID,
		ExpiresAtMs: s.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PageContext carries everything the tracker knows about the current
// page and client when a tracked action happens.
type PageContext struct {
	URL          string
	Source       string // utm/ref query value; empty means direct
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
	IP           string
}

// Emitter sends one serialized tracking payload; see Transport.
type Emitter interface {
	Send(payload Payload, done func(Delivery))
}

// Tracker maintains exactly one logical session at a time and emits
// pageview/session_start/session_end events through an Emitter.
//
// Any internal error is logged and swallowed: tracking must never break
// the host it is embedded in.
type Tracker struct {
	domain     string
	store      Store
	emitter    Emitter
	classifier *Classifier
	locator    Locator
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Options configures a Tracker. Zero fields get working defaults.
type Options struct {
	Domain  string
	Store   Store
	Emitter Emitter
	Locator Locator
	TTL     time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// New creates a Tracker for the given domain.
func New(opts Options) *Tracker {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Locator == nil {
		opts.Locator = NoopLocator{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		domain:     opts.Domain,
		store:      opts.Store,
		emitter:    opts.Emitter,
		classifier: GetClassifier(),
		locator:    opts.Locator,
		ttl:        opts.TTL,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

// TrackPageView records one navigation. The session-expiry check runs
// before the pageview is emitted, so a stale session never tags a new
// event.
func (t *Tracker) TrackPageView(ctx PageContext) {
	defer t.recover()
	t.checkSession(ctx)
	t.emit(events.EventKindPageView, ctx)
}

// Touch runs only the session lifecycle transition for a tracked action
// that is not itself a pageview.
func (t *Tracker) Touch(ctx PageContext) {
	defer t.recover()
	t.checkSession(ctx)
}

// CurrentSession returns the active session, if any.
func (t *Tracker) CurrentSession() (Session, bool) {
	s, ok, err := t.store.Get()
	if err != nil {
		t.logger.Debug("Failed to read session store", slog.Any("error", err))
		return Session{}, false
	}
	return s, ok
}

// checkSession enforces the lifecycle: no session means a new one is
// created (emitting session_start); an expired session first emits
// session_end for the old id, clears the store, then restarts.
func (t *Tracker) checkSession(ctx PageContext) {
	now := t.now()

	s, ok, err := t.store.Get()
	if err != nil {
		t.logger.Debug("Failed to read session store", slog.Any("error", err))
		ok = false
	}

	if ok && s.Expired(now) {
		t.emit(events.EventKindSessionEnd, ctx)
		if err := t.store.Clear(); err != nil {
			t.logger.Debug("Failed to clear session store", slog.Any("error", err))
		}
		ok = false
	}

	if !ok {
		fresh := Session{
			ID:        NewSessionID(),
			ExpiresAt: now.Add(t.ttl),
		}
		if err := t.store.Set(fresh); err != nil {
			t.logger.Debug("Failed to write session store", slog.Any("error", err))
		}
		t.emit(events.EventKindSessionStart, ctx)
	}
}

// emit classifies the client, resolves geolocation, and hands the
// payload to the transport. Classification and geolocation failures are
// substituted with defaults; the event is always sent.
func (t *Tracker) emit(kind events.EventKind, ctx PageContext) {
	if t.emitter == nil {
		return
	}

	os, browser := t.classifier.Classify(ctx.UserAgent)
	device := t.classifier.DeviceType(ctx.UserAgent, ctx.ScreenWidth, ctx.ScreenHeight)
	location := t.locator.Locate(ctx.IP)

	payload := Payload{
		Event:           string(kind),
		URL:             ctx.URL,
		Domain:          t.domain,
		Source:          ctx.Source,
		City:            location.City,
		Region:          location.Region,
		Country:         location.Country,
		OperatingSystem: os,
		DeviceType:      device,
		BrowserName:     browser,
	}

	t.emitter.Send(payload, nil)
}

func (t *Tracker) recover() {
	if r := recover(); r != nil {
		t.logger.Error("Recovered panic in tracker", slog.Any("panic", r))
	}
}
