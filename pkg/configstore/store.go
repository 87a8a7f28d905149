// Package configstore loads the configuration document from the remote
// store, reconciles it with the local cache, and persists admin edits.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
	"github.com/rzbill/dashgate/pkg/transport"
	"github.com/rzbill/dashgate/pkg/utils"
)

var (
	// ErrNoRemote is returned when no remote URL is configured.
	ErrNoRemote = errors.New("remote config url not configured")

	// ErrRemoteStatus wraps a non-200 answer from the remote store.
	ErrRemoteStatus = errors.New("unexpected status from remote config")

	// ErrDecode wraps a 200 body that is not a valid document. Such a body
	// is never retried.
	ErrDecode = errors.New("invalid remote config body")
)

// SessionProvider hands out the shared HTTP session.
type SessionProvider interface {
	Session(ctx context.Context) *transport.Session
}

// Cipher converts dashboard URLs between plaintext and ciphertext.
type Cipher interface {
	DecryptDashboards(doc *document.Document) *document.Document
	EncryptDashboardsStrict(doc *document.Document) (*document.Document, error)
}

// Options configure a Store.
type Options struct {
	RemoteURL     string
	CachePath     string
	Attempts      int
	RetryDelay    time.Duration
	FetchTimeout  time.Duration
	CheckTimeout  time.Duration
	MaxBackups    int // 0 keeps all backups
	LastCheckPath string
	Principal     string
	Now           func() time.Time
}

// DefaultRemoteURL is the published config document.
const DefaultRemoteURL = "https://raw.githubusercontent.com/ingeamoreno/datorama-config/refs/heads/main/dashboard_config.json"

// DefaultOptions returns the stock store settings.
func DefaultOptions() Options {
	return Options{
		RemoteURL:     DefaultRemoteURL,
		CachePath:     "dashboard_config.json",
		Attempts:      3,
		RetryDelay:    2 * time.Second,
		FetchTimeout:  10 * time.Second,
		CheckTimeout:  5 * time.Second,
		MaxBackups:    10,
		LastCheckPath: "last_update_check.txt",
		Now:           time.Now,
	}
}

// Store owns the canonical in-memory document. Every accessor returns a copy.
type Store struct {
	opts     Options
	sessions SessionProvider
	cipher   Cipher
	metrics  *metrics.Metrics
	logger   log.Logger

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	current *document.Document
}

// New creates a Store. m may be nil.
func New(opts Options, sessions SessionProvider, cipher Cipher, m *metrics.Metrics, logger log.Logger) *Store {
	def := DefaultOptions()
	if opts.CachePath == "" {
		opts.CachePath = def.CachePath
	}
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = def.CheckTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Store{
		opts:     opts,
		sessions: sessions,
		cipher:   cipher,
		metrics:  m,
		logger:   logger.WithComponent("configstore"),
		wait:     sleepContext,
	}
}

// Options returns the effective options.
func (s *Store) Options() Options {
	return s.opts
}

// Load fetches the remote document, falling back to the cache and then to
// the default document. It never fails.
func (s *Store) Load(ctx context.Context) (doc *document.Document) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic while loading config, using defaults", log.F("panic", r))
			def := s.CreateDefault()
			s.setCurrent(def)
			doc = def.Clone()
		}
	}()

	doc = s.loadRemote(ctx)
	if doc == nil {
		s.logger.Warn("Remote config unavailable, trying local cache", log.Str("path", s.opts.CachePath))
		doc = s.loadCache()
	}
	if doc == nil {
		doc = s.CreateDefault()
		s.metrics.ConfigFetch(metrics.SourceDefault, metrics.ResultSuccess)
	}
	document.Validate(doc)

	s.setCurrent(doc)
	s.metrics.SetUsingLocalConfig(doc.UsingLocalConfig)
	s.logger.Info("Config loaded",
		log.Version(doc.Version),
		log.Bool("local", doc.UsingLocalConfig),
		log.Bool("encrypted", doc.Encrypted),
		log.Int("users", len(doc.AuthorizedUsers)),
		log.Int("admins", len(doc.AdminUsers)),
		log.Int("dashboards", len(doc.Dashboards)))
	return doc.Clone()
}

func (s *Store) loadRemote(ctx context.Context) *document.Document {
	if s.opts.RemoteURL == "" {
		return nil
	}
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		s.logger.Debug("Fetching remote config",
			log.Int("attempt", attempt), log.Int("attempts", s.opts.Attempts))

		doc, body, err := s.fetch(ctx, s.opts.FetchTimeout)
		if err == nil {
			s.metrics.ConfigFetch(metrics.SourceRemote, metrics.ResultSuccess)
			s.persistRemoteBody(body)
			return doc
		}
		if errors.Is(err, ErrDecode) {
			s.logger.Error("Remote config is not a valid document", log.Err(err))
			s.metrics.ConfigFetch(metrics.SourceRemote, metrics.ResultFailure)
			return nil
		}

		s.logger.Warn("Remote config fetch failed", log.Int("attempt", attempt), log.Err(err))
		if attempt == s.opts.Attempts {
			s.metrics.ConfigFetch(metrics.SourceRemote, metrics.ResultFailure)
			break
		}
		s.metrics.ConfigFetch(metrics.SourceRemote, metrics.ResultRetry)
		if err := s.wait(ctx, s.opts.RetryDelay); err != nil {
			return nil
		}
	}
	return nil
}

// fetch performs one GET of the remote document and returns it decrypted
// together with the raw body.
func (s *Store) fetch(ctx context.Context, timeout time.Duration) (*document.Document, []byte, error) {
	if s.opts.RemoteURL == "" {
		return nil, nil, ErrNoRemote
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.sessions.Session(ctx).R(reqCtx).Get(s.opts.RemoteURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch remote config: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: %d", ErrRemoteStatus, resp.StatusCode())
	}

	body := resp.Body()
	doc, err := document.Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	doc = s.decrypt(doc)
	doc.UsingLocalConfig = false
	return doc, body, nil
}

// persistRemoteBody caches the body exactly as received, so an encrypted
// remote stays encrypted on disk.
func (s *Store) persistRemoteBody(body []byte) {
	if err := s.writeCache(body); err != nil {
		s.logger.Warn("Failed to save local copy of remote config", log.Err(err))
	}
}

func (s *Store) loadCache() *document.Document {
	doc, err := s.Cached()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("Local config unusable", log.Err(err))
		}
		s.metrics.ConfigFetch(metrics.SourceCache, metrics.ResultFailure)
		return nil
	}
	doc.UsingLocalConfig = true
	s.metrics.ConfigFetch(metrics.SourceCache, metrics.ResultSuccess)
	s.logger.Warn("Using local config, it may be out of date", log.Version(doc.Version))
	return doc
}

// Cached reads and decrypts the local copy. It touches neither the remote
// nor the current document.
func (s *Store) Cached() (*document.Document, error) {
	data, err := os.ReadFile(s.opts.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read local config: %w", err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("local config is not a valid document: %w", err)
	}
	return document.Validate(s.decrypt(doc)), nil
}

func (s *Store) decrypt(doc *document.Document) *document.Document {
	if !doc.Encrypted || s.cipher == nil {
		return doc
	}
	return s.cipher.DecryptDashboards(doc)
}

// Validate fills defaults and guarantees a non-empty admin set.
func (s *Store) Validate(doc *document.Document) *document.Document {
	return document.Validate(doc)
}

// CreateDefault builds the seed document and persists it to the cache on a
// best-effort basis.
func (s *Store) CreateDefault() *document.Document {
	doc := document.Seed(s.opts.Principal, s.opts.Now())
	data, err := document.Marshal(doc)
	if err == nil {
		err = utils.WriteFileAtomic(s.opts.CachePath, data, 0644)
	}
	if err != nil {
		s.logger.Warn("Failed to save default config", log.Err(err))
	} else {
		s.logger.Info("Default config created", log.Str("path", s.opts.CachePath))
	}
	return doc
}

// FetchRemote performs a single decrypted fetch with the given timeout and
// touches neither the cache nor the current document.
func (s *Store) FetchRemote(ctx context.Context, timeout time.Duration) (*document.Document, error) {
	if timeout <= 0 {
		timeout = s.opts.CheckTimeout
	}
	doc, _, err := s.fetch(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return document.Validate(doc), nil
}

// CheckRemoteUpdate reports whether the remote document carries a version
// newer than current, and returns it when so.
func (s *Store) CheckRemoteUpdate(ctx context.Context, current *document.Document) (bool, *document.Document) {
	remote, err := s.FetchRemote(ctx, s.opts.CheckTimeout)
	s.RecordCheck(s.opts.Now())
	if err != nil {
		s.logger.Warn("Update check failed", log.Err(err))
		return false, nil
	}

	currentVersion := document.DefaultVersion
	if current != nil {
		currentVersion = current.Version
	}
	if !document.IsNewer(remote.Version, currentVersion) {
		s.logger.Debug("No update available", log.Version(currentVersion))
		return false, nil
	}
	s.logger.Info("Update available",
		log.Str("current", currentVersion), log.Str("remote", remote.Version))
	return true, remote
}

// ApplyUpdate writes doc as the plaintext cache and makes it current.
func (s *Store) ApplyUpdate(doc *document.Document) bool {
	if err := s.SaveLocal(doc); err != nil {
		s.logger.Error("Failed to apply update", log.Err(err))
		return false
	}
	s.logger.Info("Config updated", log.Version(doc.Version))
	return true
}

// SaveLocal backs up the cache, writes doc unencrypted, and makes it current.
func (s *Store) SaveLocal(doc *document.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	local := document.Validate(doc.Clone())
	local.Encrypted = false
	local.EncryptionVersion = ""

	data, err := document.Marshal(local)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := s.writeCache(data); err != nil {
		return err
	}
	s.setCurrent(local)
	s.metrics.SetUsingLocalConfig(local.UsingLocalConfig)
	return nil
}

// ExportEncrypted writes an encrypted copy of the current document to path.
// It fails rather than writing any plaintext URL.
func (s *Store) ExportEncrypted(path string) error {
	cur := s.Current()
	if cur == nil {
		return errors.New("no config loaded")
	}
	if s.cipher == nil {
		return errors.New("no cipher configured")
	}
	enc, err := s.cipher.EncryptDashboardsStrict(cur)
	if err != nil {
		return fmt.Errorf("failed to encrypt dashboards: %w", err)
	}
	data, err := document.Marshal(enc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return err
	}
	s.logger.Info("Encrypted config written", log.Str("path", path), log.Int("dashboards", len(enc.Dashboards)))
	return nil
}

// Current returns a copy of the current document, or nil before Load.
func (s *Store) Current() *document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Store) setCurrent(doc *document.Document) {
	s.mu.Lock()
	s.current = doc.Clone()
	s.mu.Unlock()
}

// LastCheck returns when updates were last checked, or the zero time.
func (s *Store) LastCheck() time.Time {
	if s.opts.LastCheckPath == "" {
		return time.Time{}
	}
	data, err := os.ReadFile(s.opts.LastCheckPath)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}
	}
	return t
}

// RecordCheck stores t as the last update check.
func (s *Store) RecordCheck(t time.Time) {
	if s.opts.LastCheckPath == "" {
		return
	}
	if err := utils.WriteFileAtomic(s.opts.LastCheckPath, []byte(t.Format(time.RFC3339)), 0644); err != nil {
		s.logger.Warn("Failed to record update check time", log.Err(err))
	}
}

// writeCache backs up the existing cache, prunes old backups, and replaces
// the cache with data.
func (s *Store) writeCache(data []byte) error {
	backup, err := utils.BackupFile(s.opts.CachePath, s.opts.Now())
	if err != nil {
		s.logger.Warn("Failed to back up local config", log.Err(err))
	} else if backup != "" {
		s.logger.Debug("Local config backed up", log.Str("backup", backup))
		if _, err := utils.PruneBackups(s.opts.CachePath, s.opts.MaxBackups); err != nil {
			s.logger.Warn("Failed to prune config backups", log.Err(err))
		}
	}
	if err := utils.WriteFileAtomic(s.opts.CachePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write local config: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
