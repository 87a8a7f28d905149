// Package app wires the launcher components for one process and runs the
// startup sequence and the background checks.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rzbill/dashgate/pkg/access"
	"github.com/rzbill/dashgate/pkg/configstore"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
	"github.com/rzbill/dashgate/pkg/netdetect"
	"github.com/rzbill/dashgate/pkg/notify"
	"github.com/rzbill/dashgate/pkg/poller"
	"github.com/rzbill/dashgate/pkg/publisher"
	"github.com/rzbill/dashgate/pkg/transport"
)

var (
	// ErrCorporateNetworkRequired is returned by Start when the document
	// demands the corporate network and the process is outside it.
	ErrCorporateNetworkRequired = errors.New("this application requires the corporate network")
	// ErrAccessRevoked is returned by Run after a re-validation denied access.
	ErrAccessRevoked = errors.New("access revoked")
	ErrNotAdmin      = errors.New("administrator rights required")
	ErrNotStarted    = errors.New("app not started")
)

// Host is the user-facing side of the launcher.
type Host interface {
	// PromptUpdate asks whether doc should replace the current config.
	PromptUpdate(doc *document.Document) bool
	// UpdateApplied tells the host to refresh dashboards and the admin banner.
	UpdateApplied(doc *document.Document)
	// Revoked tells the host to shut down.
	Revoked()
	// ShowStatus updates the persistent status indicator.
	ShowStatus(Status)
}

// App holds every component for one run.
type App struct {
	options *Options
	logger  log.Logger
	runID   string

	metrics    *metrics.Metrics
	detector   *netdetect.Detector
	sessions   *transport.Provider
	cipher     *crypto.Cipher
	store      *configstore.Store
	controller *access.Controller
	gate       *access.Gate
	telegram   *notify.Telegram
	publisher  *publisher.Publisher

	principal string

	mu              sync.Mutex
	started         bool
	running         bool
	corporate       bool
	updateAvailable string
	poller          *poller.Poller
	revokedCh       chan struct{}
	revokeOnce      sync.Once
}

// New resolves the principal and builds the components. Nothing touches the
// network until Start.
func New(opts ...Option) (*App, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	runID := uuid.NewString()
	logger := options.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	logger = logger.WithField(log.RunIDKey, runID)

	principal := options.Principal
	if principal == "" {
		var err error
		if principal, err = options.resolvePrincipal(); err != nil {
			return nil, err
		}
	}

	cipher, err := crypto.NewCipher(options.Cipher)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	m := metrics.New()
	detector := netdetect.New(options.Network, logger)
	sessions := transport.NewProvider(detector, m, logger)

	storeOpts := options.Store
	storeOpts.Principal = principal
	store := configstore.New(storeOpts, sessions, cipher, m, logger)

	a := &App{
		options:    options,
		logger:     logger.WithComponent("app"),
		runID:      runID,
		metrics:    m,
		detector:   detector,
		sessions:   sessions,
		cipher:     cipher,
		store:      store,
		controller: access.NewController(store, options.AuthCheckTimeout, logger),
		gate:       access.NewGate(),
		principal:  principal,
		revokedCh:  make(chan struct{}),
	}

	var notifier notify.Notifier = notify.Nop{}
	a.telegram = notify.NewTelegram(options.Telegram, sessions, logger)
	if a.telegram.Enabled() {
		notifier = a.telegram
	}
	a.publisher = publisher.New(options.Publisher, sessions, cipher, store, notifier, m, logger)
	return a, nil
}

// Start runs the startup sequence: detect the network, build the session,
// load the document, and admit the principal. A returned error is fatal for
// the host.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	corporate := a.detector.IsCorporateNetwork(ctx)
	if err := netdetect.ApplyProxyEnv(corporate, a.detector.ProxyURL()); err != nil {
		a.logger.Warn("Failed to update proxy environment", log.Err(err))
	}
	a.corporate = corporate
	a.metrics.SetCorporateNetwork(corporate)
	a.sessions.Session(ctx)

	doc := a.store.Load(ctx)
	a.metrics.SetUsingLocalConfig(doc.UsingLocalConfig)

	decision := access.Evaluate(doc, a.principal)
	if !decision.Authorized {
		a.logger.Warn("Principal not authorized", log.Principal(a.principal))
		return access.ErrDenied
	}
	if doc.RequireCorporateNetwork && !corporate {
		return ErrCorporateNetworkRequired
	}
	if err := a.gate.Admit(decision); err != nil {
		return err
	}

	a.started = true
	a.logger.Info("Started",
		log.Principal(a.principal),
		log.Version(doc.Version),
		log.Bool("admin", decision.IsAdmin),
		log.Bool("corporate", corporate),
		log.Bool("using_local_config", doc.UsingLocalConfig))
	return nil
}

// Run starts the background checks and blocks until ctx is done or access
// is revoked. It waits for in-flight checks before returning.
func (a *App) Run(ctx context.Context, host Host) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	pc := a.options.Poller
	pc.Principal = a.principal
	p := poller.New(pc, a.store, a.controller, a.gate, &pollerHost{app: a, host: host}, a.metrics, a.logger)
	a.poller = p
	a.mu.Unlock()

	var srv *http.Server
	if a.options.MetricsAddr != "" {
		srv = a.serveMetrics(a.options.MetricsAddr)
	}

	if err := p.Start(); err != nil {
		a.shutdownMetrics(srv)
		return err
	}
	host.ShowStatus(a.Status())

	var err error
	select {
	case <-ctx.Done():
	case <-a.revokedCh:
		err = ErrAccessRevoked
	}

	a.logger.Info("Stopping")
	<-p.Stop().Done()
	a.shutdownMetrics(srv)
	return err
}

func (a *App) serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("Serving metrics", log.Str("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", log.Err(err))
		}
	}()
	return srv
}

func (a *App) shutdownMetrics(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("Metrics server shutdown failed", log.Err(err))
	}
}

// RequireAdmin fails unless the admitted principal is an administrator.
func (a *App) RequireAdmin() error {
	if !a.Started() {
		return ErrNotStarted
	}
	if !a.gate.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

// Publish publishes doc after checking admin rights.
func (a *App) Publish(ctx context.Context, doc *document.Document, rel publisher.Release, token string) (*publisher.Result, error) {
	if err := a.RequireAdmin(); err != nil {
		return nil, err
	}
	if rel.Author == "" {
		rel.Author = a.principal
	}
	return a.publisher.Publish(ctx, doc, rel, token)
}

// Started reports whether Start succeeded.
func (a *App) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// RunID identifies this process in logs.
func (a *App) RunID() string { return a.runID }

// Principal returns the resolved OS user.
func (a *App) Principal() string { return a.principal }

// Decision returns the current access decision.
func (a *App) Decision() access.Decision {
	return access.Decision{
		Authorized: a.gate.State() == access.StateAuthorized,
		IsAdmin:    a.gate.IsAdmin(),
	}
}

// Store returns the config store.
func (a *App) Store() *configstore.Store { return a.store }

// Cipher returns the dashboard cipher.
func (a *App) Cipher() *crypto.Cipher { return a.cipher }

// Publisher returns the publisher.
func (a *App) Publisher() *publisher.Publisher { return a.publisher }

// Telegram returns the Telegram notifier, enabled or not.
func (a *App) Telegram() *notify.Telegram { return a.telegram }

// Sessions returns the shared HTTP session provider.
func (a *App) Sessions() *transport.Provider { return a.sessions }

// Detector returns the network detector.
func (a *App) Detector() *netdetect.Detector { return a.detector }

// Metrics returns the App's collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// pollerHost adapts a Host to the poller and keeps the status current.
type pollerHost struct {
	app  *App
	host Host
}

func (h *pollerHost) PromptUpdate(doc *document.Document) bool {
	h.app.setUpdateAvailable(doc.Version)
	h.host.ShowStatus(h.app.Status())
	return h.host.PromptUpdate(doc)
}

func (h *pollerHost) UpdateApplied(doc *document.Document) {
	h.app.setUpdateAvailable("")
	h.app.metrics.SetUsingLocalConfig(false)
	// Only the silent check may revoke; a new document only refreshes the
	// admin flag.
	if d := access.Evaluate(doc, h.app.principal); d.Authorized {
		h.app.gate.Observe(&d)
	}
	h.host.UpdateApplied(doc)
	h.host.ShowStatus(h.app.Status())
}

func (h *pollerHost) Revoked() {
	h.app.revokeOnce.Do(func() { close(h.app.revokedCh) })
	h.host.Revoked()
}

func (h *pollerHost) AuthInconclusive() {
	h.host.ShowStatus(h.app.Status())
}

func (a *App) setUpdateAvailable(v string) {
	a.mu.Lock()
	a.updateAvailable = v
	a.mu.Unlock()
}
