// Package poller runs the periodic config-update and authorization checks.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rzbill/dashgate/pkg/access"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
)

// UpdateSource is the part of the config store the update loop needs.
type UpdateSource interface {
	Current() *document.Document
	CheckRemoteUpdate(ctx context.Context, current *document.Document) (bool, *document.Document)
	ApplyUpdate(doc *document.Document) bool
	LastCheck() time.Time
}

// AuthChecker re-validates the principal against the remote document.
type AuthChecker interface {
	CheckSilently(ctx context.Context, principal string) *access.Decision
}

// Host receives the outcomes that need user attention.
type Host interface {
	// PromptUpdate asks whether doc should replace the current config.
	PromptUpdate(doc *document.Document) bool
	UpdateApplied(doc *document.Document)
	Revoked()
	// AuthInconclusive is called when a re-validation could not reach the
	// remote store.
	AuthInconclusive()
}

// Config defines the poll intervals.
type Config struct {
	UpdateInterval time.Duration
	AuthInterval   time.Duration
	InitialDelay   time.Duration
	DisableUpdates bool
	DisableAuth    bool
	Principal      string
}

// DefaultConfig returns the stock intervals.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: time.Hour,
		AuthInterval:   15 * time.Minute,
		InitialDelay:   5 * time.Second,
	}
}

// Status is a snapshot of the poller.
type Status struct {
	LastUpdateCheck  time.Time
	LastAuthCheck    time.Time
	AuthInconclusive bool
	Revoked          bool
}

// Poller schedules both loops on a cron instance.
type Poller struct {
	config  Config
	store   UpdateSource
	checker AuthChecker
	gate    *access.Gate
	host    Host
	metrics *metrics.Metrics
	logger  log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron

	mu       sync.Mutex
	started  bool
	updateID cron.EntryID
	authID   cron.EntryID
	initial  *time.Timer
	status   Status

	// kicks tracks runs started outside the cron scheduler.
	kicks sync.WaitGroup
}

// New creates a Poller. m may be nil.
func New(config Config, store UpdateSource, checker AuthChecker, gate *access.Gate, host Host, m *metrics.Metrics, logger log.Logger) *Poller {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	logger = logger.WithComponent("poller")
	cl := log.CronLogger{L: logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		config:  config,
		store:   store,
		checker: checker,
		gate:    gate,
		host:    host,
		metrics: m,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		cron: cron.New(
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
	}
}

// Start schedules the enabled loops. Jobs run on cron goroutines.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("poller already started")
	}
	if !p.config.DisableAuth && p.checker != nil && p.gate == nil {
		return fmt.Errorf("authorization loop needs a gate")
	}

	if !p.config.DisableUpdates && p.store != nil {
		id, err := p.cron.AddFunc(every(p.config.UpdateInterval), p.checkForUpdate)
		if err != nil {
			return fmt.Errorf("failed to schedule update check: %w", err)
		}
		p.updateID = id
	}
	if !p.config.DisableAuth && p.checker != nil {
		id, err := p.cron.AddFunc(every(p.config.AuthInterval), p.checkAuthorization)
		if err != nil {
			p.cron.Remove(p.updateID)
			return fmt.Errorf("failed to schedule authorization check: %w", err)
		}
		p.authID = id
	}

	p.cron.Start()
	p.started = true

	if p.updateID != 0 && time.Since(p.store.LastCheck()) > p.config.UpdateInterval {
		job := p.cron.Entry(p.updateID).WrappedJob
		p.kicks.Add(1)
		p.initial = time.AfterFunc(p.config.InitialDelay, func() {
			defer p.kicks.Done()
			if p.ctx.Err() == nil {
				job.Run()
			}
		})
	}

	p.logger.Info("Poller started",
		log.Duration("update_interval", p.config.UpdateInterval),
		log.Duration("auth_interval", p.config.AuthInterval),
		log.Bool("updates", p.updateID != 0),
		log.Bool("auth", p.authID != 0))
	return nil
}

// Stop cancels in-flight checks and stops scheduling. The returned context
// is done once running jobs have returned.
func (p *Poller) Stop() context.Context {
	p.cancel()

	p.mu.Lock()
	p.stopInitialLocked()
	p.mu.Unlock()

	cronDone := p.cron.Stop()
	ctx, done := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		p.kicks.Wait()
		done()
	}()
	return ctx
}

// stopInitialLocked cancels a pending initial check. Callers hold p.mu.
func (p *Poller) stopInitialLocked() {
	if p.initial != nil && p.initial.Stop() {
		p.kicks.Done()
	}
	p.initial = nil
}

// Status returns a snapshot of the last checks.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) checkForUpdate() {
	if p.ctx.Err() != nil || p.revoked() {
		return
	}

	available, doc := p.store.CheckRemoteUpdate(p.ctx, p.store.Current())
	p.mu.Lock()
	p.status.LastUpdateCheck = time.Now()
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}
	if !available || doc == nil {
		p.metrics.PollTick(metrics.LoopUpdate, metrics.ResultSkipped)
		return
	}

	if !p.host.PromptUpdate(doc.Clone()) {
		p.logger.Info("Update declined", log.Version(doc.Version))
		p.metrics.PollTick(metrics.LoopUpdate, metrics.ResultDenied)
		return
	}
	if !p.store.ApplyUpdate(doc) {
		p.metrics.PollTick(metrics.LoopUpdate, metrics.ResultFailure)
		return
	}
	p.metrics.PollTick(metrics.LoopUpdate, metrics.ResultSuccess)
	p.host.UpdateApplied(doc.Clone())
}

func (p *Poller) checkAuthorization() {
	if p.ctx.Err() != nil || p.revoked() {
		return
	}

	d := p.checker.CheckSilently(p.ctx, p.config.Principal)
	if p.ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	p.status.LastAuthCheck = time.Now()
	p.status.AuthInconclusive = d == nil
	p.mu.Unlock()

	if d == nil {
		p.logger.Warn("Authorization check inconclusive, keeping current access")
		p.metrics.PollTick(metrics.LoopAuth, metrics.ResultInconclusive)
		p.host.AuthInconclusive()
		return
	}

	if p.gate.Observe(d) {
		p.revoke()
		return
	}
	p.metrics.PollTick(metrics.LoopAuth, metrics.ResultSuccess)
}

// revoke stops both loops and tells the host. It runs at most once because
// the gate only revokes once.
func (p *Poller) revoke() {
	p.logger.Warn("Access revoked", log.Principal(p.config.Principal))
	p.metrics.PollTick(metrics.LoopAuth, metrics.ResultDenied)

	p.mu.Lock()
	p.status.Revoked = true
	p.stopInitialLocked()
	p.mu.Unlock()

	p.cron.Remove(p.updateID)
	p.cron.Remove(p.authID)
	p.host.Revoked()
}

func (p *Poller) revoked() bool {
	return p.gate != nil && p.gate.State() == access.StateRevoked
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
