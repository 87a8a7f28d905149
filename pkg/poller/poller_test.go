package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rzbill/dashgate/pkg/access"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	current   *document.Document
	remote    *document.Document
	lastCheck time.Time
	checks    int32
	applied   []*document.Document
	block     chan struct{}
}

func (s *fakeStore) Current() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

func (s *fakeStore) CheckRemoteUpdate(ctx context.Context, current *document.Document) (bool, *document.Document) {
	atomic.AddInt32(&s.checks, 1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return false, nil
		}
	}
	if s.remote == nil || !document.IsNewer(s.remote.Version, current.Version) {
		return false, nil
	}
	return true, s.remote.Clone()
}

func (s *fakeStore) ApplyUpdate(doc *document.Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, doc)
	s.current = doc.Clone()
	return true
}

func (s *fakeStore) LastCheck() time.Time { return s.lastCheck }

type fakeChecker struct {
	mu       sync.Mutex
	decision *access.Decision
}

func (c *fakeChecker) CheckSilently(context.Context, string) *access.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decision
}

type fakeHost struct {
	accept       bool
	prompts      int32
	applied      int32
	revoked      int32
	inconclusive int32
}

func (h *fakeHost) PromptUpdate(*document.Document) bool {
	atomic.AddInt32(&h.prompts, 1)
	return h.accept
}
func (h *fakeHost) UpdateApplied(*document.Document) { atomic.AddInt32(&h.applied, 1) }
func (h *fakeHost) Revoked()                         { atomic.AddInt32(&h.revoked, 1) }
func (h *fakeHost) AuthInconclusive()                { atomic.AddInt32(&h.inconclusive, 1) }

func docAt(version string) *document.Document {
	doc := document.New()
	doc.Version = version
	return doc
}

func admittedGate(t *testing.T) *access.Gate {
	g := access.NewGate()
	require.NoError(t, g.Admit(access.Decision{Authorized: true}))
	return g
}

func newTestPoller(t *testing.T, store *fakeStore, checker *fakeChecker, host *fakeHost) *Poller {
	cfg := DefaultConfig()
	cfg.Principal = "alice"
	p := New(cfg, store, checker, admittedGate(t), host, metrics.New(), log.NewTestLogger())
	t.Cleanup(func() { <-p.Stop().Done() })
	return p
}

func TestUpdateAcceptedIsApplied(t *testing.T) {
	store := &fakeStore{current: docAt("1.9.0"), remote: docAt("1.10.0")}
	host := &fakeHost{accept: true}
	p := newTestPoller(t, store, &fakeChecker{}, host)

	p.checkForUpdate()
	assert.Equal(t, int32(1), host.prompts)
	assert.Equal(t, int32(1), host.applied)
	require.Len(t, store.applied, 1)
	assert.Equal(t, "1.10.0", store.Current().Version)
	assert.False(t, p.Status().LastUpdateCheck.IsZero())
}

func TestUpdateDeclinedIsNotApplied(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0"), remote: docAt("1.1.0")}
	host := &fakeHost{accept: false}
	p := newTestPoller(t, store, &fakeChecker{}, host)

	p.checkForUpdate()
	assert.Equal(t, int32(1), host.prompts)
	assert.Empty(t, store.applied)
	assert.Equal(t, "1.0.0", store.Current().Version)
}

func TestNoUpdateNoPrompt(t *testing.T) {
	store := &fakeStore{current: docAt("1.1.0"), remote: docAt("1.1.0")}
	host := &fakeHost{accept: true}
	p := newTestPoller(t, store, &fakeChecker{}, host)

	p.checkForUpdate()
	assert.Equal(t, int32(0), host.prompts)
}

func TestInconclusiveDoesNotRevoke(t *testing.T) {
	host := &fakeHost{}
	p := newTestPoller(t, &fakeStore{current: docAt("1.0.0")}, &fakeChecker{decision: nil}, host)

	p.checkAuthorization()
	assert.Equal(t, int32(1), host.inconclusive)
	assert.Equal(t, int32(0), host.revoked)
	assert.Equal(t, access.StateAuthorized, p.gate.State())
	assert.True(t, p.Status().AuthInconclusive)

	p.checker.(*fakeChecker).decision = &access.Decision{Authorized: true}
	p.checkAuthorization()
	assert.False(t, p.Status().AuthInconclusive)
}

func TestDenialRevokesAndStopsScheduling(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0"), lastCheck: time.Now()}
	checker := &fakeChecker{decision: &access.Decision{Authorized: false}}
	host := &fakeHost{accept: true}
	p := newTestPoller(t, store, checker, host)
	require.NoError(t, p.Start())
	require.Len(t, p.cron.Entries(), 2)

	p.checkAuthorization()
	assert.Equal(t, int32(1), host.revoked)
	assert.Equal(t, access.StateRevoked, p.gate.State())
	assert.True(t, p.Status().Revoked)
	assert.Eventually(t, func() bool { return len(p.cron.Entries()) == 0 }, time.Second, 10*time.Millisecond)

	// Later ticks are no-ops.
	p.checkAuthorization()
	p.checkForUpdate()
	assert.Equal(t, int32(1), host.revoked)
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.checks))
}

func TestInitialCheckRunsWhenStale(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0")}
	p := newTestPoller(t, store, &fakeChecker{}, &fakeHost{})
	p.config.InitialDelay = 10 * time.Millisecond
	require.NoError(t, p.Start())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&store.checks) == 1 }, time.Second, 5*time.Millisecond)
}

func TestInitialCheckSkippedWhenRecent(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0"), lastCheck: time.Now()}
	p := newTestPoller(t, store, &fakeChecker{}, &fakeHost{})
	p.config.InitialDelay = time.Millisecond
	require.NoError(t, p.Start())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.checks))
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0"), lastCheck: time.Now(), block: make(chan struct{})}
	p := newTestPoller(t, store, &fakeChecker{}, &fakeHost{})
	require.NoError(t, p.Start())

	job := p.cron.Entry(p.updateID).WrappedJob
	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&store.checks) == 1 }, time.Second, 5*time.Millisecond)

	// The second run finds the first still going and returns at once.
	job.Run()
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.checks))

	close(store.block)
	<-done
}

func TestStopWaitsForInitialCheck(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0"), block: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	p := New(cfg, store, nil, nil, &fakeHost{}, nil, log.NewTestLogger())
	require.NoError(t, p.Start())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&store.checks) == 1 }, time.Second, 5*time.Millisecond)

	// The blocked check returns only once Stop cancels its context.
	select {
	case <-p.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not finish")
	}
	assert.False(t, p.Status().LastUpdateCheck.IsZero(), "the cancelled run returned before Stop completed")
}

func TestStopBeforeInitialCheck(t *testing.T) {
	store := &fakeStore{current: docAt("1.0.0")}
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Hour
	p := New(cfg, store, nil, nil, &fakeHost{}, nil, log.NewTestLogger())
	require.NoError(t, p.Start())

	select {
	case <-p.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("a pending initial check must not hold Stop")
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.checks))
}

func TestDisabledLoops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableUpdates = true
	cfg.DisableAuth = true
	p := New(cfg, &fakeStore{}, &fakeChecker{}, access.NewGate(), &fakeHost{}, nil, log.NewTestLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	assert.Empty(t, p.cron.Entries())
	assert.Error(t, p.Start())
}
