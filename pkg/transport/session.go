// Package transport builds the shared HTTP session used for every remote
// call. The session routes through the corporate proxy when the network
// detector says so.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
	"github.com/rzbill/dashgate/pkg/version"
)

// NetworkDetector reports the network context the session is built for.
type NetworkDetector interface {
	IsCorporateNetwork(ctx context.Context) bool
	ProxyURL() string
}

// Provider builds the session on first use and hands out the same one after.
type Provider struct {
	detector NetworkDetector
	metrics  *metrics.Metrics
	logger   log.Logger

	mu      sync.Mutex
	session *Session
}

// NewProvider creates a Provider. m may be nil.
func NewProvider(detector NetworkDetector, m *metrics.Metrics, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Provider{
		detector: detector,
		metrics:  m,
		logger:   logger.WithComponent("transport"),
	}
}

// Session returns the process session, building it on the first call.
func (p *Provider) Session(ctx context.Context) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return p.session
	}

	corporate := false
	proxyURL := ""
	if p.detector != nil {
		corporate = p.detector.IsCorporateNetwork(ctx)
		proxyURL = p.detector.ProxyURL()
	}
	p.metrics.SetCorporateNetwork(corporate)

	s, err := newSession(corporate, proxyURL, p.metrics, p.logger)
	if err != nil {
		// A malformed proxy URL leaves the session direct.
		p.logger.Error("Invalid corporate proxy, using a direct session", log.Err(err), log.Str("proxy", proxyURL))
		s, _ = newSession(false, "", p.metrics, p.logger)
	}
	if s.Corporate() {
		p.logger.Info("Session configured with corporate proxy", log.Str("proxy", proxyURL))
	} else {
		p.logger.Info("Session configured without proxy")
	}
	p.session = s
	return s
}

// Reset drops the cached session. Intended for tests.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
}

// Session is a configured resty client plus the context it was built for.
type Session struct {
	client    *resty.Client
	corporate bool
	proxyURL  string
}

func newSession(corporate bool, proxyURL string, m *metrics.Metrics, logger log.Logger) (*Session, error) {
	base := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if corporate {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
	}

	client := resty.NewWithClient(&http.Client{Transport: m.InstrumentRoundTripper(base)}).
		SetLogger(log.RestyLogger{L: logger}).
		SetHeaders(map[string]string{
			"User-Agent":    version.UserAgent(),
			"Cache-Control": "no-cache",
			"Pragma":        "no-cache",
		})

	s := &Session{client: client, corporate: corporate}
	if corporate {
		s.proxyURL = proxyURL
	}
	return s, nil
}

// Corporate reports whether the session routes through the corporate proxy.
func (s *Session) Corporate() bool { return s.corporate }

// ProxyURL is the proxy in use, or empty for a direct session.
func (s *Session) ProxyURL() string { return s.proxyURL }

// R starts a request bound to ctx.
func (s *Session) R(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx)
}

// Ping GETs each url in turn with the given timeout and fails on the first
// non-200 answer.
func (s *Session) Ping(ctx context.Context, timeout time.Duration, urls ...string) error {
	for _, u := range urls {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := s.R(reqCtx).Get(u)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to reach %s: %w", u, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("unexpected status from %s: %d", u, resp.StatusCode())
		}
	}
	return nil
}
