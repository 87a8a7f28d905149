// Package netdetect decides whether the process runs inside the corporate
// network, in which case outbound traffic must go through the corporate proxy.
package netdetect

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/version"
)

// ProxyEnvVars are the variables inspected by detection and rewritten by
// ApplyProxyEnv.
var ProxyEnvVars = []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"}

// Reason names the step that decided the network context.
type Reason string

const (
	ReasonUndecided   Reason = ""
	ReasonDisabled    Reason = "disabled"
	ReasonProxyEnv    Reason = "proxy-env"
	ReasonHostname    Reason = "hostname"
	ReasonDirectProbe Reason = "direct-probe"
	ReasonProxyProbe  Reason = "proxy-probe"
	ReasonFallback    Reason = "fallback"
)

// Options configure detection.
type Options struct {
	// Indicators are matched case-insensitively against proxy variables and
	// the host FQDN.
	Indicators    []string
	ProxyURL      string
	ProbeURL      string
	DirectTimeout time.Duration
	ProxyTimeout  time.Duration
	// Disabled skips detection and reports an external network.
	Disabled bool
}

// DefaultOptions returns the stock corporate-network settings.
func DefaultOptions() Options {
	return Options{
		Indicators:    []string{"wal-mart.com", "walmart.com", "walgreens.com", "sysproxy.wal-mart.com"},
		ProxyURL:      "http://sysproxy.wal-mart.com:8080",
		ProbeURL:      "https://api.github.com",
		DirectTimeout: 3 * time.Second,
		ProxyTimeout:  5 * time.Second,
	}
}

// Detector runs detection once and memoizes the answer.
type Detector struct {
	opts   Options
	logger log.Logger

	getenv      func(string) string
	hostname    func() (string, error)
	lookupCNAME func(ctx context.Context, host string) (string, error)
	probe       func(ctx context.Context, target, proxy string, timeout time.Duration) bool

	mu        sync.Mutex
	decided   bool
	corporate bool
	reason    Reason
}

// New creates a Detector.
func New(opts Options, logger log.Logger) *Detector {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Detector{
		opts:        opts,
		logger:      logger.WithComponent("netdetect"),
		getenv:      os.Getenv,
		hostname:    os.Hostname,
		lookupCNAME: net.DefaultResolver.LookupCNAME,
		probe:       probe,
	}
}

// ProxyURL returns the configured corporate proxy.
func (d *Detector) ProxyURL() string {
	return d.opts.ProxyURL
}

// IsCorporateNetwork reports whether outbound traffic must use the corporate
// proxy. The first call decides; later calls return the memoized answer.
func (d *Detector) IsCorporateNetwork(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.decided {
		d.corporate, d.reason = d.detect(ctx)
		d.decided = true
		d.logger.Info("Network context detected",
			log.Bool("corporate", d.corporate),
			log.Str("reason", string(d.reason)))
	}
	return d.corporate
}

// Reason reports which step decided, or ReasonUndecided before the first call.
func (d *Detector) Reason() Reason {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// Reset clears the memoized answer.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decided = false
	d.corporate = false
	d.reason = ReasonUndecided
}

func (d *Detector) detect(ctx context.Context) (bool, Reason) {
	if d.opts.Disabled {
		return false, ReasonDisabled
	}

	for _, name := range ProxyEnvVars {
		if v := d.getenv(name); v != "" && d.matches(v) {
			d.logger.Debug("Corporate proxy variable found", log.Str("var", name))
			return true, ReasonProxyEnv
		}
	}

	if host, err := d.hostname(); err != nil {
		d.logger.Warn("Failed to read hostname", log.Err(err))
	} else {
		if d.matches(host) {
			return true, ReasonHostname
		}
		if cname, err := d.lookupCNAME(ctx, host); err == nil && d.matches(strings.TrimSuffix(cname, ".")) {
			return true, ReasonHostname
		}
	}

	if d.opts.ProbeURL == "" {
		return false, ReasonFallback
	}
	if d.probe(ctx, d.opts.ProbeURL, "", d.opts.DirectTimeout) {
		return false, ReasonDirectProbe
	}
	if d.opts.ProxyURL != "" && d.probe(ctx, d.opts.ProbeURL, d.opts.ProxyURL, d.opts.ProxyTimeout) {
		return true, ReasonProxyProbe
	}
	d.logger.Warn("Could not determine network context, assuming external")
	return false, ReasonFallback
}

func (d *Detector) matches(value string) bool {
	value = strings.ToLower(value)
	for _, ind := range d.opts.Indicators {
		if ind != "" && strings.Contains(value, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}

// probe issues a GET against target. An empty proxy forces a direct
// connection regardless of the environment.
func probe(ctx context.Context, target, proxy string, timeout time.Duration) bool {
	tr := &http.Transport{Proxy: nil}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return false
		}
		tr.Proxy = http.ProxyURL(u)
	}
	defer tr.CloseIdleConnections()

	client := resty.New().
		SetTransport(tr).
		SetTimeout(timeout).
		SetHeader("User-Agent", version.UserAgent())
	resp, err := client.R().SetContext(ctx).Get(target)
	return err == nil && resp.StatusCode() == http.StatusOK
}

// ApplyProxyEnv points the process proxy variables at proxyURL when corporate
// is true and clears them otherwise.
func ApplyProxyEnv(corporate bool, proxyURL string) error {
	for _, name := range ProxyEnvVars {
		var err error
		if corporate {
			err = os.Setenv(name, proxyURL)
		} else {
			err = os.Unsetenv(name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
