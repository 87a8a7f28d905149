package app

import (
	"time"

	"github.com/rzbill/dashgate/pkg/access"
	"github.com/rzbill/dashgate/pkg/configstore"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/netdetect"
	"github.com/rzbill/dashgate/pkg/notify"
	"github.com/rzbill/dashgate/pkg/poller"
	"github.com/rzbill/dashgate/pkg/publisher"
)

// Options defines how an App wires its components.
type Options struct {
	// Network configures corporate-network detection.
	Network netdetect.Options

	// Store configures the remote fetch and the local cache.
	Store configstore.Options

	// Cipher configures dashboard URL encryption.
	Cipher crypto.Options

	// Poller sets the background check intervals.
	Poller poller.Config

	// Publisher locates the config file on GitHub.
	Publisher publisher.Options

	// Telegram enables publish notifications when both token and chat are set.
	Telegram notify.TelegramConfig

	// AuthCheckTimeout bounds each silent re-validation.
	AuthCheckTimeout time.Duration

	// MetricsAddr, when set, serves /metrics while Run is active.
	MetricsAddr string

	// Principal overrides the OS user lookup.
	Principal string

	// Logger is the logger to use.
	Logger log.Logger

	resolvePrincipal func() (string, error)
}

// DefaultOptions returns the stock wiring.
func DefaultOptions() *Options {
	return &Options{
		Network:          netdetect.DefaultOptions(),
		Store:            configstore.DefaultOptions(),
		Cipher:           crypto.DefaultOptions(),
		Poller:           poller.DefaultConfig(),
		Publisher:        publisher.DefaultOptions(),
		AuthCheckTimeout: 5 * time.Second,
		resolvePrincipal: access.ResolvePrincipal,
	}
}

// Option is a function that configures the App options.
type Option func(*Options)

// WithNetwork sets the network detection options.
func WithNetwork(o netdetect.Options) Option {
	return func(opts *Options) {
		opts.Network = o
	}
}

// WithStore sets the config store options.
func WithStore(o configstore.Options) Option {
	return func(opts *Options) {
		opts.Store = o
	}
}

// WithCipher sets the cipher options.
func WithCipher(o crypto.Options) Option {
	return func(opts *Options) {
		opts.Cipher = o
	}
}

// WithPoller sets the poll intervals.
func WithPoller(c poller.Config) Option {
	return func(opts *Options) {
		opts.Poller = c
	}
}

// WithPublisher sets the publisher options.
func WithPublisher(o publisher.Options) Option {
	return func(opts *Options) {
		opts.Publisher = o
	}
}

// WithTelegram sets the Telegram notifier configuration.
func WithTelegram(c notify.TelegramConfig) Option {
	return func(opts *Options) {
		opts.Telegram = c
	}
}

// WithAuthCheckTimeout sets the silent re-validation timeout.
func WithAuthCheckTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.AuthCheckTimeout = d
	}
}

// WithMetricsAddr serves /metrics on addr while the App runs.
func WithMetricsAddr(addr string) Option {
	return func(opts *Options) {
		opts.MetricsAddr = addr
	}
}

// WithPrincipal skips the OS user lookup.
func WithPrincipal(name string) Option {
	return func(opts *Options) {
		opts.Principal = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
