package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rzbill/dashgate/pkg/app"
	"github.com/rzbill/dashgate/pkg/configstore"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/netdetect"
	"github.com/rzbill/dashgate/pkg/notify"
	"github.com/rzbill/dashgate/pkg/poller"
	"github.com/rzbill/dashgate/pkg/publisher"
	"github.com/rzbill/dashgate/pkg/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file searched for when no path is given.
	FileName = "dashgate"
	// EnvPrefix prefixes every environment override, e.g. DASHGATE_REMOTE_URL.
	EnvPrefix = "DASHGATE"
)

type Remote struct {
	URL          string        `yaml:"url" mapstructure:"url"`
	Attempts     int           `yaml:"attempts" mapstructure:"attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	CheckTimeout time.Duration `yaml:"check_timeout" mapstructure:"check_timeout"`
}

type Store struct {
	CachePath     string `yaml:"cache_path" mapstructure:"cache_path"`
	LastCheckPath string `yaml:"last_check_path" mapstructure:"last_check_path"`
	MaxBackups    int    `yaml:"max_backups" mapstructure:"max_backups"` // 0 keeps all
	ExportPath    string `yaml:"export_path" mapstructure:"export_path"`
	DraftPath     string `yaml:"draft_path" mapstructure:"draft_path"` // admin edits awaiting publish
}

type Network struct {
	Disabled      bool          `yaml:"disabled" mapstructure:"disabled"`
	Indicators    []string      `yaml:"indicators" mapstructure:"indicators"`
	ProxyURL      string        `yaml:"proxy_url" mapstructure:"proxy_url"`
	ProbeURL      string        `yaml:"probe_url" mapstructure:"probe_url"`
	DirectTimeout time.Duration `yaml:"direct_timeout" mapstructure:"direct_timeout"`
	ProxyTimeout  time.Duration `yaml:"proxy_timeout" mapstructure:"proxy_timeout"`
}

type Cipher struct {
	Secret     string `yaml:"secret" mapstructure:"secret"`
	Salt       string `yaml:"salt" mapstructure:"salt"`
	Iterations int    `yaml:"iterations" mapstructure:"iterations"`
}

type Poller struct {
	UpdateInterval   time.Duration `yaml:"update_interval" mapstructure:"update_interval"`
	AuthInterval     time.Duration `yaml:"auth_interval" mapstructure:"auth_interval"`
	InitialDelay     time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	AuthCheckTimeout time.Duration `yaml:"auth_check_timeout" mapstructure:"auth_check_timeout"`
	DisableUpdates   bool          `yaml:"disable_updates" mapstructure:"disable_updates"`
	DisableAuth      bool          `yaml:"disable_auth" mapstructure:"disable_auth"`
}

type Publisher struct {
	APIURL        string        `yaml:"api_url" mapstructure:"api_url"`
	Owner         string        `yaml:"owner" mapstructure:"owner"`
	Repo          string        `yaml:"repo" mapstructure:"repo"`
	Branch        string        `yaml:"branch" mapstructure:"branch"`
	Path          string        `yaml:"path" mapstructure:"path"`
	TokenFile     string        `yaml:"token_file" mapstructure:"token_file"`
	TokenEnv      string        `yaml:"token_env" mapstructure:"token_env"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" mapstructure:"verify_timeout"`
	PutTimeout    time.Duration `yaml:"put_timeout" mapstructure:"put_timeout"`
}

type Telegram struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	BotToken string        `yaml:"bot_token" mapstructure:"bot_token"`
	ChatID   string        `yaml:"chat_id" mapstructure:"chat_id"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type Notify struct {
	Telegram Telegram `yaml:"telegram" mapstructure:"telegram"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" mapstructure:"address"`
}

type Config struct {
	// Principal overrides the OS user; meant for testing a deployment.
	Principal string     `yaml:"principal" mapstructure:"principal"`
	Remote    Remote     `yaml:"remote" mapstructure:"remote"`
	Store     Store      `yaml:"store" mapstructure:"store"`
	Network   Network    `yaml:"network" mapstructure:"network"`
	Cipher    Cipher     `yaml:"cipher" mapstructure:"cipher"`
	Poller    Poller     `yaml:"poller" mapstructure:"poller"`
	Publisher Publisher  `yaml:"publisher" mapstructure:"publisher"`
	Notify    Notify     `yaml:"notify" mapstructure:"notify"`
	Log       log.Config `yaml:"log" mapstructure:"log"`
	Metrics   Metrics    `yaml:"metrics" mapstructure:"metrics"`

	path string
}

func Default() *Config {
	network := netdetect.DefaultOptions()
	store := configstore.DefaultOptions()
	cipher := crypto.DefaultOptions()
	pc := poller.DefaultConfig()
	pub := publisher.DefaultOptions()

	return &Config{
		Remote: Remote{
			URL:          store.RemoteURL,
			Attempts:     store.Attempts,
			RetryDelay:   store.RetryDelay,
			FetchTimeout: store.FetchTimeout,
			CheckTimeout: store.CheckTimeout,
		},
		Store: Store{
			CachePath:     store.CachePath,
			LastCheckPath: store.LastCheckPath,
			MaxBackups:    store.MaxBackups,
			ExportPath:    "dashboard_config_encrypted.json",
			DraftPath:     "dashboard_config.draft.json",
		},
		Network: Network{
			Indicators:    network.Indicators,
			ProxyURL:      network.ProxyURL,
			ProbeURL:      network.ProbeURL,
			DirectTimeout: network.DirectTimeout,
			ProxyTimeout:  network.ProxyTimeout,
		},
		Cipher: Cipher{Secret: cipher.Secret, Salt: cipher.Salt, Iterations: cipher.Iterations},
		Poller: Poller{
			UpdateInterval:   pc.UpdateInterval,
			AuthInterval:     pc.AuthInterval,
			InitialDelay:     pc.InitialDelay,
			AuthCheckTimeout: 5 * time.Second,
		},
		Publisher: Publisher{
			APIURL:        pub.APIURL,
			Owner:         pub.Owner,
			Repo:          pub.Repo,
			Branch:        pub.Branch,
			Path:          pub.Path,
			TokenFile:     "github_token.txt",
			TokenEnv:      "GITHUB_TOKEN",
			VerifyTimeout: pub.VerifyTimeout,
			PutTimeout:    pub.PutTimeout,
		},
		Notify: Notify{Telegram: Telegram{BaseURL: notify.DefaultTelegramURL, Timeout: 10 * time.Second}},
		Log:    *log.DefaultConfig(),
		Metrics: Metrics{
			Address: "127.0.0.1:9464",
		},
	}
}

// Load reads path, or searches for dashgate.yaml in the working directory,
// $HOME/.dashgate and /etc/dashgate when path is empty. Environment
// variables override the file, e.g. DASHGATE_POLLER_AUTH_INTERVAL=5m. A
// missing file is only an error when path was given.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}
	v.SetConfigType("")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".") // Local development override
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".dashgate"))
		}
		v.AddConfigPath("/etc/dashgate/") // System-wide config
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.path = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was read from, or "" for defaults only.
func (c *Config) Path() string {
	return c.path
}

// Validate checks values no component can recover from.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Remote.Attempts > 0, "remote.attempts must be positive")
	check(c.Remote.FetchTimeout > 0, "remote.fetch_timeout must be positive")
	check(c.Remote.CheckTimeout > 0, "remote.check_timeout must be positive")
	check(c.Store.CachePath != "", "store.cache_path is required")
	check(c.Store.DraftPath != c.Store.CachePath, "store.draft_path must differ from store.cache_path")
	check(c.Store.MaxBackups >= 0, "store.max_backups cannot be negative")
	check(c.Cipher.Secret != "" && c.Cipher.Salt != "", "cipher.secret and cipher.salt are required")
	check(c.Poller.UpdateInterval >= time.Second, "poller.update_interval must be at least 1s")
	check(c.Poller.AuthInterval >= time.Second, "poller.auth_interval must be at least 1s")
	check(c.Poller.InitialDelay >= 0, "poller.initial_delay cannot be negative")
	check(!c.Metrics.Enabled || c.Metrics.Address != "", "metrics.address is required when metrics are enabled")
	if !c.Network.Disabled && c.Network.ProxyURL != "" {
		check(strings.Contains(c.Network.ProxyURL, "://"), "network.proxy_url must include a scheme: %q", c.Network.ProxyURL)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// WriteDefault writes the default config to path as YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return utils.WriteFileAtomic(path, data, 0644)
}

func (c *Config) NetworkOptions() netdetect.Options {
	return netdetect.Options{
		Indicators:    c.Network.Indicators,
		ProxyURL:      c.Network.ProxyURL,
		ProbeURL:      c.Network.ProbeURL,
		DirectTimeout: c.Network.DirectTimeout,
		ProxyTimeout:  c.Network.ProxyTimeout,
		Disabled:      c.Network.Disabled,
	}
}

func (c *Config) StoreOptions() configstore.Options {
	opts := configstore.DefaultOptions()
	opts.RemoteURL = c.Remote.URL
	opts.Attempts = c.Remote.Attempts
	opts.RetryDelay = c.Remote.RetryDelay
	opts.FetchTimeout = c.Remote.FetchTimeout
	opts.CheckTimeout = c.Remote.CheckTimeout
	opts.CachePath = c.Store.CachePath
	opts.LastCheckPath = c.Store.LastCheckPath
	opts.MaxBackups = c.Store.MaxBackups
	return opts
}

func (c *Config) CipherOptions() crypto.Options {
	return crypto.Options{Secret: c.Cipher.Secret, Salt: c.Cipher.Salt, Iterations: c.Cipher.Iterations}
}

func (c *Config) PollerConfig() poller.Config {
	return poller.Config{
		UpdateInterval: c.Poller.UpdateInterval,
		AuthInterval:   c.Poller.AuthInterval,
		InitialDelay:   c.Poller.InitialDelay,
		DisableUpdates: c.Poller.DisableUpdates,
		DisableAuth:    c.Poller.DisableAuth,
	}
}

func (c *Config) PublisherOptions() publisher.Options {
	opts := publisher.DefaultOptions()
	opts.APIURL = c.Publisher.APIURL
	opts.Owner = c.Publisher.Owner
	opts.Repo = c.Publisher.Repo
	opts.Branch = c.Publisher.Branch
	opts.Path = c.Publisher.Path
	opts.VerifyTimeout = c.Publisher.VerifyTimeout
	opts.PutTimeout = c.Publisher.PutTimeout
	return opts
}

func (c *Config) TelegramConfig() notify.TelegramConfig {
	t := c.Notify.Telegram
	return notify.TelegramConfig{BaseURL: t.BaseURL, BotToken: t.BotToken, ChatID: t.ChatID, Timeout: t.Timeout}
}

func (c *Config) TokenOptions() crypto.TokenOptions {
	return crypto.TokenOptions{FilePath: c.Publisher.TokenFile, EnvVar: c.Publisher.TokenEnv}
}

// AppOptions maps the config onto App options.
func (c *Config) AppOptions(logger log.Logger) []app.Option {
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithNetwork(c.NetworkOptions()),
		app.WithStore(c.StoreOptions()),
		app.WithCipher(c.CipherOptions()),
		app.WithPoller(c.PollerConfig()),
		app.WithPublisher(c.PublisherOptions()),
		app.WithTelegram(c.TelegramConfig()),
		app.WithAuthCheckTimeout(c.Poller.AuthCheckTimeout),
	}
	if c.Metrics.Enabled {
		opts = append(opts, app.WithMetricsAddr(c.Metrics.Address))
	}
	if c.Principal != "" {
		opts = append(opts, app.WithPrincipal(c.Principal))
	}
	return opts
}
