package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/transport"
)

// DefaultTelegramURL is the Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// SessionProvider hands out the shared HTTP session.
type SessionProvider interface {
	Session(ctx context.Context) *transport.Session
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Telegram posts messages through the Bot API.
type Telegram struct {
	config   TelegramConfig
	sessions SessionProvider
	logger   log.Logger
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		Username string `json:"username"`
	} `json:"result"`
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(config TelegramConfig, sessions SessionProvider, logger log.Logger) *Telegram {
	if config.BaseURL == "" {
		config.BaseURL = DefaultTelegramURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Telegram{
		config:   config,
		sessions: sessions,
		logger:   logger.WithComponent("notify"),
	}
}

// Enabled reports whether both the token and chat id are set.
func (t *Telegram) Enabled() bool {
	return t.config.BotToken != "" && t.config.ChatID != ""
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(t.config.BaseURL, "/"), t.config.BotToken, method)
}

// Send posts msg to the configured chat.
func (t *Telegram) Send(ctx context.Context, msg string) bool {
	if !t.Enabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	var out telegramResponse
	resp, err := t.sessions.Session(ctx).R(ctx).
		SetBody(map[string]string{
			"chat_id":    t.config.ChatID,
			"text":       msg,
			"parse_mode": "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post(t.endpoint("sendMessage"))
	if err != nil {
		t.logger.Warn("Failed to send Telegram message", log.Err(err))
		return false
	}
	if resp.StatusCode() != http.StatusOK || !out.OK {
		t.logger.Warn("Telegram rejected message",
			log.Int("status", resp.StatusCode()), log.Str("description", out.Description))
		return false
	}
	t.logger.Debug("Telegram message sent")
	return true
}

// Ping calls getMe and returns the bot username.
func (t *Telegram) Ping(ctx context.Context) (string, error) {
	if t.config.BotToken == "" {
		return "", errors.New("telegram bot token not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	var out telegramResponse
	resp, err := t.sessions.Session(ctx).R(ctx).
		SetResult(&out).
		SetError(&out).
		Get(t.endpoint("getMe"))
	if err != nil {
		return "", fmt.Errorf("failed to reach telegram: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || !out.OK {
		return "", fmt.Errorf("telegram getMe failed with status %d: %s", resp.StatusCode(), out.Description)
	}
	return out.Result.Username, nil
}
