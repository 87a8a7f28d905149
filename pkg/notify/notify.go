// Package notify sends best-effort chat notifications after a publish.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Notifier delivers a message. Send reports whether delivery succeeded and
// never returns an error; callers treat notification as best effort.
type Notifier interface {
	Send(ctx context.Context, msg string) bool
}

// Nop is a Notifier that drops every message.
type Nop struct{}

func (Nop) Send(context.Context, string) bool { return false }

// PublishEvent describes a completed publish.
type PublishEvent struct {
	Version    string
	Author     string
	Changes    []string
	CommitURL  string
	Dashboards int
	Users      int
	Admins     int
	Time       string
}

// FormatPublish renders e as a Telegram HTML message. User-supplied text is
// escaped.
func FormatPublish(e PublishEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📤 <b>Config published</b>\n\n")
	fmt.Fprintf(&b, "🏷️ <b>Version:</b> %s\n", html.EscapeString(e.Version))
	fmt.Fprintf(&b, "👤 <b>Author:</b> %s\n", html.EscapeString(e.Author))
	fmt.Fprintf(&b, "📊 <b>Dashboards:</b> %d  👥 <b>Users:</b> %d  🔑 <b>Admins:</b> %d\n", e.Dashboards, e.Users, e.Admins)
	if e.Time != "" {
		fmt.Fprintf(&b, "🕒 <b>When:</b> %s\n", html.EscapeString(e.Time))
	}
	if len(e.Changes) > 0 {
		b.WriteString("\n<b>Changes:</b>\n")
		for _, c := range e.Changes {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(c))
		}
	}
	if e.CommitURL != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">View commit</a>", html.EscapeString(e.CommitURL))
	}
	return strings.TrimRight(b.String(), "\n")
}
