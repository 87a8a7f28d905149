package format

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

// Color codes
const (
	Reset      = "\033[0m"
	Bold       = "\033[1m"
	Red        = "\033[31m"
	Green      = "\033[32m"
	Yellow     = "\033[33m"
	Blue       = "\033[34m"
	Cyan       = "\033[36m"
	White      = "\033[37m"
	BoldRed    = "\033[1;31m"
	BoldGreen  = "\033[1;32m"
	BoldYellow = "\033[1;33m"
	BoldBlue   = "\033[1;34m"
	BoldCyan   = "\033[1;36m"
)

var (
	// useColor determines whether to use color in output
	useColor = true
)

func init() {
	useColor = detectColor(os.LookupEnv, term.IsTerminal(int(os.Stdout.Fd())))
}

// detectColor decides the default from the platform, the environment, and
// whether stdout is a terminal.
func detectColor(lookup func(string) (string, bool), tty bool) bool {
	enabled := true
	if runtime.GOOS == "windows" {
		// ANSICON is set by ConEmu, WT_SESSION by Windows Terminal
		_, hasAnsicon := lookup("ANSICON")
		_, hasWT := lookup("WT_SESSION")
		enabled = hasAnsicon || hasWT
	}
	if _, noColor := lookup("DASHGATE_NO_COLOR"); noColor {
		return false
	}
	if _, noColor := lookup("NO_COLOR"); noColor {
		return false
	}
	if _, force := lookup("DASHGATE_FORCE_COLOR"); force {
		return true
	}
	return enabled && tty
}

// EnableColor enables or disables colored output globally
func EnableColor(enable bool) {
	useColor = enable
}

// IsColorEnabled returns whether colored output is enabled
func IsColorEnabled() bool {
	return useColor
}

// Colorize adds color to a string if colors are enabled
func Colorize(color, text string) string {
	if useColor {
		return color + text + Reset
	}
	return text
}

// Success formats a message as a success (green)
func Success(format string, a ...interface{}) string {
	return Colorize(Green, fmt.Sprintf(format, a...))
}

// Warning formats a message as a warning (yellow)
func Warning(format string, a ...interface{}) string {
	return Colorize(Yellow, fmt.Sprintf(format, a...))
}

// Error formats a message as an error (red)
func Error(format string, a ...interface{}) string {
	return Colorize(Red, fmt.Sprintf(format, a...))
}

// Info formats a message as info (cyan)
func Info(format string, a ...interface{}) string {
	return Colorize(Cyan, fmt.Sprintf(format, a...))
}

// Header formats a message as a header (bold blue)
func Header(format string, a ...interface{}) string {
	return Colorize(BoldBlue, fmt.Sprintf(format, a...))
}

// StatusSymbol returns a colorized status symbol
func StatusSymbol(success bool) string {
	if success {
		return Colorize(Green, "✓")
	}
	return Colorize(Red, "✗")
}

// Label formats a key and value with a label style
func Label(key, value string) string {
	return fmt.Sprintf("%s %s", Colorize(BoldCyan, key+":"), value)
}

// StatusLabel colors an access state or indicator keyword.
func StatusLabel(status string) string {
	status = strings.ToLower(status)
	switch status {
	case "authorized", "admin", "ok", "success", "current", "corporate":
		return Colorize(BoldGreen, status)
	case "degraded", "inconclusive", "local", "update", "diverged":
		return Colorize(BoldYellow, status)
	case "revoked", "denied", "unauthenticated", "error":
		return Colorize(BoldRed, status)
	default:
		return Colorize(White, status)
	}
}

// YesNo renders a boolean as a colored yes or no.
func YesNo(v bool) string {
	if v {
		return Colorize(Green, "yes")
	}
	return "no"
}
