package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rzbill/dashgate/pkg/access"
	"github.com/rzbill/dashgate/pkg/app"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/publisher"
	"golang.org/x/term"
)

// Error colors
var (
	ErrorColor   = color.New(color.FgRed, color.Bold)
	WarningColor = color.New(color.FgYellow, color.Bold)
	SuccessColor = color.New(color.FgGreen, color.Bold)
	FileColor    = color.New(color.FgCyan)
	HintColor    = color.New(color.FgYellow, color.Italic)
)

// CLIError is the structured form of an error printed by the CLI.
type CLIError struct {
	FileName string   `json:"file_name,omitempty"`
	Message  string   `json:"message"`
	Details  []string `json:"details,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// hints maps sentinel errors to the next step a user can take.
var hints = []struct {
	err  error
	hint string
}{
	{access.ErrDenied, "Ask an administrator to add your user to authorized_users."},
	{access.ErrPrincipalUnresolved, "Set USER (or USERNAME on Windows), or set principal in dashgate.yaml."},
	{app.ErrCorporateNetworkRequired, "Connect to the corporate network or VPN and try again."},
	{app.ErrNotAdmin, "Only users listed in admin_users can change the configuration."},
	{publisher.ErrInvalidToken, "Run 'dashgate token set' with a valid GitHub token."},
	{publisher.ErrRepoNotFound, "Check publisher.owner and publisher.repo, and that the token can see the repository."},
	{publisher.ErrNoWriteAccess, "The token needs push access (the repo scope) on the config repository."},
	{publisher.ErrConflict, "Someone published a newer version. Compare with 'dashgate draft show', then discard the draft and redo your changes on the latest config."},
	{publisher.ErrNoChanges, "Nothing differs from the remote copy. Use --force to publish anyway."},
	{crypto.ErrTokenNotFound, "Run 'dashgate token set' or export GITHUB_TOKEN."},
	{document.ErrVersionNotIncreasing, "Pick a version greater than the current one, or omit --version for the next patch."},
	{document.ErrInvalidVersion, "Versions look like 1.2.3."},
	{document.ErrLastAdmin, "Add another administrator before removing this one."},
	{document.ErrSchema, "Fix the fields listed above. Comments and trailing commas are allowed in drafts."},
}

// Hint returns the suggested next step for err, or "".
func Hint(err error) string {
	for _, h := range hints {
		if errors.Is(err, h.err) {
			return h.hint
		}
	}
	return ""
}

// ErrorFormatter prints CLI errors with their hints.
type ErrorFormatter struct {
	FileName      string
	OutputFormat  string
	Out           io.Writer
	TerminalWidth int
}

// NewErrorFormatter creates a formatter writing to stderr.
func NewErrorFormatter(filename string) *ErrorFormatter {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		width = 80 // Default width if can't detect terminal
	}
	if width > 100 {
		width = 100
	}
	return &ErrorFormatter{
		FileName:      filename,
		OutputFormat:  "text",
		Out:           os.Stderr,
		TerminalWidth: width,
	}
}

// Describe builds the structured form of err. Schema violations are split
// into one detail per field.
func (f *ErrorFormatter) Describe(err error) CLIError {
	e := CLIError{FileName: f.FileName, Message: err.Error(), Hint: Hint(err)}
	if errors.Is(err, document.ErrSchema) {
		prefix := document.ErrSchema.Error() + ": "
		msg := err.Error()
		if i := strings.Index(msg, prefix); i >= 0 {
			e.Message = strings.TrimSuffix(msg[:i+len(prefix)], ": ")
			for _, d := range strings.Split(msg[i+len(prefix):], "; ") {
				if d = strings.TrimSpace(d); d != "" {
					e.Details = append(e.Details, d)
				}
			}
		}
	}
	var apiErr *publisher.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 && len(e.Details) == 0 {
		e.Details = apiErr.Details
	}
	return e
}

// Print writes err in the configured format.
func (f *ErrorFormatter) Print(err error) {
	if err == nil {
		return
	}
	e := f.Describe(err)

	if f.OutputFormat == "json" {
		data, _ := json.MarshalIndent(e, "", "  ")
		fmt.Fprintln(f.Out, string(data))
		return
	}

	if e.FileName != "" {
		fmt.Fprintln(f.Out)
		ErrorColor.Fprint(f.Out, "× INVALID ")
		FileColor.Fprintln(f.Out, e.FileName)
		fmt.Fprintln(f.Out, strings.Repeat("─", f.TerminalWidth))
	}
	ErrorColor.Fprintf(f.Out, "Error: %s\n", e.Message)
	for _, d := range e.Details {
		fmt.Fprintf(f.Out, "  • %s\n", d)
	}
	if e.Hint != "" {
		HintColor.Fprintf(f.Out, "Hint: %s\n", e.Hint)
	}
}

// PrintWarning writes a yellow warning line.
func (f *ErrorFormatter) PrintWarning(format string, a ...interface{}) {
	WarningColor.Fprintf(f.Out, "Warning: "+format+"\n", a...)
}
