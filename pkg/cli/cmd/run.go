package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rzbill/dashgate/pkg/app"
	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/spf13/cobra"
)

type runOptions struct {
	autoUpdate bool
	noPrompt   bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the launcher and keep the config and access checks running",
		Long: `Start the launcher: detect the network, load the config, admit the
current user, list the dashboards, and keep checking for updates and
access changes until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := root.startRuntime(ctx)
			if err != nil {
				return err
			}
			host := newConsoleHost(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			host.autoUpdate = opts.autoUpdate
			host.noPrompt = opts.noPrompt

			host.printDashboards(rt.app.Store().Current())
			if rt.app.Decision().IsAdmin {
				fmt.Fprintln(cmd.OutOrStdout(), format.Info("Administrator mode: edit with 'dashgate dashboards|users|admins' and share with 'dashgate publish'."))
			}

			return rt.app.Run(ctx, host)
		},
	}
	cmd.Flags().BoolVar(&opts.autoUpdate, "auto-update", false, "apply newer configs without asking")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "never ask; newer configs are reported but not applied")
	return cmd
}

// consoleHost is the terminal side of the launcher.
type consoleHost struct {
	ctx        context.Context
	in         *bufio.Reader
	out        io.Writer
	autoUpdate bool
	noPrompt   bool

	mu         sync.Mutex
	lastStatus string
}

func newConsoleHost(ctx context.Context, in io.Reader, out io.Writer) *consoleHost {
	return &consoleHost{ctx: ctx, in: bufio.NewReader(in), out: out}
}

func (h *consoleHost) PromptUpdate(doc *document.Document) bool {
	h.mu.Lock()
	fmt.Fprintln(h.out, format.Header("Update available: v%s", doc.Version))
	if entries := doc.SortedChangelog(); len(entries) > 0 {
		for _, c := range entries[0].Changes {
			fmt.Fprintf(h.out, "  • %s\n", c)
		}
	}
	switch {
	case h.autoUpdate:
		h.mu.Unlock()
		return true
	case h.noPrompt:
		fmt.Fprintln(h.out, "Run 'dashgate update apply' to install it.")
		h.mu.Unlock()
		return false
	}
	fmt.Fprint(h.out, "Apply now? [y/N] ")
	h.mu.Unlock()

	// Status lines may still print while the answer is pending.
	answer := make(chan string, 1)
	go func() {
		line, _ := h.in.ReadString('\n')
		answer <- line
	}()
	select {
	case line := <-answer:
		line = strings.ToLower(strings.TrimSpace(line))
		return line == "y" || line == "yes"
	case <-h.ctx.Done():
		fmt.Fprintln(h.out)
		return false
	}
}

func (h *consoleHost) UpdateApplied(doc *document.Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, format.Success("%s Config updated to v%s", format.StatusSymbol(true), doc.Version))
	h.printDashboardsLocked(doc)
}

func (h *consoleHost) Revoked() {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, format.Error("%s Your access has been revoked. Closing.", format.StatusSymbol(false)))
}

// ShowStatus prints the status line when it changes.
func (h *consoleHost) ShowStatus(st app.Status) {
	line := statusLine(st)
	h.mu.Lock()
	defer h.mu.Unlock()
	if line == h.lastStatus {
		return
	}
	h.lastStatus = line
	fmt.Fprintln(h.out, line)
}

func (h *consoleHost) printDashboards(doc *document.Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.printDashboardsLocked(doc)
}

func (h *consoleHost) printDashboardsLocked(doc *document.Document) {
	if doc == nil || len(doc.Dashboards) == 0 {
		fmt.Fprintln(h.out, format.Warning("No dashboards configured."))
		return
	}
	fmt.Fprintln(h.out, format.Header("Dashboards (v%s)", doc.Version))
	for _, name := range doc.DashboardNames() {
		fmt.Fprintf(h.out, "  %s  %s\n", format.Colorize(format.BoldCyan, name), doc.Dashboards[name])
	}
}

// statusLine renders the one-line status indicator.
func statusLine(st app.Status) string {
	role := "user"
	if st.Admin {
		role = "admin"
	}
	parts := []string{
		format.StatusLabel(st.State),
		fmt.Sprintf("%s (%s)", st.Principal, role),
		"v" + st.Version,
	}
	if st.Corporate {
		parts = append(parts, format.StatusLabel("corporate"))
	}
	for _, ind := range st.Indicators() {
		parts = append(parts, format.Warning("%s", ind))
	}
	return "[" + strings.Join(parts, " | ") + "]"
}
