package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/guiyumin/vfeed/internal/refresh"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	fetchJSON    bool
	fetchPlain   bool
	fetchVerbose bool
)

var (
	fetchInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	fetchDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	fetchErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Refresh the snapshot once and print the result",
	Long: `Fetch the media timeline once, update the snapshot file, and print a summary.

When the fetch fails, the previous snapshot is kept and printed.

Examples:
  vfeed fetch
  vfeed fetch --json > videos.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the records as a JSON array")
	fetchCmd.Flags().BoolVar(&fetchPlain, "plain", false, "no spinner")
	fetchCmd.Flags().BoolVarP(&fetchVerbose, "verbose", "v", false, "show refresh logs")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command) error {
	cfg := loadConfig(cmd)

	log := newLogger(cfg)
	if !fetchVerbose {
		log.SetLevel(logrus.ErrorLevel)
	}

	a, err := newApp(cfg, log, nil)
	if err != nil {
		return err
	}

	refreshFn := func() (refresh.Outcome, error) {
		return a.ctrl.Refresh(cmd.Context())
	}

	var res refreshResult
	if useSpinner(cmd.OutOrStdout()) {
		res, err = runRefreshWithSpinner(refreshFn, cfg.Twitter.UserID)
		if err != nil {
			return err
		}
	} else {
		res.out, res.err = refreshFn()
	}

	w := cmd.OutOrStdout()
	if fetchJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.out.Records)
	}

	size := "missing"
	if info, err := osFs.Stat(a.store.Path()); err == nil {
		size = formatBytes(info.Size())
	}
	printOutcome(w, res.out, res.err, fmt.Sprintf("%s (%s)", a.store.Path(), size))
	return nil
}

// useSpinner reports whether w is an interactive terminal that wants one
func useSpinner(w io.Writer) bool {
	if fetchPlain || fetchJSON {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printOutcome(w io.Writer, out refresh.Outcome, err error, snapshot string) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Fprint(w, "Status:   ")
	if err == nil {
		green.Fprintln(w, string(out.Kind)+" ✓")
	} else {
		yellow.Fprintf(w, "%s (%v)\n", out.Kind, err)
	}
	if out.Strategy != "" {
		fmt.Fprintf(w, "Strategy: %s\n", out.Strategy)
	}
	fmt.Fprintf(w, "Records:  %d\n", len(out.Records))
	fmt.Fprintf(w, "Snapshot: %s\n", snapshot)

	if len(out.Records) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, r := range out.Records {
		cyan.Fprintf(w, "[%s]", r.ID)
		if r.Timestamp != "" {
			fmt.Fprintf(w, " %s", r.Timestamp)
		}
		fmt.Fprintln(w)
		if r.Text != "" {
			fmt.Fprintf(w, "  %s\n", truncate(r.Text, 80))
		}
		fmt.Fprintf(w, "  %s\n", r.MediaURL)
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

type refreshResult struct {
	out refresh.Outcome
	err error
}

// refreshState holds the result of a background refresh
type refreshState struct {
	mu     sync.RWMutex
	done   bool
	result refreshResult
}

func (s *refreshState) set(out refresh.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.result = refreshResult{out: out, err: err}
}

func (s *refreshState) get() (bool, refreshResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.result
}

type fetchTickMsg time.Time

type fetchModel struct {
	spinner spinner.Model
	subject string
	state   *refreshState
}

func newFetchModel(subject string, state *refreshState) fetchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return fetchModel{
		spinner: s,
		subject: subject,
		state:   state,
	}
}

func fetchTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return fetchTickMsg(t)
	})
}

func (m fetchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchTickCmd())
}

func (m fetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fetchTickMsg:
		if done, _ := m.state.get(); done {
			return m, tea.Quit
		}
		return m, fetchTickCmd()
	}

	return m, nil
}

func (m fetchModel) View() string {
	done, res := m.state.get()
	if !done {
		return fmt.Sprintf("\n  %s Fetching media timeline for %s\n\n",
			m.spinner.View(),
			fetchInfoStyle.Render(orDefault(m.subject, "(no user id)")),
		)
	}
	if res.err != nil {
		return fmt.Sprintf("\n  %s %s, serving %d cached records\n\n",
			fetchErrStyle.Render("✗"),
			res.out.Kind,
			len(res.out.Records),
		)
	}
	return fmt.Sprintf("\n  %s Fetched %d records\n\n",
		fetchDoneStyle.Render("✓"),
		len(res.out.Records),
	)
}

// runRefreshWithSpinner runs fn in the background behind a spinner TUI
func runRefreshWithSpinner(fn func() (refresh.Outcome, error), subject string) (refreshResult, error) {
	state := &refreshState{}

	go func() {
		out, err := fn()
		state.set(out, err)
	}()

	p := tea.NewProgram(newFetchModel(subject, state))
	if _, err := p.Run(); err != nil {
		return refreshResult{}, err
	}

	done, res := state.get()
	if !done {
		return refreshResult{}, context.Canceled
	}
	return res, nil
}
