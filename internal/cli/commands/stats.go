package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/procmacro/internal/cli/config"
	"github.com/leapstack-labs/procmacro/internal/journal"
)

// StatsOptions holds options for the stats command.
type StatsOptions struct {
	Recent int
}

// NewStatsCommand creates the stats command.
func NewStatsCommand() *cobra.Command {
	opts := &StatsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the expansion journal",
		Long: `Show per-macro totals, error counts and average durations recorded in the
expansion journal. With --recent, list the latest expansions instead.`,
		Example: `  procmacro stats
  procmacro stats --recent 20 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Recent, "recent", 0, "List the N most recent expansions")

	return cmd
}

func runStats(cmd *cobra.Command, opts *StatsOptions) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return errors.New("journal is disabled")
	}

	store, err := openJournal(cfg, config.GetLogger(cmd.Context()))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	w := cmd.OutOrStdout()

	if opts.Recent > 0 {
		entries, err := store.ListExpansions(cmd.Context(), opts.Recent)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.StartedAt.Local().Format(time.DateTime),
				e.MacroName,
				e.Lib,
				e.Status,
				e.ErrorKind,
				formatDuration(e.Duration),
			})
		}
		return renderRows(w, []string{"started", "macro", "lib", "status", "kind", "duration"}, rows, cfg.OutputFormat)
	}

	sum, err := store.Summary(cmd.Context())
	if err != nil {
		return err
	}
	if sum.Total() == 0 {
		_, _ = fmt.Fprintln(w, "No expansions recorded.")
		return nil
	}

	if err := renderRows(w, []string{"macro", "total", "errors", "cancelled", "avg"}, macroRows(sum.Macros), cfg.OutputFormat); err != nil {
		return err
	}

	statuses := make([]string, 0, len(sum.ByStatus))
	for s := range sum.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{s, strconv.Itoa(sum.ByStatus[s])})
	}
	_, _ = fmt.Fprintln(w)
	return renderRows(w, []string{"status", "count"}, rows, cfg.OutputFormat)
}

func macroRows(macros []journal.MacroStats) [][]string {
	rows := make([][]string, 0, len(macros))
	for _, m := range macros {
		rows = append(rows, []string{
			m.MacroName,
			strconv.Itoa(m.Total),
			strconv.Itoa(m.Errors),
			strconv.Itoa(m.Cancelled),
			formatDuration(m.AvgDuration),
		})
	}
	return rows
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	return d.Round(time.Millisecond).String()
}
