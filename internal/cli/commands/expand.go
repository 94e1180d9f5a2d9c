package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/procmacro/internal/cli/config"
	"github.com/leapstack-labs/procmacro/internal/expansion"
	"github.com/leapstack-labs/procmacro/internal/proc"
	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// ExpandOptions holds options for the expand command.
type ExpandOptions struct {
	Lib    string
	Ranges bool
}

type expandResult struct {
	File   string               `json:"file"`
	Text   string               `json:"text,omitempty"`
	Ranges []tt.MappedTextRange `json:"ranges,omitempty"`
	Kind   string               `json:"error_kind,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// NewExpandCommand creates the expand command.
func NewExpandCommand() *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand <macro> [file...]",
		Short: "Expand macro call bodies with the configured expander",
		Long: `Expand each file as the body of a call to <macro> and print the expansion.

Files are expanded concurrently, at most one per expander process. With no files,
or with "-", the body is read from stdin. Every outcome is written to the
expansion journal unless it is disabled.`,
		Example: `  # Expand a body with a Starlark macro library served by procmacro itself
  procmacro expand --expander $(which procmacro) --lib derive.star unit body.txt

  # Show how expansion ranges map back to the call body
  echo 'let x = 1;' | procmacro expand --lib gen braces --ranges`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Lib, "lib", "", "Macro library passed to the expander")
	cmd.Flags().BoolVar(&opts.Ranges, "ranges", false, "Print the range map of each expansion")

	return cmd
}

func runExpand(cmd *cobra.Command, opts *ExpandOptions, macroName string, files []string) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	logger := config.GetLogger(cmd.Context())

	svc, err := proc.NewService(cfg.Expander, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	expander := svc.Expander()
	store, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		expander.WithRecorder(store)
	}

	if len(files) == 0 {
		files = []string{"-"}
	}

	results := make([]expandResult, len(files))
	var g errgroup.Group
	g.SetLimit(cfg.Expander.PoolSize)
	for i, file := range files {
		g.Go(func() error {
			body, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			results[i] = expandOne(cmd, expander, macroName, opts.Lib, file, body)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := printExpansions(cmd.OutOrStdout(), results, cfg.OutputFormat, opts.Ranges); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d expansions failed", failed, len(results))
	}
	return nil
}

func expandOne(cmd *cobra.Command, expander expansion.Expander, macroName, lib, file, body string) expandResult {
	res, err := expander.ExpandMacroAsText(cmd.Context(), expansion.MacroCall{
		Name: macroName,
		Lib:  lib,
		Body: &body,
	})
	if err != nil {
		return expandResult{File: file, Kind: expansion.KindOf(err), Error: err.Error()}
	}
	return expandResult{File: file, Text: res.Text, Ranges: res.Ranges.Ranges()}
}

func printExpansions(w io.Writer, results []expandResult, format string, ranges bool) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, r := range results {
		if len(results) > 1 {
			_, _ = fmt.Fprintf(w, "==> %s <==\n", r.File)
		}
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "error: %s\n", r.Error)
			continue
		}
		_, _ = fmt.Fprintln(w, r.Text)
		if ranges {
			rows := make([][]string, 0, len(r.Ranges))
			for _, rg := range r.Ranges {
				rows = append(rows, []string{
					strconv.Itoa(rg.SrcOffset),
					strconv.Itoa(rg.DstOffset),
					strconv.Itoa(rg.Length),
				})
			}
			if err := renderRows(w, []string{"src", "dst", "len"}, rows, format); err != nil {
				return err
			}
		}
	}
	return nil
}
