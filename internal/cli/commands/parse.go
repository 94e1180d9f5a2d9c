package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	Format string
}

// Formats accepted by parse --format.
var parseFormats = []string{"debug", "json", "yaml", "text"}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse text into a token tree",
		Long: `Parse a macro call body into the token tree sent to expanders.

Formats:
  debug  indented tree dump with token ids
  json   wire form of the tree
  yaml   wire form of the tree as YAML
  text   text reconstructed from the tree, with its range map`,
		Example: `  echo 'foo(bar, 1.5)' | procmacro parse
  procmacro parse --format json body.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runParse(cmd, opts, path)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "debug", "Output format (debug|json|yaml|text)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return parseFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runParse(cmd *cobra.Command, opts *ParseOptions, path string) error {
	input, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	mapped := tt.Parse(input)
	w := cmd.OutOrStdout()

	switch opts.Format {
	case "debug":
		_, _ = fmt.Fprintln(w, mapped.Subtree.DebugString())
		return nil

	case "json":
		data, err := json.MarshalIndent(mapped.Subtree, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode tree: %w", err)
		}
		_, _ = fmt.Fprintln(w, string(data))
		return nil

	case "yaml":
		data, err := json.Marshal(mapped.Subtree)
		if err != nil {
			return fmt.Errorf("failed to encode tree: %w", err)
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to convert tree: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode tree: %w", err)
		}
		_, _ = w.Write(out)
		return nil

	case "text":
		text, ranges := mapped.ToMappedText()
		_, _ = fmt.Fprintln(w, text)
		rows := make([][]string, 0, ranges.Len())
		for _, r := range ranges.Ranges() {
			rows = append(rows, []string{
				strconv.Itoa(r.SrcOffset),
				strconv.Itoa(r.DstOffset),
				strconv.Itoa(r.Length),
				strconv.Quote(input[r.SrcOffset:r.SrcEndOffset()]),
			})
		}
		return renderRows(w, []string{"src", "dst", "len", "source"}, rows, "markdown")

	default:
		return fmt.Errorf("unknown format %q (want one of %v)", opts.Format, parseFormats)
	}
}
