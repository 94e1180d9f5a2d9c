package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/procmacro/internal/cli/config"
	"github.com/leapstack-labs/procmacro/internal/expandsrv"
	"github.com/leapstack-labs/procmacro/internal/macro"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	List  bool
	Check bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a proc-macro expander over stdin/stdout",
		Long: `Serve expansion requests on stdin/stdout using Starlark macro libraries.

The lib of each request names a .star file, resolved against the macros directory
unless absolute. Every exported function of the file is a macro: it receives the
call body as a token tree and returns the expansion. Point expander.path at this
binary with args ["serve"] to use it as the expander.`,
		Example: `  # List the macros available to the expander
  procmacro serve --list

  # Execute every library once and report errors
  procmacro serve --check

  # Configure procmacro as its own expander
  PROCMACRO_EXPANDER__PATH=$(which procmacro) PROCMACRO_EXPANDER__ARGS=serve procmacro expand --lib derive unit body.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "List macro libraries and their macros instead of serving")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Load every macro library and exit")
	cmd.MarkFlagsMutuallyExclusive("list", "check")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	logger := config.GetLogger(cmd.Context())

	if opts.List {
		return listMacros(cmd, cfg)
	}
	if opts.Check {
		return checkMacros(cmd, cfg)
	}

	logger.Debug("serving macros", "dir", cfg.MacrosDir)
	provider := macro.NewStarlarkProvider(cfg.MacrosDir).WithLogger(logger)
	return expandsrv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), provider, logger)
}

func listMacros(cmd *cobra.Command, cfg *config.Config) error {
	namespaces, err := macro.NewLoader(cfg.MacrosDir).Parse()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, ns := range namespaces {
		for _, fn := range ns.Macros() {
			rows = append(rows, []string{ns.Name, fn.Signature(), strconv.Itoa(fn.Line), fn.Summary()})
		}
	}
	return renderRows(cmd.OutOrStdout(), []string{"library", "macro", "line", "doc"}, rows, cfg.OutputFormat)
}

func checkMacros(cmd *cobra.Command, cfg *config.Config) error {
	modules, err := macro.NewLoader(cfg.MacrosDir).Load()
	for _, m := range modules {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d exports)\n", m.Namespace, len(m.Exports))
	}
	if err != nil {
		return fmt.Errorf("macro libraries failed to load:\n%w", err)
	}
	return nil
}
