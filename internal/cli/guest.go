package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/woxQAQ/zipdb/internal/app"
)

func newGuestCommand(s *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "List and run WebAssembly guests",
		Long: `Guests are directories holding a manifest.yaml and a .wasm module.
They are discovered under the configured guest_paths.`,
	}

	cmd.AddCommand(newGuestListCommand(s))
	cmd.AddCommand(newGuestRunCommand(s))

	return cmd
}

func newGuestListCommand(s *rootState) *cobra.Command {
	var capability string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered guests",
		Example: `  zipdb guest list
  zipdb guest list --capability database`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.LoadGuests(ctx); err != nil {
					return err
				}

				guests := a.Guests(capability)
				if len(guests) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(0 guests)")
					return nil
				}

				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"NAME", "VERSION", "ENTRY", "CAPABILITIES", "DESCRIPTION"})
				for _, g := range guests {
					t.AppendRow(table.Row{
						g.Name(),
						g.Version(),
						g.Manifest.Entry,
						strings.Join(g.Capabilities(), ","),
						g.Manifest.Description,
					})
				}
				t.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&capability, "capability", "", "Only list guests granted this capability")

	return cmd
}

func newGuestRunCommand(s *rootState) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "run NAME [ARGS...]",
		Short: "Run a guest's entry point",
		Long: `Instantiate a guest, call its entry point and close it. ARGS are
unsigned integers passed as the entry's parameters; without ARGS the
manifest's args are used.`,
		Example: `  # add_one(41) prints "Hello world: 42"
  zipdb guest run hello

  zipdb guest run hello 998

  # Run a guest outside guest_paths
  zipdb guest run --dir ./examples/hello-guest hello`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseGuestArgs(args[1:])
			if err != nil {
				return err
			}

			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if dir != "" {
					if _, err := a.LoadGuestDir(ctx, dir); err != nil {
						return err
					}
				} else if err := a.LoadGuests(ctx); err != nil {
					return err
				}

				result, err := a.RunGuest(ctx, args[0], params)
				if err != nil {
					return err
				}

				for _, r := range result.Results {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), r)
				}
				if result.OpenHandles > 0 {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s left %d database(s) open\n", result.Guest, result.OpenHandles)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Load the guest from this directory instead of guest_paths")

	return cmd
}

// parseGuestArgs returns nil for no args so the manifest's args apply.
func parseGuestArgs(args []string) ([]uint64, error) {
	if len(args) == 0 {
		return nil, nil
	}

	params := make([]uint64, len(args))
	for i, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid guest argument %q: %w", arg, err)
		}
		params[i] = n
	}
	return params, nil
}
