package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/woxQAQ/zipdb/internal/app"
)

func newDemoCommand(s *rootState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Print the population difference between two zips",
		Long: `Create a database, load the dataset, query two zip codes, free the
database and print the second population minus the first.`,
		Example: `  # Prints 666
  zipdb demo

  # Compare other zips
  zipdb demo --zips 00100,00042`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(_ context.Context, a *app.App) error {
				demo, err := a.Demo()
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(demo)
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), demo.Difference)
				return err
			})
		},
	}

	cmd.Flags().StringSlice("zips", nil, "Two zip codes to compare (default from config: 10186,10852)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print both lookups as JSON")

	return cmd
}
