// Package cli provides the zipdb command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/woxQAQ/zipdb/internal/app"
	"github.com/woxQAQ/zipdb/internal/config"
)

// Version information (set at build time).
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level": "log_level",
	"zips":      "demo.zips",
}

// Option customizes the root command.
type Option func(*rootState)

// WithLogger replaces the logger built from --log-level.
func WithLogger(logger *zap.Logger) Option {
	return func(s *rootState) { s.logger = logger }
}

// WithAppOptions passes options to every App the commands build.
func WithAppOptions(opts ...app.Option) Option {
	return func(s *rootState) { s.appOpts = append(s.appOpts, opts...) }
}

type rootState struct {
	cfgFile  string
	cfg      *config.Config
	logger   *zap.Logger
	injected bool
	appOpts  []app.Option
}

// NewRootCmd creates and returns the root command.
func NewRootCmd(opts ...Option) *cobra.Command {
	s := &rootState{}
	for _, opt := range opts {
		opt(s)
	}
	s.injected = s.logger != nil

	rootCmd := &cobra.Command{
		Use:   "zipdb",
		Short: "zipdb - zip code population lookups",
		Long: `zipdb holds zip code population counts behind a flat handle-based API.

The same database_new/free/insert/query operations are exported to C through
libzipdb and to WebAssembly guests through the env host module.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return s.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if s.logger != nil && !s.injected {
				_ = s.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newDemoCommand(s))
	rootCmd.AddCommand(newQueryCommand(s))
	rootCmd.AddCommand(newGuestCommand(s))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// load resolves configuration for cmd and builds the logger.
func (s *rootState) load(cmd *cobra.Command) error {
	v := config.New()
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	cfg, err := config.Load(v, s.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	s.cfg = cfg

	if !s.injected {
		logger, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		s.logger = logger
	}

	s.logger.Debug("Configuration loaded",
		zap.String("config_file", v.ConfigFileUsed()),
		zap.String("log_level", cfg.LogLevel),
	)
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// withApp builds an App for one command and closes it afterwards.
func (s *rootState) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := append([]app.Option{app.WithOutput(cmd.OutOrStdout())}, s.appOpts...)
	a, err := app.NewApp(ctx, s.cfg, s.logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			s.logger.Warn("Failed to close app", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
