// Package app wires configuration, the database ABI, the Wasm runtime and the
// guest manager together for the zipdb command.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/woxQAQ/zipdb/internal/abi"
	"github.com/woxQAQ/zipdb/internal/config"
	"github.com/woxQAQ/zipdb/internal/database"
	"github.com/woxQAQ/zipdb/internal/guest"
	"github.com/woxQAQ/zipdb/internal/handle"
	"github.com/woxQAQ/zipdb/internal/wasm"
	"github.com/woxQAQ/zipdb/pkg/protocol"
)

// App owns one Wasm runtime and guest manager for the lifetime of a command
// and routes database operations through the flat ABI.
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	abi         *abi.ABI
	wasmRuntime *wasm.Runtime
	guests      *guest.Manager
}

// Option customizes an App.
type Option func(*options)

type options struct {
	out io.Writer
	abi *abi.ABI
}

// WithOutput sets where guest greetings and stdout go. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithABI routes database operations through a. Defaults to abi.Default().
func WithABI(a *abi.ABI) Option {
	return func(o *options) { o.abi = a }
}

// NewApp builds the runtime and guest manager from cfg. Guests are not loaded
// until LoadGuests.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	if o.abi == nil {
		o.abi = abi.Default()
	}

	wasmConfig := cfg.RuntimeConfig()
	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	hostFuncs := wasm.NewHostFunctions(logger,
		wasm.WithOutput(o.out),
		wasm.WithABI(o.abi),
		wasm.WithGuestDebug(wasmConfig.DebugEnabled),
	)

	logger.Info("zipdb initialized",
		zap.Uint32("wasm_memory_pages", wasmConfig.MemoryPages),
		zap.String("wasm_cache_dir", wasmConfig.CacheDir),
		zap.Strings("guest_paths", cfg.GuestPaths),
	)

	return &App{
		cfg:         cfg,
		logger:      logger.With(zap.String("component", "app")),
		abi:         o.abi,
		wasmRuntime: wasmRuntime,
		guests:      guest.NewManager(cfg.GuestPaths, wasmRuntime, hostFuncs, logger),
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Demo runs new, insert, query, query, free and reports the difference
// between the two configured zips.
func (a *App) Demo() (protocol.DemoResult, error) {
	zips := a.cfg.Demo.Zips
	if len(zips) != 2 {
		return protocol.DemoResult{}, fmt.Errorf("demo needs exactly two zips, got %d", len(zips))
	}

	results, err := a.Query(zips, QueryOptions{Insert: true})
	if err != nil {
		return protocol.DemoResult{}, err
	}

	demo := protocol.NewDemoResult(results[0], results[1])

	a.logger.Debug("Demo complete",
		zap.String("first", demo.First.Zip),
		zap.String("second", demo.Second.Zip),
		zap.Int64("difference", demo.Difference),
	)

	return demo, nil
}

// QueryOptions describes the database a query runs against.
type QueryOptions struct {
	// Insert loads the fixed dataset.
	Insert bool
	// Overrides are written after the dataset, replacing existing zips.
	Overrides []protocol.Record
}

// Query looks up zips in a fresh database built from opts. The database is
// freed before returning.
func (a *App) Query(zips []string, opts QueryOptions) ([]protocol.QueryResult, error) {
	results := make([]protocol.QueryResult, 0, len(zips))
	err := a.withDatabase(opts, func(h uintptr, db *database.Database) error {
		for _, raw := range zips {
			zip := raw
			if normalized, ok := database.NormalizeZip(raw); ok {
				zip = normalized
			}

			_, found := db.Lookup(zip)
			results = append(results, protocol.QueryResult{
				Zip:        zip,
				Population: a.abi.Query(h, zip),
				Found:      found,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Records returns every record of a fresh database built from opts, sorted by zip.
func (a *App) Records(opts QueryOptions) ([]protocol.Record, error) {
	var records []protocol.Record
	err := a.withDatabase(opts, func(_ uintptr, db *database.Database) error {
		records = db.Records()
		return nil
	})
	return records, err
}

// withDatabase opens a database through the flat ABI, applies opts, runs fn
// and frees the database.
func (a *App) withDatabase(opts QueryOptions, fn func(h uintptr, db *database.Database) error) error {
	h := a.abi.New()
	if h == 0 {
		return fmt.Errorf("failed to allocate database")
	}
	defer a.abi.Free(h)

	if opts.Insert {
		a.abi.Insert(h)
	}

	db, ok := a.abi.Registry().Resolve(handle.Handle(h))
	if !ok {
		return fmt.Errorf("database handle %#x did not resolve", h)
	}

	for _, r := range opts.Overrides {
		zip, ok := database.NormalizeZip(r.Zip)
		if !ok {
			return fmt.Errorf("invalid zip code %q: want %d digits", r.Zip, database.ZipLength)
		}
		db.Put(zip, r.Population)
	}

	return fn(h, db)
}

// LoadGuests discovers guests under the configured paths.
func (a *App) LoadGuests(ctx context.Context) error {
	return a.guests.LoadAll(ctx)
}

// LoadGuestDir loads and registers the single guest in dir.
func (a *App) LoadGuestDir(ctx context.Context, dir string) (*guest.Guest, error) {
	g, err := a.guests.Loader().LoadGuest(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := a.guests.Register(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Guests returns the loaded guests sorted by name. A non-empty capability
// keeps only the guests granted it.
func (a *App) Guests(capability string) []*guest.Guest {
	if capability != "" {
		return a.guests.Registry().WithCapability(capability)
	}
	return a.guests.Registry().List()
}

// RunGuest calls a guest's entry point. A nil args uses the manifest's args.
func (a *App) RunGuest(ctx context.Context, name string, args []uint64) (*guest.RunResult, error) {
	return a.guests.Run(ctx, name, args)
}

// Close gracefully shuts down the app.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down zipdb")

	if err := a.guests.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to shutdown guest manager", zap.Error(err))
		return err
	}

	a.logger.Info("zipdb shutdown complete")
	return nil
}
