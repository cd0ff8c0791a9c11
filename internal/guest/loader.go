package guest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/woxQAQ/zipdb/internal/wasm"
)

// Loader loads guests from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new guest loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "guest-loader")),
	}
}

// LoadGuest loads the guest in dir: manifest, compilation and import check.
func (l *Loader) LoadGuest(ctx context.Context, dir string) (*Guest, error) {
	l.logger.Debug("Loading guest", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading guest",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Strings("capabilities", manifest.Capabilities),
	)

	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.WasmPath())
	if err != nil {
		return nil, &GuestLoadError{
			GuestName: manifest.Name,
			Err:       err,
		}
	}

	if !compiled.HasExport(manifest.Entry) {
		return nil, &GuestLoadError{
			GuestName: manifest.Name,
			Err: &wasm.FunctionNotFoundError{
				ModuleName:   compiled.Name,
				FunctionName: manifest.Entry,
			},
		}
	}

	if err := wasm.CheckImports(compiled, manifest.Imports()); err != nil {
		return nil, &GuestLoadError{
			GuestName: manifest.Name,
			Err:       err,
		}
	}

	guest := &Guest{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Guest loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return guest, nil
}

// DiscoverGuests loads every subdirectory of paths as a guest, compiling them
// concurrently. Directories that fail to load are logged and skipped.
func (l *Loader) DiscoverGuests(ctx context.Context, paths []string) ([]*Guest, error) {
	var dirs []string
	for _, basePath := range paths {
		l.logger.Debug("Scanning guest directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Guest path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(basePath, entry.Name()))
			}
		}
	}

	loaded := make([]*Guest, len(dirs))
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(goruntime.NumCPU())
	for i, dir := range dirs {
		g.Go(func() error {
			guest, err := l.LoadGuest(gctx, dir)
			if err != nil {
				l.logger.Error("Failed to load guest",
					zap.String("dir", dir),
					zap.Error(err),
				)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			loaded[i] = guest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var guests []*Guest
	for _, guest := range loaded {
		if guest != nil {
			guests = append(guests, guest)
		}
	}

	if len(guests) > 0 && len(errs) > 0 {
		l.logger.Warn("Some guests failed to load",
			zap.Int("loaded", len(guests)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(guests) == 0 {
		return nil, &NoGuestsFoundError{Paths: paths}
	}

	return guests, nil
}
