package guest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/zipdb/internal/wasm"
)

// Manager manages guest discovery and execution.
type Manager struct {
	paths       []string
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	hostFuncs   *wasm.HostFunctionsImpl
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// RunResult describes one guest invocation.
type RunResult struct {
	Guest      string
	InstanceID string
	Entry      string
	Args       []uint64
	Results    []uint64
	Duration   time.Duration
	// OpenHandles counts databases the entry left open; closing the
	// instance releases them.
	OpenHandles int
}

// NewManager creates a guest manager scanning paths.
func NewManager(
	paths []string,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		paths:       paths,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, hostFuncs, logger),
		hostFuncs:   hostFuncs,
		logger:      logger.With(zap.String("component", "guest-manager")),
	}
}

// LoadAll discovers and registers every guest under the configured paths.
// Finding no guests is not an error.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("guests already loaded")
	}

	m.logger.Info("Loading guests", zap.Strings("paths", m.paths))

	guests, err := m.loader.DiscoverGuests(ctx, m.paths)
	if err != nil {
		var none *NoGuestsFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No guests found in configured paths",
				zap.Strings("paths", m.paths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, guest := range guests {
		if err := m.registry.Register(guest); err != nil {
			m.logger.Error("Failed to register guest",
				zap.String("name", guest.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Guests loaded successfully", zap.Int("count", m.registry.Count()))

	return nil
}

// Register adds an already loaded guest, e.g. one loaded from a single directory.
func (m *Manager) Register(guest *Guest) error {
	return m.registry.Register(guest)
}

// Loader returns the guest loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// GetGuest retrieves a guest by name.
func (m *Manager) GetGuest(name string) (*Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	guest, ok := m.registry.Get(name)
	if !ok {
		return nil, &GuestNotFoundError{GuestName: name}
	}

	return guest, nil
}

// Instantiate creates a new instance of a guest. The caller closes it.
func (m *Manager) Instantiate(ctx context.Context, name string) (*wasm.Instance, error) {
	guest, err := m.GetGuest(name)
	if err != nil {
		return nil, err
	}

	return m.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: guest.Compiled.Name,
	})
}

// Run instantiates a guest, calls its entry point and closes the instance.
// A nil args uses the manifest's args.
func (m *Manager) Run(ctx context.Context, name string, args []uint64) (*RunResult, error) {
	guest, err := m.GetGuest(name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = guest.Manifest.Args
	}

	instance, err := m.Instantiate(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := instance.Close(ctx); err != nil {
			m.logger.Warn("Failed to close guest instance",
				zap.String("instance_id", instance.ID),
				zap.Error(err),
			)
		}
	}()

	start := time.Now()
	results, err := instance.Call(ctx, guest.Manifest.Entry, args...)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Guest:       name,
		InstanceID:  instance.ID,
		Entry:       guest.Manifest.Entry,
		Args:        args,
		Results:     results,
		Duration:    time.Since(start),
		OpenHandles: m.hostFuncs.OwnedHandles(instance.ID),
	}

	if result.OpenHandles > 0 {
		m.logger.Warn("Guest returned with open databases",
			zap.String("name", name),
			zap.Int("open_handles", result.OpenHandles),
		)
	}

	m.logger.Info("Guest run complete",
		zap.String("name", name),
		zap.String("entry", result.Entry),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// Shutdown closes the runtime, which closes any open instances.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down guest manager")

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Guest manager shutdown complete")
	return nil
}

// Registry returns the guest registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether guests have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
