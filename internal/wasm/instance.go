package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/zipdb/api/wasm"
)

// InstanceManager creates and manages guest instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl

	hostOnce sync.Once
	hostErr  error
	mu       sync.Mutex
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string
}

// Instance represents an instantiated guest.
type Instance struct {
	module  api.Module
	manager *InstanceManager
	timeout time.Duration

	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	closeOnce sync.Once
}

// Instantiate creates a new instance from a compiled module.
// The env host module is instantiated on first use.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if err := m.ensureHostModule(ctx); err != nil {
		return nil, err
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = "inst-" + uuid.NewString()
	}

	// Count and register under one lock so MaxInstances holds under concurrency.
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.ActiveInstances() >= limit {
		return nil, &InstanceLimitError{Limit: limit}
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	// Reactor guests (Go -buildmode=c-shared, TinyGo) export _initialize
	// instead of _start. Missing start functions are skipped.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStdout(m.hostFuncs.Output()).
		WithStartFunctions("_initialize")

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		manager:   m,
		timeout:   m.runtime.config.ExecutionTimeout,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   m.cacheExportedFunctions(module),
	}

	m.runtime.StoreInstance(instanceID, instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// ensureHostModule instantiates the env module once per runtime.
func (m *InstanceManager) ensureHostModule(ctx context.Context) error {
	m.hostOnce.Do(func() {
		builder := m.hostFuncs.Export(m.runtime.runtime.NewHostModuleBuilder(apiwasm.ModuleEnv))
		if _, err := builder.Instantiate(ctx); err != nil {
			m.hostErr = fmt.Errorf("failed to instantiate host module: %w", err)
		}
	})
	return m.hostErr
}

// cacheExportedFunctions caches references to every exported function.
func (m *InstanceManager) cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)
	for name := range module.ExportedFunctionDefinitions() {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}
	return exports
}

// Call invokes an exported function, applying the runtime execution timeout.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}

	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	results, err := fn.Call(callCtx, params...)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Duration: i.timeout}
		}
		return nil, fmt.Errorf("call %s.%s: %w", i.Name, name, err)
	}
	return results, nil
}

// Close closes the instance, releases databases it left open and stops
// tracking it. Safe to call more than once.
func (i *Instance) Close(ctx context.Context) error {
	var err error
	i.closeOnce.Do(func() {
		err = i.module.Close(ctx)
		i.manager.hostFuncs.ReleaseInstance(i.module.Name())
		i.manager.runtime.DeleteInstance(i.ID)
	})
	return err
}
