package wasm

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/zipdb/api/wasm"
	"github.com/woxQAQ/zipdb/internal/abi"
	"github.com/woxQAQ/zipdb/internal/handle"
)

// HostFunctionsImpl implements the env module imported by guests.
type HostFunctionsImpl struct {
	logger *zap.Logger
	abi    *abi.ABI
	out    io.Writer

	// guestDebug keeps level 0 log_message calls; otherwise they are dropped.
	guestDebug bool

	// Handles opened by each guest instance, keyed by instance name.
	mu    sync.Mutex
	owned map[string]map[handle.Handle]struct{}
}

// HostOption configures HostFunctionsImpl.
type HostOption func(*HostFunctionsImpl)

// WithOutput sets where greetings passed to hello are written.
func WithOutput(w io.Writer) HostOption {
	return func(h *HostFunctionsImpl) {
		h.out = w
	}
}

// WithABI sets the database ABI used by the database_* imports.
func WithABI(a *abi.ABI) HostOption {
	return func(h *HostFunctionsImpl) {
		h.abi = a
	}
}

// WithGuestDebug keeps debug-level log_message calls from guests.
func WithGuestDebug(enabled bool) HostOption {
	return func(h *HostFunctionsImpl) {
		h.guestDebug = enabled
	}
}

// NewHostFunctions creates a new host functions implementation.
// Without options greetings are discarded and databases live in the
// process-wide registry.
func NewHostFunctions(logger *zap.Logger, opts ...HostOption) *HostFunctionsImpl {
	h := &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
		out:    io.Discard,
		owned:  make(map[string]map[handle.Handle]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.abi == nil {
		h.abi = abi.Default()
	}
	return h
}

// Output returns the greeting sink.
func (h *HostFunctionsImpl) Output() io.Writer {
	return h.out
}

// logit is called by guests to show they can reach the host.
// Signature: logit()
func (h *HostFunctionsImpl) logit(ctx context.Context, mod api.Module) {
	h.logger.Info("logit invoked by guest", zap.String("instance", mod.Name()))
}

// hello is called by guests with a UTF-8 greeting in their memory.
// Signature: hello(ptr, length)
func (h *HostFunctionsImpl) hello(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	msg, err := readGuestString(mod, "hello", ptr, length)
	if err != nil {
		h.logger.Error("Failed to read greeting from Wasm memory",
			zap.String("instance", mod.Name()),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("Guest greeting",
		zap.String("instance", mod.Name()),
		zap.String("message", msg),
	)

	if _, err := fmt.Fprintln(h.out, msg); err != nil {
		h.logger.Warn("Failed to write greeting", zap.Error(err))
	}
}

// logMessage is called by guests to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
// Debug messages are dropped unless WithGuestDebug is set.
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	if level == 0 && !h.guestDebug {
		return
	}

	msg, err := readGuestString(mod, "log_message", ptr, length)
	if err != nil {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	guest := zap.String("instance", mod.Name())
	switch level {
	case 0:
		h.logger.Debug(msg, guest)
	case 1:
		h.logger.Info(msg, guest)
	case 2:
		h.logger.Warn(msg, guest)
	case 3:
		h.logger.Error(msg, guest)
	default:
		h.logger.Info(msg, guest)
	}
}

// databaseNew opens a database owned by the calling instance.
// Signature: database_new() -> handle
func (h *HostFunctionsImpl) databaseNew(ctx context.Context, mod api.Module) uint32 {
	hd := h.abi.New()
	if hd != 0 {
		h.track(mod.Name(), handle.Handle(hd))
	}
	return uint32(hd)
}

// databaseFree releases a database. Freeing a handle the instance does not
// own traps the guest; the null handle is ignored.
// Signature: database_free(handle)
func (h *HostFunctionsImpl) databaseFree(ctx context.Context, mod api.Module, hd uint32) {
	if hd == 0 {
		return
	}
	h.mustOwn(mod.Name(), "database_free", hd)
	h.abi.Free(uintptr(hd))
	h.untrack(mod.Name(), handle.Handle(hd))
}

// databaseInsert populates the fixed dataset.
// Signature: database_insert(handle)
func (h *HostFunctionsImpl) databaseInsert(ctx context.Context, mod api.Module, hd uint32) {
	h.mustOwn(mod.Name(), "database_insert", hd)
	h.abi.Insert(uintptr(hd))
}

// databaseQuery looks up a zip code read from guest memory.
// Signature: database_query(handle, zip_ptr, zip_len) -> population
func (h *HostFunctionsImpl) databaseQuery(ctx context.Context, mod api.Module, hd uint32, ptr uint32, length uint32) uint32 {
	h.mustOwn(mod.Name(), "database_query", hd)
	zip, err := readGuestString(mod, "database_query", ptr, length)
	if err != nil {
		panic(&HostFunctionError{FunctionName: apiwasm.FuncDatabaseQuery, Err: err})
	}
	return h.abi.Query(uintptr(hd), zip)
}

// mustOwn traps the guest unless instance opened hd and has not freed it.
// Handles are only meaningful to the instance that opened them.
func (h *HostFunctionsImpl) mustOwn(instance, op string, hd uint32) {
	h.mu.Lock()
	_, ok := h.owned[instance][handle.Handle(hd)]
	h.mu.Unlock()

	if !ok {
		panic(&abi.ContractViolation{Operation: op, Handle: uintptr(hd)})
	}
}

func (h *HostFunctionsImpl) track(instance string, hd handle.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.owned[instance]
	if !ok {
		set = make(map[handle.Handle]struct{})
		h.owned[instance] = set
	}
	set[hd] = struct{}{}
}

func (h *HostFunctionsImpl) untrack(instance string, hd handle.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.owned[instance]; ok {
		delete(set, hd)
	}
}

// OwnedHandles returns how many databases instance still holds.
func (h *HostFunctionsImpl) OwnedHandles(instance string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.owned[instance])
}

// ReleaseInstance frees every database instance left open and returns how
// many were released.
func (h *HostFunctionsImpl) ReleaseInstance(instance string) int {
	h.mu.Lock()
	set := h.owned[instance]
	delete(h.owned, instance)
	h.mu.Unlock()

	released := 0
	for hd := range set {
		if h.abi.Registry().Release(hd) {
			released++
		}
	}

	if released > 0 {
		h.logger.Warn("Released databases leaked by guest",
			zap.String("instance", instance),
			zap.Int("count", released),
		)
	}
	return released
}

// Export registers every env function on builder.
func (h *HostFunctionsImpl) Export(builder wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	return builder.
		NewFunctionBuilder().
		WithFunc(h.logit).
		Export(apiwasm.FuncLogit).
		NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(apiwasm.FuncLogMessage).
		NewFunctionBuilder().
		WithFunc(h.hello).
		WithParameterNames("ptr", "length").
		Export(apiwasm.FuncHello).
		NewFunctionBuilder().
		WithFunc(h.databaseNew).
		WithResultNames("handle").
		Export(apiwasm.FuncDatabaseNew).
		NewFunctionBuilder().
		WithFunc(h.databaseFree).
		WithParameterNames("handle").
		Export(apiwasm.FuncDatabaseFree).
		NewFunctionBuilder().
		WithFunc(h.databaseInsert).
		WithParameterNames("handle").
		Export(apiwasm.FuncDatabaseInsert).
		NewFunctionBuilder().
		WithFunc(h.databaseQuery).
		WithParameterNames("handle", "zip_ptr", "zip_len").
		WithResultNames("population").
		Export(apiwasm.FuncDatabaseQuery)
}

func readGuestString(mod api.Module, op string, ptr, length uint32) (string, error) {
	return NewMemory(mod).ReadString(op, ptr, length)
}
