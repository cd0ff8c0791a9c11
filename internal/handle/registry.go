// Package handle keeps the process-wide table of live databases addressed by
// opaque handles. A handle is what crosses a language boundary: C callers see
// it as a pointer-sized integer, WASM guests as an i32.
package handle

import (
	"sync"

	"github.com/wippyai/wasm-runtime/resource"
	"go.uber.org/zap"

	"github.com/woxQAQ/zipdb/internal/database"
)

// Handle is an opaque reference to a live database. Zero is the null handle.
type Handle = resource.Handle

// Null is the invalid handle.
const Null Handle = 0

const databaseTypeID uint32 = 1

// Registry owns databases between Open and Release.
//
// The registry guards its own table, so concurrent Open/Release calls are
// fine. The databases it hands out are not synchronized.
type Registry struct {
	table  *resource.UnifiedTable
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		table:  resource.NewTable(),
		logger: logger.With(zap.String("component", "handle-registry")),
	}
	r.table.Subscribe(r)
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry used by the flat ABI.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(zap.L())
	})
	return defaultRegistry
}

// Open allocates a new empty database and returns its handle.
// It returns Null only after the registry has been closed.
func (r *Registry) Open() Handle {
	return r.table.Insert(databaseTypeID, database.New())
}

// Resolve returns the database behind h.
func (r *Registry) Resolve(h Handle) (*database.Database, bool) {
	if h == Null {
		return nil, false
	}
	v, ok := r.table.GetTyped(h, databaseTypeID)
	if !ok {
		return nil, false
	}
	db, ok := v.(*database.Database)
	return db, ok
}

// Release frees the database behind h. It reports false when h is not live,
// which covers double release. The handle number may be reused by a later Open.
func (r *Registry) Release(h Handle) bool {
	if h == Null {
		return false
	}
	if _, ok := r.table.GetTyped(h, databaseTypeID); !ok {
		return false
	}
	v, ok := r.table.Remove(h)
	if !ok {
		return false
	}
	if db, ok := v.(*database.Database); ok {
		db.Reset()
	}
	return true
}

// Live returns the number of open handles.
func (r *Registry) Live() int {
	return r.table.Len()
}

// Close releases every open database. Open returns Null afterwards.
func (r *Registry) Close() error {
	r.table.Clear()
	return r.table.Close()
}

// OnResourceEvent implements resource.Observer.
func (r *Registry) OnResourceEvent(e resource.Event) {
	switch e.Type {
	case resource.EventCreated:
		r.logger.Debug("Database opened", zap.Uint32("handle", uint32(e.Handle)))
	case resource.EventDropped:
		r.logger.Debug("Database released", zap.Uint32("handle", uint32(e.Handle)))
	}
}
