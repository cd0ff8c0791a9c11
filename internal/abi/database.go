// Package abi implements the flat database_* calling convention on top of the
// handle registry. Every operation has a fixed arity and only scalar or string
// arguments so that cgo exports and WASM host functions can forward to it
// directly.
//
// Nothing here returns an error. Absent keys resolve to 0. Misuse of a handle
// (null, freed, never issued) panics with *ContractViolation, which aborts the
// process when it reaches a cgo boundary and traps the guest under WASM.
package abi

import (
	"fmt"

	"github.com/woxQAQ/zipdb/internal/database"
	"github.com/woxQAQ/zipdb/internal/handle"
)

// ContractViolation reports a handle used outside its valid lifetime.
type ContractViolation struct {
	Operation string
	Handle    uintptr
}

func (e *ContractViolation) Error() string {
	if e.Handle == 0 {
		return fmt.Sprintf("%s: null database handle", e.Operation)
	}
	return fmt.Sprintf("%s: invalid database handle %#x (freed or never allocated)", e.Operation, e.Handle)
}

// ABI binds the database_* operations to a registry.
type ABI struct {
	registry *handle.Registry
}

// New returns an ABI over registry.
func New(registry *handle.Registry) *ABI {
	return &ABI{registry: registry}
}

// Registry returns the underlying registry.
func (a *ABI) Registry() *handle.Registry {
	return a.registry
}

// New allocates a database and returns its handle.
func (a *ABI) New() uintptr {
	return uintptr(a.registry.Open())
}

// Free releases the database behind h. A null handle is ignored.
// Freeing a handle twice panics.
func (a *ABI) Free(h uintptr) {
	if h == 0 {
		return
	}
	if !a.registry.Release(toHandle("database_free", h)) {
		panic(&ContractViolation{Operation: "database_free", Handle: h})
	}
}

// Insert populates the fixed dataset into the database behind h.
func (a *ABI) Insert(h uintptr) {
	a.mustResolve("database_insert", h).Insert()
}

// Query returns the population stored for zip, or 0 if absent.
func (a *ABI) Query(h uintptr, zip string) uint32 {
	return a.mustResolve("database_query", h).Query(zip)
}

func (a *ABI) mustResolve(op string, h uintptr) *database.Database {
	db, ok := a.registry.Resolve(toHandle(op, h))
	if !ok {
		panic(&ContractViolation{Operation: op, Handle: h})
	}
	return db
}

func toHandle(op string, h uintptr) handle.Handle {
	if uint64(h) > uint64(^uint32(0)) {
		panic(&ContractViolation{Operation: op, Handle: h})
	}
	return handle.Handle(h)
}

// Default returns the ABI over the process-wide registry.
func Default() *ABI {
	return New(handle.Default())
}

// DatabaseNew is database_new over the process-wide registry.
func DatabaseNew() uintptr {
	return Default().New()
}

// DatabaseFree is database_free over the process-wide registry.
func DatabaseFree(h uintptr) {
	Default().Free(h)
}

// DatabaseInsert is database_insert over the process-wide registry.
func DatabaseInsert(h uintptr) {
	Default().Insert(h)
}

// DatabaseQuery is database_query over the process-wide registry.
func DatabaseQuery(h uintptr, zip string) uint32 {
	return Default().Query(h, zip)
}
