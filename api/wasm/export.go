//go:build wasm

package wasm

// This file documents the export interface for guests.
// Guests implement these functions with //go:wasmexport (Go 1.24+), or the
// equivalent #[no_mangle] pub extern "C" in other languages.
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model.
//
// The default entry point the host calls:
//
// //go:wasmexport add_one
// func addOne(x int32)
//
// A guest that greets calls env.logit and then env.hello with the UTF-8 text
// "Hello world: <x+1>". Guests must export their linear memory as "memory" so
// the host can read the greeting.
//
// Imports available under module "env" (granted per manifest capability):
//
// //go:wasmimport env logit
// func logit()
//
// //go:wasmimport env hello
// func hello(ptr, length uint32)
//
// //go:wasmimport env database_new
// func databaseNew() uint32
//
// //go:wasmimport env database_query
// func databaseQuery(handle, zipPtr, zipLen uint32) uint32
