package wasm

import (
	"bytes"
	"context"
	"testing"

	"github.com/wippyai/wasm-runtime/wat"
	"go.uber.org/zap"

	"github.com/woxQAQ/zipdb/internal/abi"
	"github.com/woxQAQ/zipdb/internal/handle"
)

// helloGuest mirrors the classic add_one demo: it calls env.logit, then
// passes "Hello world: <x+1>" to env.hello.
const helloGuest = `(module
  (import "env" "logit" (func $logit))
  (import "env" "hello" (func $hello (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 100) "Hello world: ")
  (func (export "add_one") (param $x i32)
    (local $n i32)
    (local $p i32)
    (call $logit)
    (local.set $n (i32.add (local.get $x) (i32.const 1)))
    (local.set $p (i32.const 64))
    (loop $digits
      (local.set $p (i32.sub (local.get $p) (i32.const 1)))
      (i32.store8 (local.get $p)
        (i32.add (i32.const 48) (i32.rem_u (local.get $n) (i32.const 10))))
      (local.set $n (i32.div_u (local.get $n) (i32.const 10)))
      (br_if $digits (i32.ne (local.get $n) (i32.const 0))))
    (memory.copy (i32.const 113) (local.get $p) (i32.sub (i32.const 64) (local.get $p)))
    (call $hello (i32.const 100)
      (i32.add (i32.const 13) (i32.sub (i32.const 64) (local.get $p))))))`

// databaseGuest drives the database_* imports from inside the sandbox.
const databaseGuest = `(module
  (import "env" "database_new" (func $new (result i32)))
  (import "env" "database_free" (func $free (param i32)))
  (import "env" "database_insert" (func $insert (param i32)))
  (import "env" "database_query" (func $query (param i32 i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "10186")
  (data (i32.const 8) "10852")
  (func (export "population_delta") (result i32)
    (local $h i32)
    (local $a i32)
    (local $b i32)
    (local.set $h (call $new))
    (call $insert (local.get $h))
    (local.set $a (call $query (local.get $h) (i32.const 0) (i32.const 5)))
    (local.set $b (call $query (local.get $h) (i32.const 8) (i32.const 5)))
    (call $free (local.get $h))
    (i32.sub (local.get $b) (local.get $a)))
  (func (export "query_empty") (result i32)
    (local $h i32)
    (local $r i32)
    (local.set $h (call $new))
    (local.set $r (call $query (local.get $h) (i32.const 0) (i32.const 5)))
    (call $free (local.get $h))
    (local.get $r))
  (func (export "leak") (result i32)
    (call $new))
  (func (export "double_free")
    (local $h i32)
    (local.set $h (call $new))
    (call $free (local.get $h))
    (call $free (local.get $h)))
  (func (export "query_bad_pointer") (result i32)
    (call $query (call $new) (i32.const 65530) (i32.const 100)))
  (func (export "free_handle") (param $h i32)
    (call $free (local.get $h)))
  (func (export "insert_handle") (param $h i32)
    (call $insert (local.get $h)))
  (func (export "query_handle") (param $h i32) (result i32)
    (call $query (local.get $h) (i32.const 0) (i32.const 5))))`

// logGuest sends "guest says hi" through env.log_message at warn level.
const logGuest = `(module
  (import "env" "log_message" (func $log (param i32 i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "guest says hi")
  (func (export "run")
    (call $log (i32.const 2) (i32.const 0) (i32.const 13))))`

// debugLogGuest sends "guest trace" through env.log_message at debug level.
const debugLogGuest = `(module
  (import "env" "log_message" (func $log (param i32 i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "guest trace")
  (func (export "run")
    (call $log (i32.const 0) (i32.const 0) (i32.const 11))))`

// spinGuest never returns.
const spinGuest = `(module
  (func (export "spin")
    (loop $forever (br $forever))))`

// memoryGuest only exports memory with a string at offset 16.
const memoryGuest = `(module
  (memory (export "memory") 1)
  (data (i32.const 16) "10186"))`

type testHost struct {
	runtime  *Runtime
	loader   *ModuleLoader
	host     *HostFunctionsImpl
	manager  *InstanceManager
	registry *handle.Registry
	out      *bytes.Buffer
}

func newTestHost(t *testing.T, logger *zap.Logger, config *RuntimeConfig) *testHost {
	t.Helper()
	ctx := context.Background()

	if config == nil {
		config = DefaultRuntimeConfig()
		config.WASI = false
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { runtime.Close(ctx) })

	registry := handle.NewRegistry(logger)
	out := &bytes.Buffer{}
	host := NewHostFunctions(logger, WithOutput(out), WithABI(abi.New(registry)), WithGuestDebug(config.DebugEnabled))

	return &testHost{
		runtime:  runtime,
		loader:   NewModuleLoader(runtime, logger),
		host:     host,
		manager:  NewInstanceManager(runtime, host, logger),
		registry: registry,
		out:      out,
	}
}

func (h *testHost) instantiate(t *testing.T, name, source string) *Instance {
	t.Helper()
	ctx := context.Background()

	h.compile(t, name, source)

	instance, err := h.manager.Instantiate(ctx, &InstanceConfig{ModuleName: name})
	if err != nil {
		t.Fatalf("Failed to instantiate %s: %v", name, err)
	}
	t.Cleanup(func() { instance.Close(ctx) })
	return instance
}

func (h *testHost) compile(t *testing.T, name, source string) *CompiledModule {
	t.Helper()

	bin, err := wat.Compile(source)
	if err != nil {
		t.Fatalf("Failed to compile WAT for %s: %v", name, err)
	}

	compiled, err := h.loader.LoadModuleFromMemory(context.Background(), name, bin)
	if err != nil {
		t.Fatalf("Failed to load %s: %v", name, err)
	}
	return compiled
}
