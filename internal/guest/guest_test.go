package guest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/wasm-runtime/wat"
)

// helloGuest calls env.logit, then hands "Hello world: <x+1>" to env.hello.
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

// deltaGuest returns population(10852) - population(10186) from a fresh database.
const deltaGuest = `(module
  (import "env" "database_new" (func $new (result i32)))
  (import "env" "database_free" (func $free (param i32)))
  (import "env" "database_insert" (func $insert (param i32)))
  (import "env" "database_query" (func $query (param i32 i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "10186")
  (data (i32.const 8) "10852")
  (func (export "delta") (result i32)
    (local $h i32)
    (local $a i32)
    (local $b i32)
    (local.set $h (call $new))
    (call $insert (local.get $h))
    (local.set $a (call $query (local.get $h) (i32.const 0) (i32.const 5)))
    (local.set $b (call $query (local.get $h) (i32.const 8) (i32.const 5)))
    (call $free (local.get $h))
    (i32.sub (local.get $b) (local.get $a))))`

// leakGuest opens a database and returns its handle without freeing it.
const leakGuest = `(module
  (import "env" "database_new" (func $new (result i32)))
  (memory (export "memory") 1)
  (func (export "leak") (result i32)
    (call $new)))`

const leakManifest = `name: leak
version: 0.1.0
wasm:
  file: leak.wasm
entry: leak
capabilities:
  - database
`

const helloManifest = `name: hello
version: 1.0.0
description: greets the host
wasm:
  file: hello.wasm
capabilities:
  - logging
  - greeting
`

const deltaManifest = `name: delta
version: 0.1.0
wasm:
  file: delta.wasm
entry: delta
capabilities:
  - database
`

// writeGuest compiles source into dir/<wasmFile> and writes manifest next to it.
func writeGuest(t *testing.T, dir, manifest, wasmFile, source string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create guest dir: %v", err)
	}

	if source != "" {
		bin, err := wat.Compile(source)
		if err != nil {
			t.Fatalf("Failed to compile WAT: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, wasmFile), bin, 0o644); err != nil {
			t.Fatalf("Failed to write wasm: %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return dir
}

func TestGuest_HasCapability(t *testing.T) {
	g := &Guest{Manifest: &Manifest{
		Name:         "hello",
		Version:      "1.0.0",
		Capabilities: []string{"logging", "greeting"},
	}}

	if g.Name() != "hello" || g.Version() != "1.0.0" {
		t.Errorf("unexpected identity %s@%s", g.Name(), g.Version())
	}
	if !g.HasCapability("greeting") {
		t.Error("expected greeting capability")
	}
	if g.HasCapability("database") {
		t.Error("did not expect database capability")
	}
	if len(g.Capabilities()) != 2 {
		t.Errorf("expected 2 capabilities, got %d", len(g.Capabilities()))
	}
}
