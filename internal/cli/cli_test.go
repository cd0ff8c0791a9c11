package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasm-runtime/wat"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/zipdb/pkg/protocol"
)

const helloGuest = `(module
  (import "env" "logit" (func $logit))
  (import "env" "hello" (func $hello (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "Hello world: 42")
  (func (export "add_one") (param $x i32)
    (call $logit)
    (call $hello (i32.const 0) (i32.const 15))))`

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd(WithLogger(zaptest.NewLogger(t)))
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// writeGuestTree creates a guest path holding one hello guest and a config
// file pointing at it.
func writeGuestTree(t *testing.T) (configPath, guestDir string) {
	t.Helper()
	root := t.TempDir()
	guestDir = filepath.Join(root, "guests", "hello")
	if err := os.MkdirAll(guestDir, 0o755); err != nil {
		t.Fatal(err)
	}

	bin, err := wat.Compile(helloGuest)
	if err != nil {
		t.Fatalf("Failed to compile WAT: %v", err)
	}
	if err := os.WriteFile(filepath.Join(guestDir, "hello.wasm"), bin, 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := "name: hello\nversion: 1.0.0\ndescription: says hello\nwasm:\n  file: hello.wasm\ncapabilities: [logging, greeting]\n"
	if err := os.WriteFile(filepath.Join(guestDir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	configPath = filepath.Join(root, "zipdb.yaml")
	cfg := "guest_paths:\n  - " + filepath.Join(root, "guests") + "\nwasm:\n  wasi: false\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, guestDir
}

func TestDemoCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "default zips", args: []string{"demo"}, want: "666\n"},
		{name: "flag override", args: []string{"demo", "--zips", "00042,00100"}, want: "58\n"},
		{name: "negative difference", args: []string{"demo", "--zips", "10852,10186"}, want: "-666\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestDemoCommandJSON(t *testing.T) {
	out, err := run(t, "demo", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var demo protocol.DemoResult
	if err := json.Unmarshal([]byte(out), &demo); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if demo.Difference != 666 || demo.Second.Population != 10852 {
		t.Errorf("unexpected demo result %+v", demo)
	}
}

func TestDemoCommandEnvOverride(t *testing.T) {
	t.Setenv("ZIPDB_DEMO_ZIPS", "00001,00011")

	out, err := run(t, "demo")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "10\n" {
		t.Errorf("output = %q, want %q", out, "10\n")
	}
}

func TestQueryCommand(t *testing.T) {
	out, err := run(t, "query", "10186", "10852", "nope")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"ZIP", "POPULATION", "10186", "10852", "nope", "3 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestQueryCommandJSON(t *testing.T) {
	out, err := run(t, "query", "--json", "00042", "abc")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var results []protocol.QueryResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Found || results[0].Population != 42 {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].Found || results[1].Population != 0 {
		t.Errorf("unexpected second result %+v", results[1])
	}
}

func TestQueryCommandEmpty(t *testing.T) {
	out, err := run(t, "query", "--json", "--empty", "10186")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var results []protocol.QueryResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if results[0].Found || results[0].Population != 0 {
		t.Errorf("expected an empty database, got %+v", results[0])
	}
}

func TestQueryCommandRequiresZip(t *testing.T) {
	if _, err := run(t, "query"); err == nil {
		t.Error("expected an error without zips")
	}
	if _, err := run(t, "query", "--all", "10186"); err == nil {
		t.Error("expected an error for --all with zips")
	}
}

func TestQueryCommandSet(t *testing.T) {
	out, err := run(t, "query", "--json", "--set", "10186=7", "--set", "00042=9", "10186", "00042")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var results []protocol.QueryResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(results) != 2 || results[0].Population != 7 || results[1].Population != 9 {
		t.Errorf("expected overridden populations, got %+v", results)
	}
}

func TestQueryCommandSetInvalid(t *testing.T) {
	for _, set := range []string{"10186", "10186=x", "10186=-1", "123456=1"} {
		if _, err := run(t, "query", "--set", set, "10186"); err == nil {
			t.Errorf("expected an error for --set %q", set)
		}
	}
}

func TestQueryCommandAll(t *testing.T) {
	out, err := run(t, "query", "--all", "--empty", "--set", "00501=12", "--set", "10186=3")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"ZIP", "POPULATION", "00501", "10186", "2 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
	if strings.Index(out, "00501") > strings.Index(out, "10186") {
		t.Errorf("records should be sorted by zip, got:\n%s", out)
	}
}

func TestQueryCommandAllJSON(t *testing.T) {
	out, err := run(t, "query", "--all", "--json", "--empty", "--set", "99999=1")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var records []protocol.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(records) != 1 || records[0].Zip != "99999" || records[0].Population != 1 {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "zipdb "+Version) {
		t.Errorf("output should contain version, got: %s", out)
	}
}

func TestGuestListCommand(t *testing.T) {
	configPath, _ := writeGuestTree(t)

	out, err := run(t, "--config", configPath, "guest", "list")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"NAME", "hello", "1.0.0", "add_one", "logging,greeting", "says hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestGuestListCommandCapability(t *testing.T) {
	configPath, _ := writeGuestTree(t)

	out, err := run(t, "--config", configPath, "guest", "list", "--capability", "greeting")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output should list hello, got:\n%s", out)
	}

	out, err = run(t, "--config", configPath, "guest", "list", "--capability", "database")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "(0 guests)\n" {
		t.Errorf("output = %q", out)
	}
}

func TestGuestListCommandEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "zipdb.yaml")
	cfg := "guest_paths:\n  - " + t.TempDir() + "\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", configPath, "guest", "list")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "(0 guests)\n" {
		t.Errorf("output = %q", out)
	}
}

func TestGuestRunCommand(t *testing.T) {
	configPath, _ := writeGuestTree(t)

	out, err := run(t, "--config", configPath, "guest", "run", "hello")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "Hello world: 42\n" {
		t.Errorf("output = %q", out)
	}
}

func TestGuestRunCommandDir(t *testing.T) {
	_, guestDir := writeGuestTree(t)

	out, err := run(t, "guest", "run", "--dir", guestDir, "hello", "7")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Hello world: 42") {
		t.Errorf("output = %q", out)
	}
}

func TestGuestRunCommandWarnsOnOpenDatabases(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "leak")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	bin, err := wat.Compile(`(module
  (import "env" "database_new" (func $new (result i32)))
  (memory (export "memory") 1)
  (func (export "leak") (result i32)
    (call $new)))`)
	if err != nil {
		t.Fatalf("Failed to compile WAT: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leak.wasm"), bin, 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := "name: leak\nversion: 0.1.0\nwasm:\n  file: leak.wasm\nentry: leak\ncapabilities: [database]\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "guest", "run", "--dir", dir, "leak")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "warning: leak left 1 database(s) open") {
		t.Errorf("output = %q", out)
	}
}

func TestGuestRunCommandErrors(t *testing.T) {
	configPath, _ := writeGuestTree(t)

	if _, err := run(t, "--config", configPath, "guest", "run", "hello", "-x"); err == nil {
		t.Error("expected an error for a non-numeric argument")
	}
	if _, err := run(t, "--config", configPath, "guest", "run", "missing"); err == nil {
		t.Error("expected an error for an unknown guest")
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "demo")
	if err == nil || !strings.Contains(err.Error(), "failed to load configuration") {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestParseGuestArgs(t *testing.T) {
	params, err := parseGuestArgs(nil)
	if err != nil || params != nil {
		t.Errorf("expected nil params, got %v, %v", params, err)
	}

	params, err = parseGuestArgs([]string{"1", "41"})
	if err != nil {
		t.Fatalf("parseGuestArgs() error = %v", err)
	}
	if len(params) != 2 || params[1] != 41 {
		t.Errorf("unexpected params %v", params)
	}

	if _, err := parseGuestArgs([]string{"-1"}); err == nil {
		t.Error("expected an error for a negative argument")
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(level)
		if err != nil {
			t.Errorf("NewLogger(%q) error = %v", level, err)
			continue
		}
		_ = logger.Sync()
	}

	if _, err := NewLogger("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestRenderQueryTableFooter(t *testing.T) {
	buf := new(bytes.Buffer)
	renderQueryTable(buf, []protocol.QueryResult{{Zip: "10186", Population: 10186, Found: true}})

	out := buf.String()
	if !strings.Contains(out, "1 rows") {
		t.Errorf("footer should keep its case, got:\n%s", out)
	}
	if strings.Contains(out, "ROWS") {
		t.Errorf("footer should not be upper-cased, got:\n%s", out)
	}
}
