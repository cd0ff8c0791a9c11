//go:build !wasm

package wasm

// Host-side description of the env import module every guest links against.
//
// Handles and pointers are i32: Wasm uses a 32-bit linear memory model and
// database handles are 32-bit registry indices.
// See: https://github.com/golang/go/issues/59156

// ModuleEnv is the import module name guests use for host functions.
const ModuleEnv = "env"

// ModuleWASI is the WASI preview1 import module, always allowed.
const ModuleWASI = "wasi_snapshot_preview1"

// Host function names exported under ModuleEnv.
const (
	// logit()
	FuncLogit = "logit"
	// log_message(level, ptr, len) with level 0 = debug, 1 = info, 2 = warn, 3 = error
	FuncLogMessage = "log_message"
	// hello(ptr, len): UTF-8 greeting shown to the user
	FuncHello = "hello"
	// database_new() -> handle
	FuncDatabaseNew = "database_new"
	// database_free(handle)
	FuncDatabaseFree = "database_free"
	// database_insert(handle)
	FuncDatabaseInsert = "database_insert"
	// database_query(handle, zip_ptr, zip_len) -> population
	FuncDatabaseQuery = "database_query"
)

// Capabilities a guest manifest may request.
const (
	CapabilityLogging  = "logging"
	CapabilityGreeting = "greeting"
	CapabilityDatabase = "database"
)

// CapabilityImports maps each capability to the env functions it grants.
var CapabilityImports = map[string][]string{
	CapabilityLogging:  {FuncLogit, FuncLogMessage},
	CapabilityGreeting: {FuncHello},
	CapabilityDatabase: {FuncDatabaseNew, FuncDatabaseFree, FuncDatabaseInsert, FuncDatabaseQuery},
}

// ImportsFor returns the env functions granted by caps. Unknown capabilities
// grant nothing.
func ImportsFor(caps []string) []string {
	var names []string
	for _, c := range caps {
		names = append(names, CapabilityImports[c]...)
	}
	return names
}

// IsCapability reports whether name is a known capability.
func IsCapability(name string) bool {
	_, ok := CapabilityImports[name]
	return ok
}
