package wasm

import (
	"fmt"

	apiwasm "github.com/woxQAQ/zipdb/api/wasm"
)

// CheckImports verifies that every function compiled imports is either WASI
// or an env function listed in allowed.
func CheckImports(compiled *CompiledModule, allowed []string) error {
	granted := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		granted[name] = true
	}

	for _, def := range compiled.Module.ImportedFunctions() {
		module, name, _ := def.Import()
		qualified := fmt.Sprintf("%s.%s", module, name)

		switch module {
		case apiwasm.ModuleWASI:
			continue
		case apiwasm.ModuleEnv:
			if !granted[name] {
				return &ImportError{
					ModuleName: compiled.Name,
					Import:     qualified,
					Reason:     "not granted by the guest's capabilities",
				}
			}
		default:
			return &ImportError{
				ModuleName: compiled.Name,
				Import:     qualified,
				Reason:     fmt.Sprintf("unknown import module (expected %s or %s)", apiwasm.ModuleEnv, apiwasm.ModuleWASI),
			}
		}
	}

	for _, def := range compiled.Module.ImportedMemories() {
		module, name, _ := def.Import()
		return &ImportError{
			ModuleName: compiled.Name,
			Import:     fmt.Sprintf("%s.%s", module, name),
			Reason:     "guests must define and export their own memory",
		}
	}

	return nil
}
