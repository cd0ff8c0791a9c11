// Package guest discovers, validates and runs WebAssembly guests described by
// a manifest.yaml next to their .wasm file.
package guest

import (
	"time"

	"github.com/woxQAQ/zipdb/internal/wasm"
)

// Guest is a loaded guest with its manifest and compiled module.
type Guest struct {
	// Manifest is the parsed guest metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the guest was loaded
	LoadedAt time.Time
}

// Name returns the guest name.
func (g *Guest) Name() string {
	return g.Manifest.Name
}

// Version returns the guest version.
func (g *Guest) Version() string {
	return g.Manifest.Version
}

// Capabilities returns the host capabilities the guest was granted.
func (g *Guest) Capabilities() []string {
	return g.Manifest.Capabilities
}

// HasCapability reports whether the guest was granted capability.
func (g *Guest) HasCapability(capability string) bool {
	for _, c := range g.Manifest.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
