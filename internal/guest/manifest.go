package guest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apiwasm "github.com/woxQAQ/zipdb/api/wasm"
)

// ManifestFile is the file name looked up in each guest directory.
const ManifestFile = "manifest.yaml"

// DefaultEntry is the export called when a manifest names none.
const DefaultEntry = "add_one"

// DefaultArg is passed to DefaultEntry when a manifest gives no args.
const DefaultArg = 41

// Manifest is the guest manifest.yaml structure.
type Manifest struct {
	Name         string     `yaml:"name"`
	Version      string     `yaml:"version"`
	Description  string     `yaml:"description"`
	Wasm         WasmConfig `yaml:"wasm"`
	Entry        string     `yaml:"entry"`
	Args         []uint64   `yaml:"args"`
	Capabilities []string   `yaml:"capabilities"`
	Author       string     `yaml:"author"`
	License      string     `yaml:"license"`

	dir string
}

// WasmConfig locates the guest binary.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ParseManifest reads, defaults and validates manifest.yaml in dir.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Entry == "" {
		m.Entry = DefaultEntry
		if m.Args == nil {
			m.Args = []uint64{DefaultArg}
		}
	}
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}
	if strings.ContainsAny(m.Name, " \t/\\") {
		return m.invalid("name", fmt.Sprintf("name %q must not contain whitespace or path separators", m.Name))
	}

	if m.Version == "" {
		return m.invalid("version", "version is required")
	}

	if m.Wasm.File == "" {
		return m.invalid("wasm.file", "wasm.file is required")
	}

	if len(m.Capabilities) == 0 {
		return m.invalid("capabilities", "at least one capability is required")
	}

	for _, c := range m.Capabilities {
		if !apiwasm.IsCapability(c) {
			return m.invalid("capabilities", fmt.Sprintf("unknown capability: %s (must be one of: %s, %s, %s)",
				c, apiwasm.CapabilityLogging, apiwasm.CapabilityGreeting, apiwasm.CapabilityDatabase))
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

func (m *Manifest) invalid(field, msg string) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: msg,
	}
}

// Imports returns the env functions granted by the manifest's capabilities.
func (m *Manifest) Imports() []string {
	return apiwasm.ImportsFor(m.Capabilities)
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the .wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
