package guest

import (
	"fmt"
)

// ManifestNotFoundError is returned for a guest directory without manifest.yaml.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("no guest manifest at %s: %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError is returned when manifest.yaml is not valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("guest manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError names the manifest field that is missing or wrong.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("guest manifest %s: %s: %s", e.Path, e.Field, e.Message)
	}
	return fmt.Sprintf("guest manifest %s: %s", e.Path, e.Message)
}

// WasmNotFoundError is returned when wasm.file does not exist next to the manifest.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("guest manifest %s: wasm.file %s does not exist", e.ManifestPath, e.WasmFile)
}

// GuestLoadError wraps a compile or import-check failure for a named guest.
type GuestLoadError struct {
	GuestName string
	Err       error
}

func (e *GuestLoadError) Error() string {
	return fmt.Sprintf("load guest %s: %v", e.GuestName, e.Err)
}

func (e *GuestLoadError) Unwrap() error {
	return e.Err
}

// GuestNotFoundError is returned for a name no loaded guest carries.
type GuestNotFoundError struct {
	GuestName string
}

func (e *GuestNotFoundError) Error() string {
	return fmt.Sprintf("no guest named %s (see zipdb guest list)", e.GuestName)
}

// GuestAlreadyRegisteredError is returned when two manifests share a name.
type GuestAlreadyRegisteredError struct {
	GuestName string
}

func (e *GuestAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("guest name %s is used by more than one manifest", e.GuestName)
}

// NoGuestsFoundError is returned when guest_paths yield no loadable guest.
type NoGuestsFoundError struct {
	Paths []string
}

func (e *NoGuestsFoundError) Error() string {
	return fmt.Sprintf("no guests under guest_paths %v", e.Paths)
}
