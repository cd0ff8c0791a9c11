package wasm

import (
	"fmt"
	"time"
)

// CompilationError reports a guest binary wazero could not compile.
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile guest %s: %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError reports a compiled guest that failed to link or start.
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("start guest %s as %s: %v", e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError is returned when instantiating a guest that was never loaded.
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("guest %s is not loaded", e.ModuleName)
}

// FunctionNotFoundError is returned when calling a name the guest does not export.
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("guest %s exports no function %s", e.ModuleName, e.FunctionName)
}

// ImportError reports a guest import the env module does not grant it.
type ImportError struct {
	ModuleName string
	Import     string
	Reason     string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("guest %s imports %s: %s", e.ModuleName, e.Import, e.Reason)
}

// MemoryAccessError reports a pointer/length pair outside guest memory.
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	cause := "out of range"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return fmt.Sprintf("%s: guest memory [%d, +%d): %s", e.Operation, e.Address, e.Length, cause)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// HostFunctionError is panicked by an env function to trap the calling guest.
type HostFunctionError struct {
	FunctionName string
	Err          error
}

func (e *HostFunctionError) Error() string {
	return fmt.Sprintf("env.%s: %v", e.FunctionName, e.Err)
}

func (e *HostFunctionError) Unwrap() error {
	return e.Err
}

// InstanceLimitError is returned when wasm.max_instances guests are already running.
type InstanceLimitError struct {
	Limit int
}

func (e *InstanceLimitError) Error() string {
	return fmt.Sprintf("%d guest instances already running (wasm.max_instances)", e.Limit)
}

// TimeoutError is returned when a guest call outlives wasm.execution_timeout.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("guest call exceeded %v", e.Duration)
}
