package wasm

import (
	"bytes"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Memory wraps a guest's linear memory with bounds-checked reads.
//
// Guests own their memory; the host never allocates or writes inside it.
// Reads copy data out before the guest can change it again.
type Memory struct {
	name string
	mem  api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{name: module.Name(), mem: module.Memory()}
}

// ReadBytes copies length bytes starting at ptr.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	return bytes.Clone(buf), true
}

// ReadString reads the length bytes at ptr as a string on behalf of op.
func (m *Memory) ReadString(op string, ptr uint32, length uint32) (string, error) {
	if m.mem == nil {
		return "", &MemoryAccessError{Operation: op, Address: ptr, Length: length,
			Err: fmt.Errorf("guest %s exports no memory", m.name)}
	}
	buf, ok := m.ReadBytes(ptr, length)
	if !ok {
		return "", &MemoryAccessError{Operation: op, Address: ptr, Length: length}
	}
	return string(buf), nil
}
