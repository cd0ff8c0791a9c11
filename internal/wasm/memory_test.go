package wasm

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestMemoryReadString(t *testing.T) {
	h := newTestHost(t, zaptest.NewLogger(t), nil)
	mem := NewMemory(h.instantiate(t, "memory", memoryGuest).module)

	s, err := mem.ReadString("database_query", 16, 5)
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if s != "10186" {
		t.Errorf("ReadString() = %q, want %q", s, "10186")
	}
}

func TestMemoryReadOutOfRange(t *testing.T) {
	h := newTestHost(t, zaptest.NewLogger(t), nil)
	mem := NewMemory(h.instantiate(t, "memory", memoryGuest).module)

	_, err := mem.ReadString("hello", 65530, 32)

	var memErr *MemoryAccessError
	if !errors.As(err, &memErr) {
		t.Fatalf("expected MemoryAccessError, got %v", err)
	}
	if memErr.Operation != "hello" || memErr.Address != 65530 {
		t.Errorf("unexpected error fields: %+v", memErr)
	}

	if _, ok := mem.ReadBytes(65535, 2); ok {
		t.Error("ReadBytes past the end should fail")
	}
}

func TestMemoryReadBytesCopies(t *testing.T) {
	h := newTestHost(t, zaptest.NewLogger(t), nil)
	mem := NewMemory(h.instantiate(t, "memory", memoryGuest).module)

	data, ok := mem.ReadBytes(16, 5)
	if !ok {
		t.Fatal("ReadBytes failed")
	}
	data[0] = '9'

	again, _ := mem.ReadBytes(16, 5)
	if string(again) != "10186" {
		t.Errorf("guest memory changed through a copy: %q", again)
	}
}
