// Command libzipdb builds the C shared library exposing the database_* calling
// convention:
//
//	go build -buildmode=c-shared -o libzipdb.so ./cmd/libzipdb
//
// The generated libzipdb.h declares:
//
//	uintptr_t database_new(void);
//	void      database_free(uintptr_t);
//	void      database_insert(uintptr_t);
//	uint32_t  database_query(uintptr_t, const char *zip);
//
// A handle is owned by the caller from database_new until database_free and
// must be released exactly once. Handles are not thread-safe.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	uint32_t x;
	uint32_t y;
} tuple_t;
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/woxQAQ/zipdb/internal/abi"
)

func main() {}

//export database_new
func database_new() C.uintptr_t {
	return C.uintptr_t(abi.DatabaseNew())
}

//export database_free
func database_free(h C.uintptr_t) {
	abi.DatabaseFree(uintptr(h))
}

//export database_insert
func database_insert(h C.uintptr_t) {
	abi.DatabaseInsert(uintptr(h))
}

//export database_query
func database_query(h C.uintptr_t, zip *C.char) C.uint32_t {
	if zip == nil {
		panic(&abi.ContractViolation{Operation: "database_query", Handle: uintptr(h)})
	}
	return C.uint32_t(abi.DatabaseQuery(uintptr(h), C.GoString(zip)))
}

//export sum_of_even
func sum_of_even(numbers *C.uint32_t, length C.size_t) C.uint32_t {
	if length == 0 {
		return 0
	}
	if numbers == nil {
		panic("sum_of_even: null array")
	}
	s := unsafe.Slice((*uint32)(unsafe.Pointer(numbers)), int(length))
	return C.uint32_t(abi.SumOfEven(s))
}

//export hm_chars
func hm_chars(s *C.char) C.uint32_t {
	if s == nil {
		panic("hm_chars: null string")
	}
	return C.uint32_t(abi.CharCount(C.GoString(s)))
}

// batman_song returns a C string allocated with malloc; release it with free_song.
//
//export batman_song
func batman_song(length C.uint8_t) *C.char {
	return C.CString(abi.BatmanSong(uint8(length)))
}

//export free_song
func free_song(s *C.char) {
	if s == nil {
		return
	}
	C.free(unsafe.Pointer(s))
}

//export flip_things_around
func flip_things_around(tup C.tuple_t) C.tuple_t {
	p := abi.FlipThingsAround(abi.Pair{X: uint32(tup.x), Y: uint32(tup.y)})
	return C.tuple_t{x: C.uint32_t(p.X), y: C.uint32_t(p.Y)}
}

//export print_hello
func print_hello() {
	fmt.Println("Hello from Go")
}
