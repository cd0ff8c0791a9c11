// Package database is the embedded zip code to population store behind the
// database_* handle interface.
//
// A Database is owned by exactly one caller at a time and is not safe for
// concurrent use. Callers sharing a Database across goroutines must serialize
// access themselves.
package database

import (
	"fmt"
	"sort"

	"github.com/woxQAQ/zipdb/pkg/protocol"
)

const (
	// ZipLength is the number of digits in a zip code.
	ZipLength = 5

	// DatasetSize is the number of records Insert populates: every zip code
	// from 00000 through 99999.
	DatasetSize = 100000
)

// Database maps zip codes to population counts.
type Database struct {
	data map[string]uint32
}

// New returns an empty database.
func New() *Database {
	return &Database{
		data: make(map[string]uint32),
	}
}

// Insert populates the fixed demonstration dataset. Zip code %05d(i) gets
// population i. Calling Insert again rewrites the same values.
func (db *Database) Insert() {
	for i := 0; i < DatasetSize; i++ {
		db.data[FormatZip(uint32(i))] = uint32(i)
	}
}

// Put stores a single record.
func (db *Database) Put(zip string, population uint32) {
	db.data[zip] = population
}

// Query returns the population for zip, or 0 if zip is absent.
func (db *Database) Query(zip string) uint32 {
	return db.data[zip]
}

// Lookup is like Query but also reports whether zip is present.
func (db *Database) Lookup(zip string) (uint32, bool) {
	population, ok := db.data[zip]
	return population, ok
}

// Len returns the number of stored records.
func (db *Database) Len() int {
	return len(db.data)
}

// Records returns all records sorted by zip code.
func (db *Database) Records() []protocol.Record {
	records := make([]protocol.Record, 0, len(db.data))
	for zip, population := range db.data {
		records = append(records, protocol.Record{Zip: zip, Population: population})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Zip < records[j].Zip
	})
	return records
}

// Reset drops every record. The registry calls it when a handle is freed.
func (db *Database) Reset() {
	clear(db.data)
}

// FormatZip renders n as a zero-padded five-digit zip code.
func FormatZip(n uint32) string {
	return fmt.Sprintf("%05d", n)
}

// NormalizeZip trims surrounding whitespace and reports whether s is a
// well-formed zip code. Query does not call it: malformed keys are simply absent.
func NormalizeZip(s string) (string, bool) {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	s = s[start:end]

	if len(s) != ZipLength {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	return s, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
