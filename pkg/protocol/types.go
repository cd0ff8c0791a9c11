package protocol

// Shared record types for zipdb.
// These are the shapes printed by the CLI and returned to Go callers;
// the flat database_* boundary never carries them.

// ZipCode is a five-digit postal code used as a lookup key.
type ZipCode = string

// Population is the population count stored for a zip code.
type Population = uint32

// Record is a single (zip code, population) pair.
type Record struct {
	Zip        ZipCode    `json:"zip"`
	Population Population `json:"population"`
}

// QueryResult is the outcome of looking up one zip code.
type QueryResult struct {
	Zip        ZipCode    `json:"zip"`
	Population Population `json:"population"`
	Found      bool       `json:"found"`
}

// DemoResult is the output of the population-difference demonstration.
type DemoResult struct {
	First      QueryResult `json:"first"`
	Second     QueryResult `json:"second"`
	Difference int64       `json:"difference"`
}

// NewDemoResult builds a DemoResult with Difference = second - first.
func NewDemoResult(first, second QueryResult) DemoResult {
	return DemoResult{
		First:      first,
		Second:     second,
		Difference: int64(second.Population) - int64(first.Population),
	}
}
