package protocol

import (
	"encoding/json"
	"testing"
)

func TestRecordJSON(t *testing.T) {
	data, err := json.Marshal(Record{Zip: "10186", Population: 10186})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"zip":"10186","population":10186}`
	if string(data) != want {
		t.Errorf("JSON mismatch: got %s, want %s", data, want)
	}
}

func TestNewDemoResult(t *testing.T) {
	res := NewDemoResult(
		QueryResult{Zip: "10186", Population: 10186, Found: true},
		QueryResult{Zip: "10852", Population: 10852, Found: true},
	)

	if res.Difference != 666 {
		t.Errorf("Difference mismatch: got %d, want %d", res.Difference, 666)
	}
}

func TestNewDemoResultNegative(t *testing.T) {
	res := NewDemoResult(
		QueryResult{Zip: "10852", Population: 10852, Found: true},
		QueryResult{Zip: "99999", Population: 0},
	)

	if res.Difference != -10852 {
		t.Errorf("Difference mismatch: got %d, want %d", res.Difference, -10852)
	}
}
