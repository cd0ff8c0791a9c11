package abi

import (
	"strings"
	"unicode/utf8"
)

// The functions below back the extra demonstration exports of libzipdb.

// SumOfEven returns the sum of the even elements of numbers, wrapping on overflow.
func SumOfEven(numbers []uint32) uint32 {
	var sum uint32
	for _, n := range numbers {
		if n%2 == 0 {
			sum += n
		}
	}
	return sum
}

// CharCount returns the number of code points in s. Each invalid UTF-8 byte
// counts as one.
func CharCount(s string) uint32 {
	return uint32(utf8.RuneCountInString(s))
}

// BatmanSong returns "boom " followed by n "nana " and "Batman! boom".
func BatmanSong(n uint8) string {
	var b strings.Builder
	b.WriteString("boom ")
	b.WriteString(strings.Repeat("nana ", int(n)))
	b.WriteString("Batman! boom")
	return b.String()
}

// Pair mirrors the two-field tuple_t struct of the C header.
type Pair struct {
	X uint32
	Y uint32
}

// FlipThingsAround returns (y+1, x-1) with uint32 wrap-around.
func FlipThingsAround(p Pair) Pair {
	return Pair{X: p.Y + 1, Y: p.X - 1}
}
