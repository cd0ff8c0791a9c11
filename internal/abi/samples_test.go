package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumOfEven(t *testing.T) {
	assert.Equal(t, uint32(12), SumOfEven([]uint32{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, uint32(0), SumOfEven(nil))
	assert.Equal(t, uint32(0), SumOfEven([]uint32{1, 3, 5}))
}

func TestCharCount(t *testing.T) {
	assert.Equal(t, uint32(16), CharCount("The taÃ¶ of Rust"))
	assert.Equal(t, uint32(0), CharCount(""))
	assert.Equal(t, uint32(2), CharCount("\xff\xfe"))
}

func TestBatmanSong(t *testing.T) {
	assert.Equal(t, "boom nana nana nana nana nana Batman! boom", BatmanSong(5))
	assert.Equal(t, "boom Batman! boom", BatmanSong(0))
}

func TestFlipThingsAround(t *testing.T) {
	assert.Equal(t, Pair{X: 21, Y: 9}, FlipThingsAround(Pair{X: 10, Y: 20}))
	assert.Equal(t, Pair{X: 1, Y: ^uint32(0)}, FlipThingsAround(Pair{X: 0, Y: 0}))
}
