package ngramfst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitWriter(t *testing.T) {
	// pseudo root 10, runs of 3, 0, 2 -> 10 1110 0 110
	w := newBitWriter(10)
	w.WriteOnes(1)
	w.WriteZero()
	w.WriteRun(3)
	w.WriteRun(0)
	w.WriteRun(2)

	assert.Equal(t, 10, w.Tell())
	assert.Equal(t, []uint64{0b0110011101}, w.words)
}

func TestBitWriterAcrossWords(t *testing.T) {
	w := newBitWriter(130)
	w.WriteZero()
	w.WriteOnes(128)
	w.WriteZero()

	assert.Equal(t, 130, w.Tell())
	assert.Equal(t, []uint64{^uint64(1), ^uint64(0), 1}, w.words)
}
