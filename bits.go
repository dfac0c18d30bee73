package ngramfst

import (
	"github.com/milden6/ngramfst/bitindex"
)

// bitWriter appends bits to a preallocated word slice.
type bitWriter struct {
	words []uint64
	used  int
}

func newBitWriter(nbits int) *bitWriter {
	return &bitWriter{words: make([]uint64, bitindex.StorageWords(nbits))}
}

// WriteOnes appends n set bits.
func (w *bitWriter) WriteOnes(n int) {
	for ; n > 0; n-- {
		bitindex.Set(w.words, w.used)
		w.used++
	}
}

// WriteZero appends one unset bit, the end-of-run marker.
func (w *bitWriter) WriteZero() {
	w.used++
}

// WriteRun appends a run of n set bits terminated by a zero.
func (w *bitWriter) WriteRun(n int) {
	w.WriteOnes(n)
	w.WriteZero()
}

// Set sets bit i without moving the write position.
func (w *bitWriter) Set(i int) {
	bitindex.Set(w.words, i)
}

// Tell returns the number of bits written so far.
func (w *bitWriter) Tell() int {
	return w.used
}
