package ngramfst

import (
	"github.com/milden6/ngramfst/bitindex"
)

/* PAYLOAD FORMAT
All integers are little-endian.

- uint64: num_states
- uint64: num_futures
- uint64: num_final
- context bitmap, 2*num_states+1 bits, as ceil(bits/64) uint64 words:
	1 0 (pseudo-root), then for each state in breadth-first trie order
	one 1 per child context followed by a 0
- future bitmap, num_futures+num_states+1 bits:
	0, then for each state one 1 per future arc followed by a 0
- final bitmap, num_states bits: bit s is set iff state s is final
- int32 x (num_states+1): context label of each trie node (node 0 is the
	pseudo-root and holds NoLabel)
- int32 x num_futures: future arc labels, sorted within each state
- padding to a 4 byte boundary
- float32 x (num_states+1): backoff weight of each trie node
- float32 x num_final: final weights of the final states, in state order
- float32 x (num_futures+1): future arc weights
*/

const (
	countsSize = 3 * 8
	wordSize   = 8
	labelSize  = 4
	weightSize = 4
)

// layout holds the byte offsets of every section of a payload.
type layout struct {
	numStates, numFutures, numFinal uint64

	contextBits, futureBits, finalBits int64
	contextWords, futureWords          int64
	backoff, finalProbs, futureProbs   int64
	size                               int64
}

func newLayout(numStates, numFutures, numFinal uint64) layout {
	l := layout{numStates: numStates, numFutures: numFutures, numFinal: numFinal}

	offset := int64(countsSize)
	l.contextBits = offset
	offset += wordSize * int64(bitindex.StorageWords(l.contextBitLen()))
	l.futureBits = offset
	offset += wordSize * int64(bitindex.StorageWords(l.futureBitLen()))
	l.finalBits = offset
	offset += wordSize * int64(bitindex.StorageWords(l.finalBitLen()))

	l.contextWords = offset
	offset += int64(numStates+1) * labelSize
	l.futureWords = offset
	offset += int64(numFutures) * labelSize

	offset = (offset + weightSize - 1) &^ (weightSize - 1)
	l.backoff = offset
	offset += int64(numStates+1) * weightSize
	l.finalProbs = offset
	offset += int64(numFinal) * weightSize
	l.futureProbs = offset
	offset += int64(numFutures+1) * weightSize

	l.size = offset
	return l
}

func (l layout) contextBitLen() int {
	return int(2*l.numStates + 1)
}

func (l layout) futureBitLen() int {
	return int(l.numFutures + l.numStates + 1)
}

func (l layout) finalBitLen() int {
	return int(l.numStates)
}

// Storage returns the payload size in bytes of a model with the given
// population counts.
func Storage(numStates, numFutures, numFinal uint64) int64 {
	return newLayout(numStates, numFutures, numFinal).size
}
