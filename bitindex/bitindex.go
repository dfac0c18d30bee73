/*
Package bitindex implements rank and select over a fixed bit vector.

Bits are stored little-endian within 64-bit words: bit i lives in
words[i/64] at position i%64. The rank and select summaries are the
openacid/low 64-bit rank index and 32-sample select index; they are
rebuilt in memory whenever an Index is built, so only the raw words
need to be stored.
*/
package bitindex

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/openacid/low/bitmap"
)

// ErrOutOfRange is the cause of the panic raised when a rank or select
// query falls outside the populated range of the vector.
var ErrOutOfRange = errors.New("bitindex: out of range")

// MaxBits is the largest vector that can be indexed. The underlying
// summaries use 32-bit counters.
const MaxBits = math.MaxInt32

// Index is an immutable bit vector with rank/select support. It is safe
// for concurrent use.
type Index struct {
	words   []uint64
	nbits   int
	ones    int
	ranks   []int32
	selects []int32
}

// StorageWords returns the number of 64-bit words needed to store nbits.
func StorageWords(nbits int) int {
	return (nbits + 63) >> 6
}

// Set sets bit i in words.
func Set(words []uint64, i int) {
	words[i>>6] |= 1 << uint(i&63)
}

// New builds an index over the first nbits bits of words. Bits at or
// beyond nbits are cleared. words is retained, not copied.
func New(words []uint64, nbits int) *Index {
	if nbits < 0 || nbits > MaxBits || StorageWords(nbits) > len(words) {
		panic(errors.Wrapf(ErrOutOfRange, "cannot index %d bits in %d words", nbits, len(words)))
	}

	words = words[:StorageWords(nbits)]
	if tail := nbits & 63; tail != 0 {
		words[len(words)-1] &= (1 << uint(tail)) - 1
	}

	x := &Index{words: words, nbits: nbits}
	for _, w := range words {
		x.ones += bits.OnesCount64(w)
	}
	x.selects, x.ranks = bitmap.IndexSelect32R64(words)
	return x
}

// Len returns the number of bits in the vector.
func (x *Index) Len() int {
	return x.nbits
}

// Ones returns the number of set bits.
func (x *Index) Ones() int {
	return x.ones
}

// Zeros returns the number of unset bits.
func (x *Index) Zeros() int {
	return x.nbits - x.ones
}

// Words returns the backing words.
func (x *Index) Words() []uint64 {
	return x.words
}

// Get reports whether bit i is set.
func (x *Index) Get(i int) bool {
	if i < 0 || i >= x.nbits {
		panic(errors.Wrapf(ErrOutOfRange, "get(%d) on %d bits", i, x.nbits))
	}
	return x.words[i>>6]&(1<<uint(i&63)) != 0
}

// Rank1 returns the number of set bits in [0, i).
func (x *Index) Rank1(i int) int {
	if i < 0 || i > x.nbits {
		panic(errors.Wrapf(ErrOutOfRange, "rank1(%d) on %d bits", i, x.nbits))
	}
	if i == len(x.words)<<6 {
		// Rank64 reads the word containing i.
		return x.ones
	}
	r, _ := bitmap.Rank64(x.words, x.ranks, int32(i))
	return int(r)
}

// Rank0 returns the number of unset bits in [0, i).
func (x *Index) Rank0(i int) int {
	return i - x.Rank1(i)
}

// Select1 returns the position of the k-th set bit, counting from zero.
func (x *Index) Select1(k int) int {
	if k < 0 || k >= x.ones {
		panic(errors.Wrapf(ErrOutOfRange, "select1(%d) with %d set bits", k, x.ones))
	}
	p, _ := bitmap.Select32R64(x.words, x.selects, x.ranks, int32(k))
	return int(p)
}

// Select0 returns the position of the k-th unset bit, counting from zero.
func (x *Index) Select0(k int) int {
	if k < 0 || k >= x.Zeros() {
		panic(errors.Wrapf(ErrOutOfRange, "select0(%d) with %d unset bits", k, x.Zeros()))
	}
	return x.select0(k)
}

// Select0s returns the positions of the k-th and (k+1)-th unset bits.
// The set bits strictly between them form the run that belongs to k.
func (x *Index) Select0s(k int) (int, int) {
	if k < 0 || k+1 >= x.Zeros() {
		panic(errors.Wrapf(ErrOutOfRange, "select0s(%d) with %d unset bits", k, x.Zeros()))
	}
	first := x.select0(k)
	return first, x.nextZero(first + 1)
}

// select0 binary searches the rank index for the word holding the k-th
// zero, then scans inside it.
func (x *Index) select0(k int) int {
	lo, hi := 0, len(x.words)
	for hi-lo > 1 {
		mid := (lo + hi) >> 1
		if zerosBefore(x.ranks, mid) <= k {
			lo = mid
		} else {
			hi = mid
		}
	}

	w := ^x.words[lo]
	for n := k - zerosBefore(x.ranks, lo); n > 0; n-- {
		w &= w - 1
	}
	return lo<<6 + bits.TrailingZeros64(w)
}

// nextZero returns the first unset bit at or after i.
func (x *Index) nextZero(i int) int {
	for j := i >> 6; j < len(x.words); j++ {
		w := ^x.words[j]
		if j == i>>6 {
			w &^= (1 << uint(i&63)) - 1
		}
		if w != 0 {
			return j<<6 + bits.TrailingZeros64(w)
		}
	}
	panic(errors.Wrapf(ErrOutOfRange, "no unset bit at or after %d", i))
}

func zerosBefore(ranks []int32, word int) int {
	return word<<6 - int(ranks[word])
}
