package ngramfst

import (
	"math"
)

// Label is an arc symbol. Zero is reserved for the backoff (epsilon) arc.
type Label int32

// StateID identifies a state. State 0 is always the unigram state.
type StateID int

const (
	// Epsilon labels backoff arcs.
	Epsilon Label = 0
	// NoLabel is the reserved "no symbol" label.
	NoLabel Label = -1
	// NoStateID marks an absent state.
	NoStateID StateID = -1
)

// Weight is a tropical semiring weight, the negative log of a probability.
type Weight float32

// Zero returns the weight of an absent path.
func Zero() Weight {
	return Weight(math.Inf(1))
}

// One returns the weight of a free path.
func One() Weight {
	return 0
}

// IsZero reports whether w is the absent-path sentinel.
func (w Weight) IsZero() bool {
	return math.IsInf(float64(w), 1)
}

// Arc is a transition of an acceptor: input and output labels coincide.
type Arc struct {
	Label  Label
	Weight Weight
	Next   StateID
}

// ArcIterator enumerates the arcs leaving one state.
type ArcIterator interface {
	Done() bool
	Value() Arc
	Next()
	Reset()
	Seek(pos int)
	Position() int
}

// Acceptor is the capability set shared by the input automata Build
// consumes and the Model it produces.
//
// An input to Build must be a backoff language model: label 0 marks the
// single backoff arc of a state, backoff arcs form a tree rooted at the
// unigram state, and the other labels of a state are distinct.
type Acceptor interface {
	Start() StateID
	NumStates() int
	Final(s StateID) Weight
	NumArcs(s StateID) int
	Arcs(s StateID) ArcIterator
}
