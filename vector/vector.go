// Package vector provides a mutable acceptor that can be handed to
// ngramfst.Build, together with readers for the AT&T text format and
// symbol tables.
package vector

import (
	"github.com/milden6/ngramfst"
)

type state struct {
	final ngramfst.Weight
	arcs  []ngramfst.Arc
}

// Acceptor is an acceptor held in slices. The zero value is not usable;
// call New.
type Acceptor struct {
	start  ngramfst.StateID
	states []state
}

// New returns an empty acceptor without a start state.
func New() *Acceptor {
	return &Acceptor{start: ngramfst.NoStateID}
}

// AddState adds a non-final state and returns its ID.
func (a *Acceptor) AddState() ngramfst.StateID {
	a.states = append(a.states, state{final: ngramfst.Zero()})
	return ngramfst.StateID(len(a.states) - 1)
}

// ensure adds states until s exists.
func (a *Acceptor) ensure(s ngramfst.StateID) {
	for int(s) >= len(a.states) {
		a.AddState()
	}
}

// SetStart sets the start state.
func (a *Acceptor) SetStart(s ngramfst.StateID) {
	a.start = s
}

// SetFinal sets the final weight of s. Zero makes s non-final.
func (a *Acceptor) SetFinal(s ngramfst.StateID, w ngramfst.Weight) {
	a.states[s].final = w
}

// AddArc adds an arc leaving s. Arcs may be added in any order.
func (a *Acceptor) AddArc(s ngramfst.StateID, arc ngramfst.Arc) {
	a.states[s].arcs = append(a.states[s].arcs, arc)
}

// Start returns the start state, or NoStateID if none was set.
func (a *Acceptor) Start() ngramfst.StateID {
	return a.start
}

// NumStates returns the number of states.
func (a *Acceptor) NumStates() int {
	return len(a.states)
}

// Final returns the final weight of s.
func (a *Acceptor) Final(s ngramfst.StateID) ngramfst.Weight {
	return a.states[s].final
}

// NumArcs returns the number of arcs leaving s.
func (a *Acceptor) NumArcs(s ngramfst.StateID) int {
	return len(a.states[s].arcs)
}

// Arcs returns an iterator over the arcs of s in insertion order.
func (a *Acceptor) Arcs(s ngramfst.StateID) ngramfst.ArcIterator {
	return &arcIterator{arcs: a.states[s].arcs}
}

// Copy returns a mutable copy of any acceptor, a Model included.
func Copy(src ngramfst.Acceptor) *Acceptor {
	a := New()
	for i := 0; i < src.NumStates(); i++ {
		s := a.AddState()
		a.SetFinal(s, src.Final(s))
		for it := src.Arcs(s); !it.Done(); it.Next() {
			a.AddArc(s, it.Value())
		}
	}
	a.SetStart(src.Start())
	return a
}

type arcIterator struct {
	arcs []ngramfst.Arc
	pos  int
}

func (it *arcIterator) Done() bool { return it.pos >= len(it.arcs) }
func (it *arcIterator) Value() ngramfst.Arc { return it.arcs[it.pos] }
func (it *arcIterator) Next() { it.pos++ }
func (it *arcIterator) Reset() { it.pos = 0 }
func (it *arcIterator) Seek(pos int) { it.pos = pos }
func (it *arcIterator) Position() int { return it.pos }
