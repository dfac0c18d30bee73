package ngramfst

import (
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Score is the result of scoring a label sequence.
type Score struct {
	// Cost is the total weight, end of sentence included. Labels the
	// model does not know contribute nothing.
	Cost Weight
	// OOVs counts the labels unknown even to the unigram state.
	OOVs int
	// States lists the state before each label and the state after the
	// last one.
	States []StateID
}

type stepKey struct {
	state StateID
	label Label
}

type step struct {
	next StateID
	cost Weight
	ok   bool
}

// Scorer computes sequence costs, following backoff arcs when a label is
// missing from a state. Steps are memoized in an LRU cache.
//
// A Scorer is not safe for concurrent use.
type Scorer struct {
	m     *Model
	mt    *Matcher
	cache *lru.Cache[stepKey, step]
}

// NewScorer returns a scorer over m that remembers up to cacheSize steps.
// A cacheSize of zero disables the cache.
func NewScorer(m *Model, cacheSize int) (*Scorer, error) {
	sc := &Scorer{m: m, mt: m.NewMatcher()}
	if cacheSize > 0 {
		cache, err := lru.New[stepKey, step](cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "creating step cache")
		}
		sc.cache = cache
	}
	return sc, nil
}

// Step returns the state reached by label from s and the weight paid,
// backoff arcs included. ok is false when label is unknown to the model;
// the caller is then expected to continue from the unigram state.
func (sc *Scorer) Step(s StateID, label Label) (next StateID, cost Weight, ok bool) {
	if label <= Epsilon {
		return 0, One(), false
	}

	key := stepKey{s, label}
	if sc.cache != nil {
		if st, found := sc.cache.Get(key); found {
			return st.next, st.cost, st.ok
		}
	}

	st := sc.step(s, label)
	if sc.cache != nil {
		sc.cache.Add(key, st)
	}
	return st.next, st.cost, st.ok
}

func (sc *Scorer) step(s StateID, label Label) step {
	cost := One()
	for {
		sc.mt.SetState(s)
		if sc.mt.Find(label) {
			arc := sc.mt.Value()
			return step{next: arc.Next, cost: cost + arc.Weight, ok: true}
		}
		if !sc.mt.Find(Epsilon) {
			return step{next: 0, cost: One()}
		}
		arc := sc.mt.Value()
		cost += arc.Weight
		s = arc.Next
	}
}

// FinalCost returns the weight of ending in s, backing off until a final
// state is found. It is Zero if not even the unigram state is final.
func (sc *Scorer) FinalCost(s StateID) Weight {
	cost := One()
	for {
		if final := sc.m.Final(s); !final.IsZero() {
			return cost + final
		}
		if s == 0 {
			return Zero()
		}
		cost += sc.m.BackoffWeight(s)
		s = sc.m.Parent(s)
	}
}

// Score scores labels as one sentence starting in the start state.
func (sc *Scorer) Score(labels []Label) Score {
	s := sc.m.Start()
	out := Score{
		Cost:   One(),
		States: make([]StateID, 0, len(labels)+1),
	}
	out.States = append(out.States, s)

	for _, label := range labels {
		next, cost, ok := sc.Step(s, label)
		if !ok {
			out.OOVs++
			next = 0
		} else {
			out.Cost += cost
		}
		s = next
		out.States = append(out.States, s)
	}

	out.Cost += sc.FinalCost(s)
	return out
}
