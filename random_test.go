package ngramfst_test

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milden6/ngramfst"
	"github.com/milden6/ngramfst/vector"
)

type refArc struct {
	weight ngramfst.Weight
	next   string
}

// refModel is a backoff model kept in maps keyed by history.
type refModel struct {
	vocab     int
	histories map[string][]ngramfst.Label
	ids       map[string]ngramfst.StateID
	arcs      map[string]map[ngramfst.Label]refArc
	backoff   map[string]ngramfst.Weight
	final     map[string]ngramfst.Weight
}

func key(h []ngramfst.Label) string {
	return fmt.Sprint(h)
}

// randomModel draws histories over words 1..vocab, closes them under
// prefixes and suffixes, and wires each history to the longest suffix
// of every extension. Histories starting with 0 begin at <s>.
func randomModel(r *rand.Rand, vocab, order, n int) *refModel {
	rm := &refModel{
		vocab:     vocab,
		histories: make(map[string][]ngramfst.Label),
		ids:       make(map[string]ngramfst.StateID),
		arcs:      make(map[string]map[ngramfst.Label]refArc),
		backoff:   make(map[string]ngramfst.Weight),
		final:     make(map[string]ngramfst.Weight),
	}

	add := func(h []ngramfst.Label) {
		for i := 0; i <= len(h); i++ {
			for j := i; j <= len(h); j++ {
				sub := append([]ngramfst.Label{}, h[i:j]...)
				rm.histories[key(sub)] = sub
			}
		}
	}
	add([]ngramfst.Label{0})
	for i := 0; i < n; i++ {
		var h []ngramfst.Label
		length := 1 + r.Intn(order-1)
		if r.Intn(3) == 0 {
			h = append(h, 0)
			length--
		}
		for ; length > 0; length-- {
			h = append(h, ngramfst.Label(1+r.Intn(vocab)))
		}
		add(h)
	}

	keys := make([]string, 0, len(rm.histories))
	for k := range rm.histories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for i, k := range keys {
		rm.ids[k] = ngramfst.StateID(i)
	}

	for _, k := range keys {
		h := rm.histories[k]
		arcs := make(map[ngramfst.Label]refArc)
		p := 0.3
		if len(h) == 0 {
			p = 0.8
		}
		for w := ngramfst.Label(1); int(w) <= vocab; w++ {
			ext := append(append([]ngramfst.Label{}, h...), w)
			if _, forced := rm.histories[key(ext)]; !forced && r.Float64() >= p {
				continue
			}
			arcs[w] = refArc{
				weight: ngramfst.Weight(r.Intn(64)) / 8,
				next:   rm.longestSuffix(ext),
			}
		}
		rm.arcs[k] = arcs

		if len(h) > 0 {
			rm.backoff[k] = ngramfst.Weight(r.Intn(32)) / 16
		}
		if len(h) == 0 || r.Intn(3) == 0 {
			rm.final[k] = ngramfst.Weight(r.Intn(32)) / 4
		}
	}
	return rm
}

func (rm *refModel) longestSuffix(h []ngramfst.Label) string {
	for i := 0; ; i++ {
		if k := key(h[i:]); rm.histories[k] != nil || i == len(h) {
			return k
		}
	}
}

func (rm *refModel) acceptor() *vector.Acceptor {
	a := vector.New()
	for range rm.ids {
		a.AddState()
	}
	for k, id := range rm.ids {
		h := rm.histories[k]
		if len(h) > 0 {
			a.AddArc(id, ngramfst.Arc{Label: ngramfst.Epsilon, Weight: rm.backoff[k], Next: rm.ids[key(h[1:])]})
		}
		for w, arc := range rm.arcs[k] {
			a.AddArc(id, ngramfst.Arc{Label: w, Weight: arc.weight, Next: rm.ids[arc.next]})
		}
		if f, ok := rm.final[k]; ok {
			a.SetFinal(id, f)
		}
	}
	a.SetStart(rm.ids[key([]ngramfst.Label{0})])
	return a
}

// score follows backoff arcs through the maps.
func (rm *refModel) score(labels []ngramfst.Label) (ngramfst.Weight, int) {
	h := []ngramfst.Label{0}
	cost, oovs := ngramfst.One(), 0
	for _, w := range labels {
		step := ngramfst.One()
		for {
			if arc, ok := rm.arcs[key(h)][w]; ok {
				step += arc.weight
				h = rm.histories[arc.next]
				cost += step
				break
			}
			if len(h) == 0 {
				oovs++
				break
			}
			step += rm.backoff[key(h)]
			h = h[1:]
		}
	}

	final := ngramfst.One()
	for {
		if f, ok := rm.final[key(h)]; ok {
			return cost + final + f, oovs
		}
		final += rm.backoff[key(h)]
		h = h[1:]
	}
}

func TestRandomModels(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			r := rand.New(rand.NewSource(seed))
			rm := randomModel(r, 2+r.Intn(8), 2+r.Intn(4), 1+r.Intn(40))

			var order []ngramfst.StateID
			m, err := ngramfst.Build(rm.acceptor(), ngramfst.WithStateOrder(&order))
			require.NoError(t, err)
			require.Equal(t, len(rm.ids), m.NumStates())

			testAgainstReference(t, rm, m, order)
			testScores(t, r, rm, m)

			again, err := ngramfst.Build(m)
			require.NoError(t, err)
			assert.Equal(t, m.Data(), again.Data())

			var buf bytes.Buffer
			_, err = m.Write(&buf)
			require.NoError(t, err)
			read, err := ngramfst.Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, m.Data(), read.Data())
		})
	}
}

func testAgainstReference(t *testing.T, rm *refModel, m *ngramfst.Model, order []ngramfst.StateID) {
	mt := m.NewMatcher()
	maxOrder := m.Stats().Order
	for k, id := range rm.ids {
		h := rm.histories[k]
		s := order[id]

		if diff := cmp.Diff(h, m.Context(s), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("Context of %s (-want +got):\n%s", k, diff)
		}
		if len(h) == 0 {
			assert.Equal(t, ngramfst.StateID(0), s)
			assert.Equal(t, ngramfst.NoStateID, m.Parent(s))
		} else {
			assert.Equal(t, order[rm.ids[key(h[1:])]], m.Parent(s), "parent of %s", k)
			assert.Equal(t, rm.backoff[k], m.BackoffWeight(s), "backoff of %s", k)
		}
		if len(h) == 1 && h[0] == 0 {
			assert.Equal(t, m.Start(), s)
		}

		if f, ok := rm.final[k]; ok {
			assert.Equal(t, f, m.Final(s), "final of %s", k)
		} else {
			assert.True(t, m.Final(s).IsZero(), "final of %s", k)
		}

		mt.SetState(s)
		for w := ngramfst.Label(1); int(w) <= rm.vocab+1; w++ {
			arc, ok := rm.arcs[k][w]
			if !assert.Equal(t, ok, mt.Find(w), "Find(%d) in %s", w, k) || !ok {
				continue
			}
			assert.Equal(t, ngramfst.Arc{Label: w, Weight: arc.weight, Next: order[rm.ids[arc.next]]}, mt.Value(),
				"arc %d of %s", w, k)
		}

		states := m.GetStates(h)
		assert.Equal(t, s, states[len(states)-1], "GetStates(%s)", k)

		steps := 0
		for p := s; p != 0; p = m.Parent(p) {
			steps++
			require.Less(t, steps, maxOrder, "backoff chain of %s", k)
		}
		assert.Equal(t, len(h), steps)
	}
}

func testScores(t *testing.T, r *rand.Rand, rm *refModel, m *ngramfst.Model) {
	sc, err := ngramfst.NewScorer(m, 64)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		labels := make([]ngramfst.Label, r.Intn(12))
		for j := range labels {
			labels[j] = ngramfst.Label(1 + r.Intn(rm.vocab+1))
		}
		cost, oovs := rm.score(labels)
		got := sc.Score(labels)
		assert.InDelta(t, float64(cost), float64(got.Cost), 1e-3, "score of %v", labels)
		assert.Equal(t, oovs, got.OOVs, "OOVs in %v", labels)
		assert.Len(t, got.States, len(labels)+1)
	}
}
