package vector_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milden6/ngramfst"
	"github.com/milden6/ngramfst/vector"
)

const bigram = `
1	2	<eps>	0.5
1	3	a	1
1	0	b	1.5
2	3	a	2
2	0	b	2.5
2	2	c	3
3	2	<eps>	0.25
3	0	b	0.75
0	2	<eps>	0.125
0	3	a	0.625
0	2	c	0.375
0	4
2	5
`

const symbols = `<eps> 0
a 1
b 2
c 3
`

func arcs(a ngramfst.Acceptor, s ngramfst.StateID) []ngramfst.Arc {
	var out []ngramfst.Arc
	for it := a.Arcs(s); !it.Done(); it.Next() {
		out = append(out, it.Value())
	}
	return out
}

func TestReadText(t *testing.T) {
	syms, err := vector.ReadSymbols(strings.NewReader(symbols))
	require.NoError(t, err)

	a, err := vector.ReadText(strings.NewReader(bigram), syms)
	require.NoError(t, err)

	assert.Equal(t, ngramfst.StateID(1), a.Start())
	assert.Equal(t, 4, a.NumStates())
	assert.Equal(t, ngramfst.Weight(4), a.Final(0))
	assert.Equal(t, ngramfst.Weight(5), a.Final(2))
	assert.True(t, a.Final(1).IsZero())

	want := []ngramfst.Arc{
		{Label: 0, Weight: 0.25, Next: 2},
		{Label: 2, Weight: 0.75, Next: 0},
	}
	if diff := cmp.Diff(want, arcs(a, 3)); diff != "" {
		t.Errorf("arcs of state 3 (-want +got):\n%s", diff)
	}
}

func TestReadTextNumericLabels(t *testing.T) {
	a, err := vector.ReadText(strings.NewReader("0 1 7 1.5\n1 0 <eps> 2\n1\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, ngramfst.StateID(0), a.Start())
	assert.Equal(t, []ngramfst.Arc{{Label: 7, Weight: 1.5, Next: 1}}, arcs(a, 0))
	assert.Equal(t, ngramfst.Label(0), arcs(a, 1)[0].Label)
	assert.Equal(t, ngramfst.One(), a.Final(1))
}

func TestReadTextErrors(t *testing.T) {
	syms := vector.NewSymbolTable()
	for _, input := range []string{
		"",
		"0 1 2 3 4 5\n",
		"x 1 2\n",
		"0 -1 2\n",
		"0 1 2 heavy\n",
		"0 1 unknown\n",
	} {
		_, err := vector.ReadText(strings.NewReader(input), syms)
		assert.True(t, errors.Is(err, vector.ErrSyntax), "input %q: %v", input, err)
	}
}

func TestWriteTextRoundTrip(t *testing.T) {
	syms, err := vector.ReadSymbols(strings.NewReader(symbols))
	require.NoError(t, err)
	a, err := vector.ReadText(strings.NewReader(bigram), syms)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, vector.WriteText(&buf, a, syms))

	b, err := vector.ReadText(&buf, syms)
	require.NoError(t, err)

	assert.Equal(t, a.Start(), b.Start())
	require.Equal(t, a.NumStates(), b.NumStates())
	for s := ngramfst.StateID(0); int(s) < a.NumStates(); s++ {
		assert.Equal(t, a.Final(s), b.Final(s))
		assert.Equal(t, arcs(a, s), arcs(b, s))
	}
}

func TestSymbolTable(t *testing.T) {
	st := vector.NewSymbolTable()
	assert.Equal(t, ngramfst.Label(1), st.Add("hello"))
	assert.Equal(t, ngramfst.Label(2), st.Add("world"))
	assert.Equal(t, ngramfst.Label(1), st.Add("hello"))

	word, ok := st.Word(0)
	assert.True(t, ok)
	assert.Equal(t, vector.EpsilonSymbol, word)

	st.AddSymbol("again", 1)
	_, ok = st.Find("hello")
	assert.False(t, ok)
	word, _ = st.Word(1)
	assert.Equal(t, "again", word)

	assert.Equal(t, []ngramfst.Label{1, ngramfst.NoLabel, 2}, st.Labels([]string{"again", "nope", "world"}))
	assert.Equal(t, 3, st.Len())
}

func TestReadSymbolsErrors(t *testing.T) {
	_, err := vector.ReadSymbols(strings.NewReader("a 1\nb\n"))
	assert.True(t, errors.Is(err, vector.ErrSyntax))

	_, err = vector.ReadSymbols(strings.NewReader("a -3\n"))
	assert.True(t, errors.Is(err, vector.ErrSyntax))
}

func TestCopy(t *testing.T) {
	a := vector.New()
	s0, s1 := a.AddState(), a.AddState()
	a.SetStart(s1)
	a.AddArc(s1, ngramfst.Arc{Label: 3, Weight: 1, Next: s0})
	a.SetFinal(s0, 2)

	b := vector.Copy(a)
	assert.Equal(t, s1, b.Start())
	assert.Equal(t, arcs(a, s1), arcs(b, s1))
	assert.Equal(t, ngramfst.Weight(2), b.Final(s0))

	b.AddArc(s1, ngramfst.Arc{Label: 4, Next: s0})
	assert.Equal(t, 1, a.NumArcs(s1))
	assert.Equal(t, 2, b.NumArcs(s1))
}
