package ngramfst

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// contextArc is a reversed backoff arc: it leads from a shorter context
// to a longer one and is labelled with the symbol that was prepended.
type contextArc struct {
	label  Label
	weight Weight
	state  StateID
}

type labelled struct {
	state StateID
	label Label
}

type builder struct {
	logger Logger

	numStates int
	start     StateID
	unigram   StateID
	arcs      [][]Arc
	finals    []Weight

	context  []Label
	children [][]contextArc

	numFutures int
	numFinal   int
}

// Build compiles a backoff language model into a Model. The input must
// satisfy the contract described on Acceptor; violations are reported
// as ErrValidation and no model is returned.
func Build(a Acceptor, opts ...Option) (*Model, error) {
	o := newOptions(opts)

	b, err := newBuilder(a, o.logger)
	if err != nil {
		return nil, err
	}
	if err := b.findUnigram(); err != nil {
		return nil, err
	}
	if err := b.labelContexts(); err != nil {
		return nil, err
	}
	if err := b.buildContextTree(); err != nil {
		return nil, err
	}
	order, err := b.numberStates()
	if err != nil {
		return nil, err
	}

	buf, err := b.write(order)
	if err != nil {
		return nil, err
	}

	m, err := newModel(bytes.NewReader(buf), int64(len(buf)), o.logger)
	if err != nil {
		return nil, errors.Wrapf(ErrStructure, "built payload does not parse: %v", err)
	}

	if o.order != nil {
		out := make([]StateID, b.numStates)
		for number, s := range order {
			out[s] = StateID(number)
		}
		*o.order = out
	}

	o.logger.Debugf("ngramfst: built %d states, %d future arcs, %d final states in %d bytes",
		b.numStates, b.numFutures, b.numFinal, len(buf))

	return m, nil
}

// newBuilder copies the input, sorting each state's arcs by label.
func newBuilder(a Acceptor, logger Logger) (*builder, error) {
	n := a.NumStates()
	if n < 2 {
		return nil, validationErrorf("%d states; need at least a unigram and a start state", n)
	}

	b := &builder{
		logger:    logger,
		numStates: n,
		start:     a.Start(),
		arcs:      make([][]Arc, n),
		finals:    make([]Weight, n),
		context:   make([]Label, n),
		children:  make([][]contextArc, n),
	}
	if b.start < 0 || int(b.start) >= n {
		return nil, validationErrorf("start state %d out of range", b.start)
	}

	for s := StateID(0); int(s) < n; s++ {
		b.finals[s] = a.Final(s)
		if !b.finals[s].IsZero() {
			b.numFinal++
		}

		arcs := make([]Arc, 0, a.NumArcs(s))
		for it := a.Arcs(s); !it.Done(); it.Next() {
			arc := it.Value()
			if arc.Label < 0 {
				return nil, validationErrorf("state %d: negative label %d", s, arc.Label)
			}
			if arc.Next < 0 || int(arc.Next) >= n {
				return nil, validationErrorf("state %d: arc to state %d out of range", s, arc.Next)
			}
			if math.IsNaN(float64(arc.Weight)) {
				return nil, validationErrorf("state %d: NaN weight on label %d", s, arc.Label)
			}
			arcs = append(arcs, arc)
		}

		slices.SortStableFunc(arcs, func(x, y Arc) int {
			return int(x.Label) - int(y.Label)
		})
		for i := 1; i < len(arcs); i++ {
			if arcs[i].Label == arcs[i-1].Label {
				if arcs[i].Label == Epsilon {
					return nil, validationErrorf("state %d has more than one backoff arc", s)
				}
				return nil, validationErrorf("state %d: label %d is not deterministic", s, arcs[i].Label)
			}
		}
		for _, arc := range arcs {
			if arc.Label != Epsilon {
				b.numFutures++
			}
		}
		b.arcs[s] = arcs
	}

	return b, nil
}

// findUnigram follows backoff arcs from the start state until a state
// without one is reached.
func (b *builder) findUnigram() error {
	u := b.start
	for steps := 0; ; steps++ {
		if steps > b.numStates {
			return validationErrorf("could not identify unigram state: backoff arcs from %d cycle", b.start)
		}
		arcs := b.arcs[u]
		if len(arcs) == 0 {
			if u == b.start {
				return validationErrorf("start state %d has no arcs", u)
			}
			b.logger.Warnf("ngramfst: unigram state %d has no arcs", u)
			break
		}
		if arcs[0].Label != Epsilon {
			break
		}
		u = arcs[0].Next
	}

	if u == b.start {
		return validationErrorf("start state %d has no backoff arc", u)
	}
	b.unigram = u
	return nil
}

// labelContexts assigns every state the oldest symbol of its history.
// States are visited breadth first from the unigram state; each state
// reached through a non-backoff arc inherits the label of the unigram
// arc its search started from.
func (b *builder) labelContexts() error {
	queue := make([]labelled, 0, b.numStates+len(b.arcs[b.unigram]))
	// the start state sorts in front of all other unigram children
	queue = append(queue, labelled{b.start, Epsilon})
	for _, arc := range b.arcs[b.unigram] {
		queue = append(queue, labelled{arc.Next, arc.Label})
	}

	visited := make([]bool, b.numStates)
	for i := 0; i < len(queue); i++ {
		now := queue[i]
		if visited[now.state] {
			continue
		}
		visited[now.state] = true
		b.context[now.state] = now.label
		for _, arc := range b.arcs[now.state] {
			if arc.Label != Epsilon {
				queue = append(queue, labelled{arc.Next, now.label})
			}
		}
	}
	b.context[b.start] = Epsilon

	for s, ok := range visited {
		if !ok && StateID(s) != b.unigram {
			return validationErrorf("state %d is not reachable from the unigram state", s)
		}
	}
	return nil
}

// buildContextTree reverses the backoff arcs.
func (b *builder) buildContextTree() error {
	numContextArcs := 0
	for s, arcs := range b.arcs {
		if len(arcs) == 0 || arcs[0].Label != Epsilon {
			continue
		}
		parent := arcs[0].Next
		b.children[parent] = append(b.children[parent], contextArc{
			label:  b.context[s],
			weight: arcs[0].Weight,
			state:  StateID(s),
		})
		numContextArcs++
	}

	if numContextArcs != b.numStates-1 {
		return validationErrorf("number of context arcs %d != number of states - 1 (%d)",
			numContextArcs, b.numStates-1)
	}

	for s, children := range b.children {
		if !slices.IsSortedFunc(children, compareContextArcs) {
			slices.SortStableFunc(children, compareContextArcs)
		}
		for i := 1; i < len(children); i++ {
			if children[i].label == children[i-1].label {
				return validationErrorf("contexts of states %d and %d collide under state %d",
					children[i-1].state, children[i].state, s)
			}
		}
	}
	return nil
}

func compareContextArcs(x, y contextArc) int {
	return int(x.label) - int(y.label)
}

// numberStates lists the states in breadth first order of the context
// tree. The position of a state in the list is its number in the model.
func (b *builder) numberStates() ([]StateID, error) {
	order := make([]StateID, 0, b.numStates)
	order = append(order, b.unigram)
	for i := 0; i < len(order) && len(order) <= b.numStates; i++ {
		for _, c := range b.children[order[i]] {
			order = append(order, c.state)
		}
	}

	if len(order) != b.numStates {
		return nil, validationErrorf("backoff arcs do not form a tree rooted at unigram state %d", b.unigram)
	}
	if len(order) < 2 || order[1] != b.start {
		return nil, validationErrorf("start state %d does not back off to unigram state %d", b.start, b.unigram)
	}
	return order, nil
}

// write lays out the payload.
func (b *builder) write(order []StateID) ([]byte, error) {
	l := newLayout(uint64(b.numStates), uint64(b.numFutures), uint64(b.numFinal))
	buf := make([]byte, l.size)

	binary.LittleEndian.PutUint64(buf[0:], l.numStates)
	binary.LittleEndian.PutUint64(buf[8:], l.numFutures)
	binary.LittleEndian.PutUint64(buf[16:], l.numFinal)

	putLabel := func(base int64, i int, label Label) {
		binary.LittleEndian.PutUint32(buf[base+int64(i)*labelSize:], uint32(label))
	}
	putWeight := func(base int64, i int, w Weight) {
		binary.LittleEndian.PutUint32(buf[base+int64(i)*weightSize:], math.Float32bits(float32(w)))
	}

	contextBits := newBitWriter(l.contextBitLen())
	futureBits := newBitWriter(l.futureBitLen())
	finalBits := newBitWriter(l.finalBitLen())
	contextArc, futureArc, finalBit := 0, 0, 0

	// pseudo-root
	contextBits.WriteOnes(1)
	contextBits.WriteZero()
	putLabel(l.contextWords, contextArc, NoLabel)
	putWeight(l.backoff, contextArc, Zero())
	contextArc++

	futureBits.WriteZero()

	stateNumber := 0
	for _, s := range order {
		if w := b.finals[s]; !w.IsZero() {
			finalBits.Set(stateNumber)
			putWeight(l.finalProbs, finalBit, w)
			finalBit++
		}

		for _, c := range b.children[s] {
			putLabel(l.contextWords, contextArc, c.label)
			putWeight(l.backoff, contextArc, c.weight)
			contextArc++
		}
		contextBits.WriteRun(len(b.children[s]))

		numFutures := 0
		for _, arc := range b.arcs[s] {
			if arc.Label == Epsilon {
				continue
			}
			putLabel(l.futureWords, futureArc, arc.Label)
			putWeight(l.futureProbs, futureArc, arc.Weight)
			futureArc++
			numFutures++
		}
		futureBits.WriteRun(numFutures)

		stateNumber++
	}

	if stateNumber != b.numStates ||
		contextBits.Tell() != l.contextBitLen() ||
		contextArc != b.numStates ||
		futureArc != b.numFutures ||
		futureBits.Tell() != l.futureBitLen() ||
		finalBit != b.numFinal {
		return nil, errors.Wrapf(ErrStructure,
			"states %d/%d, context bits %d/%d, context arcs %d/%d, futures %d/%d, future bits %d/%d, finals %d/%d",
			stateNumber, b.numStates, contextBits.Tell(), l.contextBitLen(),
			contextArc, b.numStates, futureArc, b.numFutures,
			futureBits.Tell(), l.futureBitLen(), finalBit, b.numFinal)
	}

	putWords(buf[l.contextBits:], contextBits.words)
	putWords(buf[l.futureBits:], futureBits.words)
	putWords(buf[l.finalBits:], finalBits.words)

	return buf, nil
}

func putWords(buf []byte, words []uint64) {
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*wordSize:], w)
	}
}
