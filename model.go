package ngramfst

import (
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/milden6/ngramfst/bitindex"
)

// Model is a backoff n-gram language model stored as a LOUDS context
// trie. It is immutable and safe for concurrent use; per-query scratch
// lives in the ArcCursor, Matcher and Scorer values built from it.
type Model struct {
	r      io.ReaderAt // payload, read in place
	layout layout
	logger Logger

	// set when the payload is a region of a larger container
	closer io.Closer

	context, future, final *bitindex.Index

	// bit positions of the zeros around the root's children
	rootFirst, rootSecond int
	// index in the context labels of the root's first child
	rootChildren int
}

// instance is the scratch that ties repeated queries on one state
// together. Each cursor and matcher owns one.
type instance struct {
	state      StateID
	numFutures int
	offset     int

	node      int
	nodeState StateID

	context      []Label
	contextState StateID
}

func newInstance() instance {
	return instance{
		state:        NoStateID,
		nodeState:    NoStateID,
		contextState: NoStateID,
	}
}

// newModel parses the payload held by r. size is the number of bytes
// available.
func newModel(r io.ReaderAt, size int64, logger Logger) (*Model, error) {
	if size < countsSize {
		return nil, corruptf("payload of %d bytes is too short", size)
	}

	var counts [countsSize]byte
	if _, err := r.ReadAt(counts[:], 0); err != nil {
		return nil, corruptf("reading counts: %v", err)
	}
	l, err := parseCounts(counts[:])
	if err != nil {
		return nil, err
	}
	if size < l.size {
		return nil, corruptf("payload of %d bytes, layout needs %d", size, l.size)
	}

	m := &Model{r: r, layout: l, logger: logger}

	if m.context, err = m.readBitmap(l.contextBits, l.contextBitLen()); err != nil {
		return nil, err
	}
	if m.future, err = m.readBitmap(l.futureBits, l.futureBitLen()); err != nil {
		return nil, err
	}
	if m.final, err = m.readBitmap(l.finalBits, l.finalBitLen()); err != nil {
		return nil, err
	}

	if m.context.Ones() != int(l.numStates) ||
		m.future.Ones() != int(l.numFutures) ||
		m.final.Ones() != int(l.numFinal) {
		return nil, corruptf("bitmap tallies %d/%d/%d do not match counts %d/%d/%d",
			m.context.Ones(), m.future.Ones(), m.final.Ones(),
			l.numStates, l.numFutures, l.numFinal)
	}

	m.rootFirst, m.rootSecond = m.context.Select0s(0)
	if !m.context.Get(0) || m.rootFirst != 1 || !m.context.Get(2) || m.future.Get(0) {
		return nil, corruptf("malformed root markers")
	}
	m.rootChildren = m.context.Rank1(2)

	// every backoff chain must descend to state 0
	for s := StateID(1); int(s) < m.NumStates(); s++ {
		if p := m.Parent(s); p < 0 || p >= s {
			return nil, corruptf("state %d has parent %d", s, p)
		}
	}

	return m, nil
}

// parseCounts decodes the population counts that open a payload and
// derives the layout from them.
func parseCounts(counts []byte) (layout, error) {
	numStates := binary.LittleEndian.Uint64(counts[0:])
	numFutures := binary.LittleEndian.Uint64(counts[8:])
	numFinal := binary.LittleEndian.Uint64(counts[16:])

	if numStates < 2 || numStates > (bitindex.MaxBits-1)/4 ||
		numFutures > bitindex.MaxBits/2 || numFinal > numStates {
		return layout{}, corruptf("implausible counts states=%d futures=%d final=%d",
			numStates, numFutures, numFinal)
	}
	return newLayout(numStates, numFutures, numFinal), nil
}

func (m *Model) readBitmap(offset int64, nbits int) (*bitindex.Index, error) {
	n := bitindex.StorageWords(nbits)
	buf := make([]byte, n*wordSize)
	if _, err := m.r.ReadAt(buf, offset); err != nil {
		return nil, corruptf("reading bitmap at %d: %v", offset, err)
	}

	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*wordSize:])
	}
	return bitindex.New(words, nbits), nil
}

func (m *Model) readUint32(at int64) uint32 {
	var data [4]byte
	if _, err := m.r.ReadAt(data[:], at); err != nil {
		panic(errors.Wrapf(err, "reading payload at %d", at))
	}
	return binary.LittleEndian.Uint32(data[:])
}

func (m *Model) contextWord(i int) Label {
	return Label(int32(m.readUint32(m.layout.contextWords + int64(i)*labelSize)))
}

func (m *Model) futureWord(i int) Label {
	return Label(int32(m.readUint32(m.layout.futureWords + int64(i)*labelSize)))
}

func (m *Model) weightAt(base int64, i int) Weight {
	return Weight(math.Float32frombits(m.readUint32(base + int64(i)*weightSize)))
}

// Start returns the start state, which is always 1.
func (m *Model) Start() StateID {
	return 1
}

// NumStates returns the number of states.
func (m *Model) NumStates() int {
	return int(m.layout.numStates)
}

// NumFutures returns the number of explicit (non-backoff) arcs.
func (m *Model) NumFutures() int {
	return int(m.layout.numFutures)
}

// NumFinal returns the number of final states.
func (m *Model) NumFinal() int {
	return int(m.layout.numFinal)
}

// StorageSize returns the payload size in bytes.
func (m *Model) StorageSize() int64 {
	return m.layout.size
}

// Final returns the final weight of s, or Zero if s is not final.
func (m *Model) Final(s StateID) Weight {
	if !m.final.Get(int(s)) {
		return Zero()
	}
	return m.weightAt(m.layout.finalProbs, m.final.Rank1(int(s)))
}

// NumArcs returns the number of arcs leaving s, counting the backoff arc.
func (m *Model) NumArcs(s StateID) int {
	first, second := m.future.Select0s(int(s))
	n := second - first - 1
	if s != 0 {
		n++
	}
	return n
}

// Arcs returns a new cursor over the arcs of s.
func (m *Model) Arcs(s StateID) ArcIterator {
	return m.NewArcCursor(s)
}

// Parent returns the backoff state of s, or NoStateID for the unigram
// state.
func (m *Model) Parent(s StateID) StateID {
	if s == 0 {
		return NoStateID
	}
	return m.parentOf(m.context.Select1(int(s)))
}

// Stats summarizes a model.
type Stats struct {
	NumStates   int   `yaml:"num_states"`
	NumFutures  int   `yaml:"num_futures"`
	NumArcs     int64 `yaml:"num_arcs"`
	NumFinal    int   `yaml:"num_final"`
	Order       int   `yaml:"order"`
	StorageSize int64 `yaml:"storage_size"`
}

// Stats returns the population counts of m. Order is one more than the
// length of the longest context.
func (m *Model) Stats() Stats {
	depth := make([]int, m.NumStates())
	longest := 0
	// parents are numbered before their children
	for s := 1; s < len(depth); s++ {
		depth[s] = depth[m.Parent(StateID(s))] + 1
		if depth[s] > longest {
			longest = depth[s]
		}
	}
	return Stats{
		NumStates:   m.NumStates(),
		NumFutures:  m.NumFutures(),
		NumArcs:     m.numArcs(),
		NumFinal:    m.NumFinal(),
		Order:       longest + 1,
		StorageSize: m.StorageSize(),
	}
}

// BackoffWeight returns the weight of the backoff arc of s.
func (m *Model) BackoffWeight(s StateID) Weight {
	return m.weightAt(m.layout.backoff, int(s))
}

func (m *Model) parentOf(node int) StateID {
	return StateID(m.context.Rank0(node) - 1)
}

// Context returns the history of s, oldest symbol first.
func (m *Model) Context(s StateID) []Label {
	inst := newInstance()
	m.setFuture(s, &inst)
	m.setContext(&inst)
	return inst.context
}

// Transition returns the state reached by emitting future after
// context: the deepest trie node matching future followed by the symbols
// of context from the most recent one backwards.
func (m *Model) Transition(context []Label, future Label) StateID {
	node, ok := m.child(0, future)
	if !ok {
		return StateID(m.context.Rank1(0))
	}
	for i := len(context) - 1; i >= 0; i-- {
		next, ok := m.child(node, context[i])
		if !ok {
			break
		}
		node = next
	}
	return StateID(m.context.Rank1(node))
}

// GetStates returns the states of the successively longer suffixes of
// context found in the trie, starting with the unigram state.
func (m *Model) GetStates(context []Label) []StateID {
	states := []StateID{0}
	node := 0
	for i := len(context) - 1; i >= 0; i-- {
		next, ok := m.child(node, context[i])
		if !ok {
			break
		}
		node = next
		states = append(states, StateID(m.context.Rank1(node)))
	}
	return states
}

// children returns the bit positions of the first and last child of
// node. ok is false for a leaf.
func (m *Model) children(node int) (first, last int, ok bool) {
	rank := m.context.Rank1(node)
	zero, next := m.rootFirst, m.rootSecond
	if rank != 0 {
		zero, next = m.context.Select0s(rank)
	}
	first = zero + 1
	if !m.context.Get(first) {
		return 0, 0, false
	}
	return first, next - 1, true
}

// child returns the bit position of the child of node labelled label.
func (m *Model) child(node int, label Label) (int, bool) {
	first, last, ok := m.children(node)
	if !ok {
		return 0, false
	}
	base := m.context.Rank1(first)
	n := last - first + 1
	if node == 0 {
		base = m.rootChildren
	}
	i := sort.Search(n, func(i int) bool {
		return m.contextWord(base+i) >= label
	})
	if i == n || m.contextWord(base+i) != label {
		return 0, false
	}
	return first + i, true
}

// searchFuture finds label among the future arcs of inst's state and
// returns its index relative to the state's first future arc.
func (m *Model) searchFuture(inst *instance, label Label) (int, bool) {
	i := sort.Search(inst.numFutures, func(i int) bool {
		return m.futureWord(inst.offset+i) >= label
	})
	if i == inst.numFutures || m.futureWord(inst.offset+i) != label {
		return 0, false
	}
	return i, true
}

func (m *Model) setFuture(s StateID, inst *instance) {
	if inst.state != s {
		inst.state = s
		first, second := m.future.Select0s(int(s))
		inst.numFutures = second - first - 1
		inst.offset = m.future.Rank1(first + 1)
	}
}

func (m *Model) setNode(inst *instance) {
	if inst.nodeState != inst.state {
		inst.nodeState = inst.state
		inst.node = m.context.Select1(int(inst.state))
	}
}

func (m *Model) setContext(inst *instance) {
	m.setNode(inst)
	if inst.contextState != inst.state {
		inst.contextState = inst.state
		inst.context = inst.context[:0]
		for node := inst.node; node != 0; {
			inst.context = append(inst.context, m.contextWord(m.context.Rank1(node)))
			node = m.context.Select1(m.context.Rank0(node) - 1)
		}
	}
}
