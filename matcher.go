package ngramfst

// Matcher finds the arc of a state carrying a given label by binary
// search, without enumerating the state's arcs. It does not chain across
// backoff levels: a label missing from a state is reported as no match
// and the caller retries through the backoff arc (see Scorer).
//
// A Matcher is not safe for concurrent use.
type Matcher struct {
	m    *Model
	inst instance

	implicitLoop bool

	done        bool
	arc         Arc
	currentLoop bool
	loop        Arc
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithImplicitLoop makes Find(NoLabel) match a weight One self-loop on
// the current state.
func WithImplicitLoop() MatcherOption {
	return func(mt *Matcher) {
		mt.implicitLoop = true
	}
}

// NewMatcher returns a matcher positioned on the start state.
func (m *Model) NewMatcher(opts ...MatcherOption) *Matcher {
	mt := &Matcher{
		m:    m,
		inst: newInstance(),
		done: true,
		loop: Arc{Label: NoLabel, Weight: One(), Next: NoStateID},
	}
	for _, opt := range opts {
		opt(mt)
	}
	mt.SetState(m.Start())
	return mt
}

// SetState selects the state subsequent Find calls search.
func (mt *Matcher) SetState(s StateID) {
	mt.m.setFuture(s, &mt.inst)
	mt.currentLoop = false
	mt.done = true
}

// State returns the current state.
func (mt *Matcher) State() StateID {
	return mt.inst.state
}

// Find looks up label in the current state and reports whether an arc
// was found. Epsilon finds the backoff arc; NoLabel finds the implicit
// self-loop if it is enabled.
func (mt *Matcher) Find(label Label) bool {
	mt.done = true
	mt.currentLoop = false

	switch {
	case label == NoLabel:
		if mt.implicitLoop {
			mt.currentLoop = true
			mt.loop.Next = mt.inst.state
		}
	case label == Epsilon:
		// the unigram state has no backoff arc
		if mt.inst.state != 0 {
			mt.m.setNode(&mt.inst)
			mt.arc = Arc{
				Label:  Epsilon,
				Weight: mt.m.BackoffWeight(mt.inst.state),
				Next:   mt.m.parentOf(mt.inst.node),
			}
			mt.done = false
		}
	default:
		if i, ok := mt.m.searchFuture(&mt.inst, label); ok {
			mt.m.setContext(&mt.inst)
			mt.arc = Arc{
				Label:  label,
				Weight: mt.m.weightAt(mt.m.layout.futureProbs, mt.inst.offset+i),
				Next:   mt.m.Transition(mt.inst.context, label),
			}
			mt.done = false
		}
	}
	return !mt.Done()
}

// Done reports whether there is no current match.
func (mt *Matcher) Done() bool {
	return !mt.currentLoop && mt.done
}

// Value returns the matched arc.
func (mt *Matcher) Value() Arc {
	if mt.currentLoop {
		return mt.loop
	}
	return mt.arc
}

// Next moves past the matched arc.
func (mt *Matcher) Next() {
	if mt.currentLoop {
		mt.currentLoop = false
	} else {
		mt.done = true
	}
}

// Priority returns the number of arcs of s, the cost of enumerating it.
func (mt *Matcher) Priority(s StateID) int {
	return mt.m.NumArcs(s)
}
