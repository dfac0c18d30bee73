package ngramfst

// Arc value flags select which fields ArcCursor.Value computes.
const (
	ArcLabelValue uint8 = 1 << iota
	ArcWeightValue
	ArcNextValue

	ArcValueFlags = ArcLabelValue | ArcWeightValue | ArcNextValue
)

// ArcCursor enumerates the arcs of one state. Position 0 is the backoff
// arc for every state but the unigram state; the future arcs follow in
// label order. Each field of the current arc is computed on first use and
// cached until the position changes.
//
// An ArcCursor is not safe for concurrent use.
type ArcCursor struct {
	m     *Model
	inst  instance
	pos   int
	arc   Arc
	lazy  uint8
	flags uint8
}

// NewArcCursor returns a cursor over the arcs of s.
func (m *Model) NewArcCursor(s StateID) *ArcCursor {
	c := &ArcCursor{
		m:     m,
		inst:  newInstance(),
		lazy:  ArcValueFlags,
		flags: ArcValueFlags,
	}
	m.setFuture(s, &c.inst)
	m.setNode(&c.inst)
	return c
}

// State returns the state whose arcs are enumerated.
func (c *ArcCursor) State() StateID {
	return c.inst.state
}

func (c *ArcCursor) hasBackoff() bool {
	return c.inst.node != 0
}

// Len returns the number of arcs.
func (c *ArcCursor) Len() int {
	if c.hasBackoff() {
		return c.inst.numFutures + 1
	}
	return c.inst.numFutures
}

// Done reports whether the cursor is past the last arc.
func (c *ArcCursor) Done() bool {
	return c.pos >= c.Len()
}

// current reports whether the current arc is the backoff arc, and
// otherwise returns the index of the current future arc.
func (c *ArcCursor) current() (backoff bool, future int) {
	if !c.hasBackoff() {
		return false, c.pos
	}
	if c.pos == 0 {
		return true, 0
	}
	return false, c.pos - 1
}

// Label returns the label of the current arc.
func (c *ArcCursor) Label() Label {
	if c.lazy&ArcLabelValue != 0 {
		if backoff, i := c.current(); backoff {
			c.arc.Label = Epsilon
		} else {
			c.arc.Label = c.m.futureWord(c.inst.offset + i)
		}
		c.lazy &^= ArcLabelValue
	}
	return c.arc.Label
}

// Weight returns the weight of the current arc.
func (c *ArcCursor) Weight() Weight {
	if c.lazy&ArcWeightValue != 0 {
		if backoff, i := c.current(); backoff {
			c.arc.Weight = c.m.BackoffWeight(c.inst.state)
		} else {
			c.arc.Weight = c.m.weightAt(c.m.layout.futureProbs, c.inst.offset+i)
		}
		c.lazy &^= ArcWeightValue
	}
	return c.arc.Weight
}

// Target returns the destination of the current arc. For a future arc
// this is a Transition over the state's context, which is computed once
// per cursor.
func (c *ArcCursor) Target() StateID {
	if c.lazy&ArcNextValue != 0 {
		if backoff, _ := c.current(); backoff {
			c.arc.Next = c.m.parentOf(c.inst.node)
		} else {
			c.m.setContext(&c.inst)
			c.arc.Next = c.m.Transition(c.inst.context, c.Label())
		}
		c.lazy &^= ArcNextValue
	}
	return c.arc.Next
}

// Value returns the current arc. Fields not selected by the flags are
// left as they were.
func (c *ArcCursor) Value() Arc {
	if c.flags&ArcLabelValue != 0 {
		c.Label()
	}
	if c.flags&ArcWeightValue != 0 {
		c.Weight()
	}
	if c.flags&ArcNextValue != 0 {
		c.Target()
	}
	return c.arc
}

// Next advances to the next arc.
func (c *ArcCursor) Next() {
	c.pos++
	c.lazy = ArcValueFlags
}

// Position returns the index of the current arc.
func (c *ArcCursor) Position() int {
	return c.pos
}

// Reset rewinds to the first arc.
func (c *ArcCursor) Reset() {
	c.pos = 0
	c.lazy = ArcValueFlags
}

// Seek moves to arc pos.
func (c *ArcCursor) Seek(pos int) {
	if c.pos != pos {
		c.pos = pos
		c.lazy = ArcValueFlags
	}
}

// Flags returns the fields computed by Value.
func (c *ArcCursor) Flags() uint8 {
	return c.flags
}

// SetFlags sets the fields selected by mask to those in flags.
func (c *ArcCursor) SetFlags(flags, mask uint8) {
	c.flags &^= mask
	c.flags |= flags & mask & ArcValueFlags
}
