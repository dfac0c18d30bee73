/*
Package ngramfst stores a backoff n-gram language model as a succinct,
read-only finite-state acceptor.

A backoff model is an acceptor with one state per n-gram history. Each
state carries arcs for the words seen after its history (future arcs) and
one epsilon arc to the state of its history with the oldest word dropped
(the backoff arc). The backoff arcs form a tree whose root, the unigram
state, has the empty history.

This package turns that tree around into a trie of contexts and encodes it
level by level (LOUDS): one bit vector for the trie shape, one for the
number of future arcs of each state and one for the final states, plus
flat arrays of labels and weights. States are renumbered breadth first in
the trie, so the unigram state is always 0 and the sentence start state is
always 1. The destination of a future arc is not stored: it is found by
walking the trie with the arc label and the source state's context. A
summary of the data format is found at the top of layout.go and disk.go.

To use it, build a Model from any Acceptor with Build (the vector
subpackage provides a mutable acceptor and an AT&T text reader). Query it
through NewArcCursor, NewMatcher or a Scorer, which follows backoff arcs to
score whole sentences. A model can be written with Save and opened again
with Load, which maps the file and reads labels and weights in place.
*/
package ngramfst
