package vector

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milden6/ngramfst"
)

// EpsilonSymbol is the conventional name of label 0.
const EpsilonSymbol = "<eps>"

// SymbolTable maps words to labels and back.
type SymbolTable struct {
	labels map[string]ngramfst.Label
	words  map[ngramfst.Label]string
	next   ngramfst.Label
}

// NewSymbolTable returns a table holding only EpsilonSymbol.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{
		labels: make(map[string]ngramfst.Label),
		words:  make(map[ngramfst.Label]string),
	}
	st.AddSymbol(EpsilonSymbol, ngramfst.Epsilon)
	return st
}

// AddSymbol binds word to label, replacing earlier bindings of either.
func (st *SymbolTable) AddSymbol(word string, label ngramfst.Label) {
	if old, ok := st.words[label]; ok {
		delete(st.labels, old)
	}
	if old, ok := st.labels[word]; ok {
		delete(st.words, old)
	}
	st.labels[word] = label
	st.words[label] = word
	if label >= st.next {
		st.next = label + 1
	}
}

// Add returns the label of word, assigning the next free one if needed.
func (st *SymbolTable) Add(word string) ngramfst.Label {
	if label, ok := st.labels[word]; ok {
		return label
	}
	label := st.next
	st.AddSymbol(word, label)
	return label
}

// Find returns the label of word.
func (st *SymbolTable) Find(word string) (ngramfst.Label, bool) {
	label, ok := st.labels[word]
	return label, ok
}

// Word returns the word bound to label.
func (st *SymbolTable) Word(label ngramfst.Label) (string, bool) {
	word, ok := st.words[label]
	return word, ok
}

// Len returns the number of symbols.
func (st *SymbolTable) Len() int {
	return len(st.labels)
}

// Labels maps words to labels. Unknown words map to NoLabel.
func (st *SymbolTable) Labels(words []string) []ngramfst.Label {
	labels := make([]ngramfst.Label, len(words))
	for i, word := range words {
		label, ok := st.labels[word]
		if !ok {
			label = ngramfst.NoLabel
		}
		labels[i] = label
	}
	return labels
}

// ReadSymbols reads a symbol table in text form: one "word label" pair
// per line.
func ReadSymbols(r io.Reader) (*SymbolTable, error) {
	st := NewSymbolTable()

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, errors.Wrapf(ErrSyntax, "symbols line %d: want 2 fields, got %d", line, len(fields))
		}
		label, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil || label < 0 {
			return nil, errors.Wrapf(ErrSyntax, "symbols line %d: bad label %q", line, fields[1])
		}
		st.AddSymbol(fields[0], ngramfst.Label(label))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading symbols")
	}
	return st, nil
}
