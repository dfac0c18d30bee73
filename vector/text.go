package vector

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milden6/ngramfst"
)

// ErrSyntax is returned for malformed text input.
var ErrSyntax = errors.New("vector: syntax error")

// ReadText reads an acceptor in AT&T text form. Each line is either an
// arc, "src dst label [weight]", or a final state, "state [weight]". The
// source of the first arc is the start state. Labels are looked up in
// syms if it is not nil and parsed as integers otherwise; EpsilonSymbol
// is always label 0. A missing weight is One.
func ReadText(r io.Reader, syms *SymbolTable) (*Acceptor, error) {
	a := New()

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		src, err := parseState(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		a.ensure(src)
		if a.start == ngramfst.NoStateID {
			a.start = src
		}

		switch len(fields) {
		case 1, 2:
			w := ngramfst.One()
			if len(fields) == 2 {
				if w, err = parseWeight(fields[1]); err != nil {
					return nil, errors.Wrapf(err, "line %d", line)
				}
			}
			a.SetFinal(src, w)

		case 3, 4:
			dst, err := parseState(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			label, err := parseLabel(fields[2], syms)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			w := ngramfst.One()
			if len(fields) == 4 {
				if w, err = parseWeight(fields[3]); err != nil {
					return nil, errors.Wrapf(err, "line %d", line)
				}
			}
			a.ensure(dst)
			a.AddArc(src, ngramfst.Arc{Label: label, Weight: w, Next: dst})

		default:
			return nil, errors.Wrapf(ErrSyntax, "line %d: %d fields", line, len(fields))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading acceptor")
	}
	if a.start == ngramfst.NoStateID {
		return nil, errors.Wrap(ErrSyntax, "empty acceptor")
	}
	return a, nil
}

func parseState(field string) (ngramfst.StateID, error) {
	s, err := strconv.ParseInt(field, 10, 32)
	if err != nil || s < 0 {
		return 0, errors.Wrapf(ErrSyntax, "bad state %q", field)
	}
	return ngramfst.StateID(s), nil
}

func parseLabel(field string, syms *SymbolTable) (ngramfst.Label, error) {
	if field == EpsilonSymbol {
		return ngramfst.Epsilon, nil
	}
	if syms != nil {
		label, ok := syms.Find(field)
		if !ok {
			return 0, errors.Wrapf(ErrSyntax, "unknown symbol %q", field)
		}
		return label, nil
	}
	label, err := strconv.ParseInt(field, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "bad label %q", field)
	}
	return ngramfst.Label(label), nil
}

func parseWeight(field string) (ngramfst.Weight, error) {
	switch field {
	case "Infinity", "inf", "+inf":
		return ngramfst.Zero(), nil
	}
	w, err := strconv.ParseFloat(field, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "bad weight %q", field)
	}
	return ngramfst.Weight(w), nil
}

// WriteText writes a in the form read by ReadText. The start state's
// arcs come first; syms may be nil.
func WriteText(w io.Writer, a ngramfst.Acceptor, syms *SymbolTable) error {
	bw := bufio.NewWriter(w)

	n := a.NumStates()
	order := make([]ngramfst.StateID, 0, n)
	order = append(order, a.Start())
	for s := ngramfst.StateID(0); int(s) < n; s++ {
		if s != a.Start() {
			order = append(order, s)
		}
	}

	for _, s := range order {
		for it := a.Arcs(s); !it.Done(); it.Next() {
			arc := it.Value()
			fmt.Fprintf(bw, "%d\t%d\t%s\t%s\n", s, arc.Next, formatLabel(arc.Label, syms), formatWeight(arc.Weight))
		}
		if final := a.Final(s); !final.IsZero() {
			fmt.Fprintf(bw, "%d\t%s\n", s, formatWeight(final))
		}
	}
	return bw.Flush()
}

func formatLabel(label ngramfst.Label, syms *SymbolTable) string {
	if syms != nil {
		if word, ok := syms.Word(label); ok {
			return word
		}
	}
	if label == ngramfst.Epsilon {
		return EpsilonSymbol
	}
	return strconv.Itoa(int(label))
}

func formatWeight(w ngramfst.Weight) string {
	if math.IsInf(float64(w), 1) {
		return "Infinity"
	}
	return strconv.FormatFloat(float64(w), 'g', -1, 32)
}
