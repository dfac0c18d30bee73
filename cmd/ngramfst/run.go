package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/milden6/ngramfst"
	"github.com/milden6/ngramfst/vector"
)

func loadSymbols() (*vector.SymbolTable, error) {
	if symbolsPath == "" {
		return nil, nil
	}
	f, err := os.Open(symbolsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms, err := vector.ReadSymbols(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", symbolsPath)
	}
	log.Debugf("loaded %d symbols from %s", syms.Len(), symbolsPath)
	return syms, nil
}

func loadModel(filename string) (*ngramfst.Model, error) {
	var opts []ngramfst.Option
	if noChecksum {
		opts = append(opts, ngramfst.WithoutChecksum())
	}
	return ngramfst.Load(filename, opts...)
}

func runCompile(cmd *cobra.Command, args []string) error {
	syms, err := loadSymbols()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := vector.ReadText(f, syms)
	if err != nil {
		return errors.Wrapf(err, "reading %s", args[0])
	}

	m, err := ngramfst.Build(a)
	if err != nil {
		return errors.Wrapf(err, "compiling %s", args[0])
	}

	n, err := m.Save(args[1])
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"states":  m.NumStates(),
		"futures": m.NumFutures(),
		"final":   m.NumFinal(),
		"bytes":   n,
	}).Infof("wrote %s", args[1])
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	defer m.Close()

	stats := m.Stats()
	out := cmd.OutOrStdout()
	if asYAML {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "states\t%d\n", stats.NumStates)
	fmt.Fprintf(out, "futures\t%d\n", stats.NumFutures)
	fmt.Fprintf(out, "arcs\t%d\n", stats.NumArcs)
	fmt.Fprintf(out, "final\t%d\n", stats.NumFinal)
	fmt.Fprintf(out, "order\t%d\n", stats.Order)
	fmt.Fprintf(out, "bytes\t%d\n", stats.StorageSize)
	return nil
}

// labels maps the tokens of a sentence to labels, through syms when
// there is one. Unknown tokens map to NoLabel.
func labels(tokens []string, syms *vector.SymbolTable) []ngramfst.Label {
	if syms != nil {
		return syms.Labels(tokens)
	}
	out := make([]ngramfst.Label, len(tokens))
	for i, token := range tokens {
		label, err := strconv.ParseInt(token, 10, 32)
		if err != nil {
			label = int64(ngramfst.NoLabel)
		}
		out[i] = ngramfst.Label(label)
	}
	return out
}

func runScore(cmd *cobra.Command, args []string) error {
	syms, err := loadSymbols()
	if err != nil {
		return err
	}

	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	defer m.Close()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	sc, err := ngramfst.NewScorer(m, cacheSize)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	var total ngramfst.Weight
	sentences, oovs := 0, 0

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		score := sc.Score(labels(strings.Fields(line), syms))
		fmt.Fprintf(out, "%g\t%d\t%s\n", score.Cost, score.OOVs, line)

		total += score.Cost
		sentences++
		oovs += score.OOVs
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading sentences")
	}

	log.WithFields(log.Fields{
		"sentences": sentences,
		"oovs":      oovs,
	}).Infof("total cost %g", total)
	return out.Flush()
}

func runDump(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	defer m.Close()

	if asText {
		syms, err := loadSymbols()
		if err != nil {
			return err
		}
		return vector.WriteText(cmd.OutOrStdout(), m, syms)
	}
	return m.Dump(cmd.OutOrStdout())
}
