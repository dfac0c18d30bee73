package main

import (
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	symbolsPath string
	noChecksum  bool
	asYAML      bool
	asText      bool
	cacheSize   int

	rootCmd = &cobra.Command{
		Use:              "ngramfst",
		Short:            "Compile and query succinct backoff n-gram models",
		SilenceUsage:     true,
		PersistentPreRun: setupLogging,
	}

	compileCmd = &cobra.Command{
		Use:   "compile <model.txt> <model.ngram>",
		Short: "Compile an AT&T text acceptor into a model file",
		Args:  cobra.ExactArgs(2),
		RunE:  runCompile,
	}

	infoCmd = &cobra.Command{
		Use:   "info <model.ngram>",
		Short: "Print model statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	scoreCmd = &cobra.Command{
		Use:   "score <model.ngram> [sentences.txt]",
		Short: "Score one sentence per line, read from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runScore,
	}

	dumpCmd = &cobra.Command{
		Use:   "dump <model.ngram>",
		Short: "Print the model layout and every state",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	rootCmd.PersistentFlags().StringVarP(&symbolsPath, "symbols", "s", "", "symbol table mapping words to labels")
	rootCmd.PersistentFlags().BoolVar(&noChecksum, "no-checksum", false, "skip payload checksum verification")

	infoCmd.Flags().BoolVar(&asYAML, "yaml", false, "print statistics as YAML")
	scoreCmd.Flags().IntVar(&cacheSize, "cache", 4096, "number of scoring steps to memoize")
	dumpCmd.Flags().BoolVar(&asText, "text", false, "print the model as an AT&T text acceptor")

	rootCmd.AddCommand(compileCmd, infoCmd, scoreCmd, dumpCmd)
}
