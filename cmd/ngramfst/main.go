// Command ngramfst compiles backoff language models in AT&T text form
// into succinct model files and queries them.
package main

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

var logLevels = map[bool]log.Level{
	false: log.InfoLevel,
	true:  log.DebugLevel,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("ngramfst")
	}
}

func setupLogging(cmd *cobra.Command, args []string) {
	log.SetHandler(cli.New(cmd.ErrOrStderr()))
	log.SetLevel(logLevels[verbose])
}
