// Command sheetctl interprets drawing sheets from the command line and
// inspects the session history kept by the interpreter service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetctl",
		Short: "Interpret architectural drawing sheets",
		Long: `sheetctl runs the drawing interpretation pipeline locally.

It reads a sheet as JSON or SVG and prints the interpretation result.
Results can be drawn back to SVG, and past sessions listed from a history
database.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", os.Getenv("INTERP_CONFIG_FILE"), "YAML config file")
	root.PersistentFlags().String("log-level", "", "override log.level")

	root.AddCommand(newInterpretCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newSessionsCmd())
	return root
}
