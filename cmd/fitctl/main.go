// Command fitctl runs the console's form rules from the shell: masking
// numeric input, checking a sale before it is sent, and issuing
// development tokens.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitcompany/console/internal/config"
)

// errRejected marks a run whose input failed validation. The reason has
// already been printed.
var errRejected = errors.New("rejected")

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var consoleFile string

	root := &cobra.Command{
		Use:           "fitctl",
		Short:         "Form rules of the inventory console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&consoleFile, "config", os.Getenv("CONSOLE_CONFIG"), "console YAML file (fields, limits, form codes)")

	console := func() (config.Console, error) {
		if consoleFile == "" {
			return config.DefaultConsole(), nil
		}
		return config.LoadConsole(consoleFile)
	}

	root.AddCommand(
		newMaskCmd(console),
		newValidateVentaCmd(console),
		newTokenCmd(),
	)
	return root
}
