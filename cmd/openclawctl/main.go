package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "openclawctl",
		Short:         "openclawctl — Conway Cloud deployment CLI for OpenClaw agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.AddCommand(
		newOnboardCmd(),
		newProvisionCmd(),
		newRetryCmd(),
		newStatusCmd(),
		newListCmd(),
		newStopCmd(),
		newRestartCmd(),
		newTerminateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
