package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chequeverify/internal/platform/config"
)

var Version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "chequectl",
		Short:         "Operator tooling for the cheque verification relay",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(mintTokenCmd())
	rootCmd.AddCommand(checkNumberCmd())
	rootCmd.AddCommand(verifyCmd())
	return rootCmd
}
