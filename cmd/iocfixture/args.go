package main

import (
	"fmt"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/axondata/go-iocfixture"
)

var argsCmd = &cobra.Command{
	Use:   "args",
	Short: "Print the IOC command line without running it",
	Args:  cobra.NoArgs,
	RunE:  runArgs,
}

func init() {
	rootCmd.AddCommand(argsCmd)
}

func runArgs(cmd *cobra.Command, args []string) error {
	ts, err := templates()
	if err != nil {
		return err
	}

	launcher, err := iocfixture.NewLauncher()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), shellquote.Join(launcher.Argv(ts...)...))
	return nil
}
