package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/go-iocfixture"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the library version and IOC defaults",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := iocfixture.GetVersion()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "iocfixture %s\n", v.Version)
		fmt.Fprintf(out, "  module: %s\n", v.IOCModule)
		fmt.Fprintf(out, "  ready:  %q\n", v.ReadyMarker)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
