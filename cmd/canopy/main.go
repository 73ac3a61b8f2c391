// Command canopy runs the content repository server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Versioned, permission-checked content repository",
	Long: "Canopy is a hierarchical node repository with versioning, " +
		"pessimistic locks, ACL inheritance and a trashcan, exposed over " +
		"a REST API.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
