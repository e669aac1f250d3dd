// Command knngraph builds k-nearest-neighbor graphs from CSV point files and
// removes shortcut edges from them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "knngraph",
	Short: "Build and repair k-nearest-neighbor graphs",
	Long: `knngraph builds the k-nearest-neighbor graph of a set of points and
removes shortcut edges that jump across the manifold the points lie on.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
