// Command mindmapper serves the mind-map graph engine over HTTP and
// websocket, or runs the demo scenario offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mindmapper",
		Short: "Branching question and answer canvas",
		Long: `mindmapper keeps a graph of queries, answers and sources. Every bullet
of an answer can be expanded into a follow-up query, sourced, or asked a
custom question.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (defaults to $MINDMAPPER_CONFIG)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newDemoCmd(&configPath))
	return root
}
