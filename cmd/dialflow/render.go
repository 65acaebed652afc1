package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dialflow/dialflow/internal/compiler"
)

var renderCmd = &cobra.Command{
	Use:   "render <graph-file>",
	Short: "Render a graph definition as Graphviz DOT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		def, err := compiler.Parse(data)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		graph, _, err := compiler.Compile(def)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), compiler.RenderDOT(graph))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
