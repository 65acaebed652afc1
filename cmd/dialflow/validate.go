package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dialflow/dialflow/internal/compiler"
	"github.com/dialflow/dialflow/pkg/flow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph-file>",
	Short: "Compile a graph definition and report defects",
	Long: `Parses and compiles a graph definition, printing every structural
defect (dangling targets, duplicate ids, terminal nodes with outgoing
edges) and every warning (dead ends, unreachable nodes).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		def, err := compiler.Parse(data)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		graph, warnings, err := compiler.Compile(def)
		if err != nil {
			var cerr *flow.CompileError
			if errors.As(err, &cerr) {
				for _, issue := range cerr.Issues {
					fmt.Fprintln(cmd.ErrOrStderr(), issue.String())
				}
				return fmt.Errorf("graph rejected with %d issue(s)", len(cerr.Issues))
			}
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: node %s: %s\n", w.NodeID, w.Message)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "graph %s (version %s) is valid: %d nodes\n",
			graph.Name(), graph.Version(), graph.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
