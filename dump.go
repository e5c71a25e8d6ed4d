package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sagraph/graph"
)

func newDumpCmd(c *cli) *cobra.Command {
	var out sideOutputs
	cmd := &cobra.Command{
		Use:   "dump <in.graph>",
		Short: "Print a summary of a saved graph and export it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, k := range g.HeaderKeys() {
				fmt.Fprintf(w, "%s: %s\n", k, g.HeaderInfo(k))
			}
			fmt.Fprintf(w, "nodes: %d\nedges: %d\n", g.NodeCount(), g.EdgeCount())
			c.log.Info("dump finished", zap.String("status", out.write(c, g)))
			return nil
		},
	}
	out.flags(cmd)
	return cmd
}
