package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sagraph/graph"
)

func newMergeCmd(c *cli) *cobra.Command {
	var out sideOutputs
	cmd := &cobra.Command{
		Use:   "merge <out.graph> <in.graph>...",
		Short: "Union saved graphs into one",
		Long: `Nodes are matched by UID. The header of the first input wins, except for
the mode and run id which describe the merge itself.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst := graph.New()
			for _, in := range args[1:] {
				src, err := graph.Load(in)
				if err != nil {
					return err
				}
				if err := dst.Merge(src); err != nil {
					return err
				}
				c.log.Info("merged", zap.String("path", in), zap.Int("nodes", dst.NodeCount()), zap.Int("edges", dst.EdgeCount()))
			}
			dst.SetHeaderInfo(headerMode, "merge")
			dst.SetHeaderInfo(headerRunID, uuid.NewString())
			if err := dst.Save(args[0]); err != nil {
				return err
			}
			logSize(c.log, "saved graph", args[0])
			c.log.Info("merge finished", zap.String("status", out.write(c, dst)))
			return nil
		},
	}
	out.flags(cmd)
	return cmd
}
