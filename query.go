package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sagraph/asg"
	"sagraph/graph"
	"sagraph/graphsupport"
)

func newQueryCmd(c *cli) *cobra.Command {
	var col, endCol int
	cmd := &cobra.Command{
		Use:   "query <in.graph> <path> <line> [endLine]",
		Short: "Find the nodes covering a source range",
		Long: `Prints the best matching node for the range, then every node whose
position overlaps it in discovery order. Paths may be given by any unique
suffix, e.g. a path relative to the module root.`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid line %q: %w", args[2], err)
			}
			endLine := line
			if len(args) == 4 {
				if endLine, err = strconv.Atoi(args[3]); err != nil {
					return fmt.Errorf("invalid end line %q: %w", args[3], err)
				}
			}
			g, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			idx := graphsupport.NewRangeIndex(graphsupport.WithLogger(c.log))
			idx.TurnOn(g)

			ec := endCol
			if ec == 0 {
				ec = graphsupport.MaxColumn
			}
			w := cmd.OutOrStdout()
			best, ok := idx.BestMatch(g, args[1], line, col, endLine, ec)
			if !ok {
				c.log.Warn("no node at range", zap.String("path", args[1]), zap.Int("line", line), zap.Int("end_line", endLine))
				fmt.Fprintln(w, "no match")
				return nil
			}
			fmt.Fprintf(w, "best: %s\n", describe(g, best))
			for _, n := range idx.FindNodesByRange(g, args[1], line, col, endLine, ec) {
				printNode(w, g, n)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&col, "column", 0, "Start column of the range")
	cmd.Flags().IntVar(&endCol, "end-column", 0, "End column of the range (default end of line)")
	return cmd
}

func printNode(w io.Writer, g *graph.Graph, n *graph.Node) {
	fmt.Fprintf(w, "  %s\n", describe(g, n))
}

// describe renders a node as "uid type name".
func describe(g *graph.Graph, n *graph.Node) string {
	name := ""
	if s, ok := n.Attribute(asg.AttrName).(*graph.StringAttribute); ok {
		name = g.StringValue(s)
	}
	return fmt.Sprintf("%s %s %s", n.UID(), n.TypeName(), name)
}
