package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sagraph/asg"
	"sagraph/asg/goasg"
	"sagraph/gcdiag"
	"sagraph/graph"
	"sagraph/graphsupport"
	"sagraph/logging"
	"sagraph/rul"
	"sagraph/strtable"
)

// Header keys stamped on every graph the CLI writes.
const (
	headerTool  = "tool"
	headerMode  = "mode"
	headerRunID = "run.id"
	headerRoot  = "root"
)

type buildFlags struct {
	diagnostics bool
	git         bool
	noCalls     bool
	slim        bool
	out         sideOutputs
}

func newBuildCmd(c *cli) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build <dir> <out.graph>",
		Short: "Build the property graph of a Go module",
		Long: `Loads every package of the module in dir, populates a graph with its
packages, files, types and functions, attaches compiler diagnostics when
requested, rolls metrics up the containment tree and saves the result.

Example:
  sagraph build . demo.graph --diagnostics --sqlite demo.db`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.build(cmd, args[0], args[1], f)
		},
	}
	cmd.Flags().BoolVar(&f.diagnostics, "diagnostics", false, "Run go build -gcflags=-m and place its diagnostics")
	cmd.Flags().BoolVar(&f.git, "git", false, "Add git change metrics to files")
	cmd.Flags().BoolVar(&f.noCalls, "no-calls", false, "Skip the SSA call graph")
	cmd.Flags().BoolVar(&f.slim, "slim", false, "Leave warning texts out of the saved graph")
	f.out.flags(cmd)
	return cmd
}

func (c *cli) build(cmd *cobra.Command, dir, outPath string, f buildFlags) error {
	ctx := cmd.Context()
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid dir: %w", err)
	}

	// Set memory limit for GC pressure
	debug.SetMemoryLimit(8 * 1024 * 1024 * 1024) // 8 GiB

	prog := logging.NewProgress(c.log)
	prog.Log("Loading packages from %s", dir)

	loaded, err := goasg.Load(ctx, dir, goasg.Options{
		SkipTests:     c.cfg.Load.SkipTests,
		SkipGenerated: c.cfg.Load.SkipGenerated,
		Calls:         !f.noCalls,
		History:       f.git,
		Logger:        c.log,
	})
	if err != nil {
		return err
	}

	g := graph.New()
	g.SetHeaderInfo(headerTool, "sagraph "+version)
	g.SetHeaderInfo(headerMode, "build")
	g.SetHeaderInfo(headerRunID, uuid.NewString())
	g.SetHeaderInfo(headerRoot, dir)

	if _, err := asg.Populate(g, []asg.Entity{loaded.Root()}, asg.Options{
		Exclude: c.cfg.Load.Exclude,
		Logger:  c.log,
	}); err != nil {
		return err
	}
	prog.Log("Populated %d nodes, %d edges", g.NodeCount(), g.EdgeCount())

	rules, err := c.rules()
	if err != nil {
		return err
	}

	if f.diagnostics {
		idx := graphsupport.NewRangeIndex(graphsupport.WithLogger(c.log))
		idx.TurnOn(g)
		prog.Verbose("Range index: %d positions in %d files", idx.Len(), idx.Files())

		prog.Log("Running compiler diagnostics")
		ws, err := gcdiag.Run(ctx, dir, "")
		if err != nil {
			// a failing build still reports the packages compiled before it
			c.log.Warn("compiler diagnostics incomplete", zap.Error(err), zap.Int("warnings", len(ws)))
		}
		excluded := asg.ExcludeMatcher(c.cfg.Load.Exclude)
		ws = slices.DeleteFunc(ws, func(w graphsupport.Warning) bool { return excluded(w.Path) })
		st := graphsupport.PlaceWarnings(g, idx, rules, ws)
		prog.Log("Placed %d warnings (%d unplaced, %d skipped)", st.Placed, st.Unplaced, st.Skipped)
		idx.TurnOff()

		graphsupport.SummarizeWarningsByPriority(g, rules)
		graphsupport.CreateGroupMetrics(g, rules)
	}

	if err := c.aggregate(g); err != nil {
		return err
	}

	mode := strtable.SaveAll
	if f.slim {
		mode = strtable.SaveSkipTemporary
	}
	if err := g.SaveWith(outPath, mode); err != nil {
		return err
	}
	logSize(c.log, "saved graph", outPath)

	status := f.out.write(c, g)
	prog.Log("Done (%s)", status)
	return nil
}

func (c *cli) rules() (*rul.Store, error) {
	if c.cfg.Rules.File == "" {
		return gcdiag.DefaultRules(), nil
	}
	return rul.LoadFile(c.cfg.Rules.File)
}

// aggregate runs the configured cumulative sum passes in order. A pass over
// a cyclic edge type leaves the graph unchanged and is skipped.
func (c *cli) aggregate(g *graph.Graph) error {
	for _, p := range c.cfg.SumPasses() {
		err := graphsupport.CumulativeSum(g, p)
		switch {
		case errors.Is(err, graphsupport.ErrCycle):
			c.log.Warn("cumulative sum skipped", zap.String("edge", p.EdgeType), zap.Error(err))
		case err != nil:
			return fmt.Errorf("cumulative sum over %s: %w", p.EdgeType, err)
		}
	}
	return nil
}
