package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sagraph/graph"
	"sagraph/sqlitedb"
)

const (
	statusSuccess = "success"
	statusPartial = "partial success"
)

// sideOutputs are the optional exports written next to a saved graph.
type sideOutputs struct {
	xml      string
	csv      string
	edgesCSV string
	sqlite   string
	// appendLog receives one summary line per run.
	appendLog string
	types     []string
}

func (o *sideOutputs) flags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.xml, "xml", "", "Also write the graph as XML")
	f.StringVar(&o.csv, "csv", "", "Also write node attributes as CSV")
	f.StringVar(&o.edgesCSV, "edges-csv", "", "Also write edges as CSV")
	f.StringVar(&o.sqlite, "sqlite", "", "Also write a SQLite database")
	f.StringVar(&o.appendLog, "append-log", "", "Append a run summary line to this file")
	f.StringSliceVar(&o.types, "types", nil, "Restrict XML and CSV output to these node types")
}

// write produces every requested output. Failures are logged and reported
// as a partial success; they never fail the run.
func (o *sideOutputs) write(c *cli, g *graph.Graph) string {
	opts := c.cfg.ExportOptions()
	opts.NodeTypes = o.types
	status := statusSuccess
	fail := func(what string, err error) {
		c.log.Error("side output failed", zap.String("output", what), zap.Error(err))
		status = statusPartial
	}

	if o.xml != "" {
		if err := writeFile(c.log, o.xml, func(w io.Writer) error { return graph.ExportXML(w, g, opts) }); err != nil {
			fail("xml", err)
		}
	}
	if o.csv != "" {
		if err := writeFile(c.log, o.csv, func(w io.Writer) error { return graph.ExportNodesCSV(w, g, opts) }); err != nil {
			fail("csv", err)
		}
	}
	if o.edgesCSV != "" {
		if err := writeFile(c.log, o.edgesCSV, func(w io.Writer) error { return graph.ExportEdgesCSV(w, g, opts) }); err != nil {
			fail("edges-csv", err)
		}
	}
	if o.sqlite != "" {
		if err := sqlitedb.Write(o.sqlite, g, c.log); err != nil {
			fail("sqlite", err)
		}
	}
	if o.appendLog != "" {
		if err := appendRunLog(o.appendLog, g, status); err != nil {
			fail("append-log", err)
		}
	}
	return status
}

func writeFile(log *zap.Logger, path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 1<<16)
	if err := fn(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logSize(log, "wrote", path)
	return nil
}

func logSize(log *zap.Logger, msg, path string) {
	if info, err := os.Stat(path); err == nil {
		log.Info(msg, zap.String("path", path), zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
}

// appendRunLog adds one tab separated line: time, run id, mode, status,
// node and edge counts.
func appendRunLog(path string, g *graph.Graph, status string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%s\t%s\t%s\t%s\t%d\t%d\n",
		time.Now().UTC().Format(time.RFC3339), g.HeaderInfo(headerRunID), g.HeaderInfo(headerMode),
		status, g.NodeCount(), g.EdgeCount())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
