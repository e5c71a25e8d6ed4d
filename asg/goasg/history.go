package goasg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// FileHistory holds per-file git change metrics.
type FileHistory struct {
	Commits    int
	Authors    int
	LastAuthor string
	LastDate   string // ISO 8601
	Insertions int
	Deletions  int
}

// historyDepth bounds the number of commits read.
const historyDepth = 500

// history runs git log in the module directory and attaches change metrics
// to the file declarations.
func (b *builder) history(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "git", "log", "--format=%H %aI %aN", "--numstat",
		"--no-merges", "--relative", "-n", strconv.Itoa(historyDepth))
	cmd.Dir = b.prog.Dir
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("git log: %w", err)
	}
	hist := ParseGitLog(bytes.NewReader(out))

	var matched int
	for _, pkg := range b.prog.Module.children {
		for _, f := range pkg.children {
			h, ok := hist[f.mangled]
			if !ok {
				continue
			}
			matched++
			f.setMetric(MetricCommits, float64(h.Commits))
			f.setMetric(MetricAuthors, float64(h.Authors))
			f.setMetric(MetricInsertions, float64(h.Insertions))
			f.setMetric(MetricDeletions, float64(h.Deletions))
		}
	}
	b.log.Info("git history", zap.Int("files", len(hist)), zap.Int("matched", matched))
	return nil
}

// ParseGitLog reads `git log --format="%H %aI %aN" --numstat` output and
// returns the history of every .go file keyed by its path.
func ParseGitLog(r io.Reader) map[string]*FileHistory {
	type fileStats struct {
		FileHistory
		commits map[string]bool
		authors map[string]bool
	}
	files := make(map[string]*fileStats)

	var commit, date, author string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		// Commit header: "abc123... 2024-01-01T00:00:00+00:00 Author Name"
		if len(line) > 40 && line[40] == ' ' {
			parts := strings.SplitN(line, " ", 3)
			if len(parts) == 3 {
				commit, date, author = parts[0][:12], parts[1], parts[2]
			}
			continue
		}

		// Numstat line: "123\t456\tpath/to/file.go"
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		ins, err1 := strconv.Atoi(parts[0])
		del, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			continue // binary file
		}
		file := parts[2]
		if !strings.HasSuffix(file, ".go") {
			continue
		}

		fs, ok := files[file]
		if !ok {
			fs = &fileStats{commits: make(map[string]bool), authors: make(map[string]bool)}
			files[file] = fs
		}
		fs.commits[commit] = true
		fs.authors[author] = true
		fs.Insertions += ins
		fs.Deletions += del
		// newest first
		if fs.LastAuthor == "" {
			fs.LastAuthor = author
			fs.LastDate = date
		}
	}

	out := make(map[string]*FileHistory, len(files))
	for file, fs := range files {
		h := fs.FileHistory
		h.Commits = len(fs.commits)
		h.Authors = len(fs.authors)
		out[file] = &h
	}
	return out
}
