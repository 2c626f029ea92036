// Package batch converts sets of documents: one output per input, or every
// input merged into a single output under one header.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/xml2csv/api"
	"github.com/agentic-research/xml2csv/internal/config"
	"github.com/agentic-research/xml2csv/internal/flatten"
	"github.com/agentic-research/xml2csv/internal/sink"
	"github.com/agentic-research/xml2csv/internal/stats"
	"github.com/agentic-research/xml2csv/internal/tree"
)

var (
	// ErrNotExist marks an input path that was not found.
	ErrNotExist = errors.New("input does not exist")
	// ErrOutputConflict marks an input whose output path an earlier input
	// already claimed.
	ErrOutputConflict = errors.New("output path already claimed by another input")
)

// Result is the outcome for one input document.
type Result struct {
	Input  string
	Output string
	Rows   int
	Err    error
}

// Report collects per-input results. A failed input never stops the others.
type Report struct {
	Results []Result
	// Err is set when the merged output itself could not be written.
	Err error
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether at least one input converted and the output (if any)
// was written.
func (r Report) OK() bool {
	return r.Err == nil && len(r.Failed()) < len(r.Results)
}

// Runner converts documents read from FS and writes outputs back to it.
type Runner struct {
	FS     billy.Filesystem
	Config config.Config
	Log    *slog.Logger
}

func (r *Runner) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *Runner) flattener() flatten.Flattener {
	return flatten.Flattener{DescendSelected: r.Config.DescendSelected}
}

// Expand resolves inputs into document paths. Directories are walked for
// files with a supported extension; missing paths are returned as failed
// results.
func (r *Runner) Expand(inputs []string) ([]string, []Result) {
	var files []string
	var missing []Result
	for _, in := range inputs {
		info, err := r.FS.Stat(in)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w: %s", ErrNotExist, in)
			}
			missing = append(missing, Result{Input: in, Err: err})
			continue
		}
		if !info.IsDir() {
			files = append(files, in)
			continue
		}

		var found []string
		walkErr := util.Walk(r.FS, in, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && tree.IsSupported(p) {
				found = append(found, p)
			}
			return nil
		})
		if walkErr != nil {
			missing = append(missing, Result{Input: in, Err: fmt.Errorf("walk %s: %w", in, walkErr)})
			continue
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, missing
}

// ConvertEach writes one output per input. Inputs share no state, so they
// are converted in parallel, up to Config.Concurrency at a time.
//
// Output paths are planned before any conversion starts. When two inputs
// map to the same output (x.xml and x.json, or equal file names under
// OutputDir), the first in input order keeps it and the others fail with
// ErrOutputConflict.
func (r *Runner) ConvertEach(ctx context.Context, inputs []string) Report {
	files, missing := r.Expand(inputs)
	for _, m := range missing {
		r.log().Warn("skipping input", "input", m.Input, "error", m.Err)
	}

	results := make([]Result, len(files))
	outputs := r.planOutputs(files, results)

	g := new(errgroup.Group)
	g.SetLimit(r.Config.Workers())
	for i, in := range files {
		if results[i].Err != nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Input: in, Err: err}
				return nil
			}
			results[i] = r.convertOne(in, outputs[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			r.log().Warn("conversion failed", "input", res.Input, "error", res.Err)
		} else {
			r.log().Info("wrote output", "input", res.Input, "output", res.Output, "rows", res.Rows)
		}
	}
	return Report{Results: append(missing, results...)}
}

// planOutputs resolves the output path of every file. Files that cannot
// get a path of their own have their failure recorded in results.
func (r *Runner) planOutputs(files []string, results []Result) []string {
	outputs := make([]string, len(files))
	claimed := make(map[string]string, len(files))
	for i, in := range files {
		out, err := r.outputPath(in)
		if err != nil {
			results[i] = Result{Input: in, Err: err}
			continue
		}
		if first, ok := claimed[out]; ok {
			results[i] = Result{Input: in, Err: fmt.Errorf("%w: %s is written from %s", ErrOutputConflict, out, first)}
			continue
		}
		claimed[out] = in
		outputs[i] = out
	}
	return outputs
}

func (r *Runner) convertOne(in, out string) Result {
	res := Result{Input: in}
	doc, err := r.parse(in)
	if err != nil {
		res.Err = err
		return res
	}

	h := flatten.NewHeader()
	rows := r.flattener().Convert(doc, h)
	if err := r.write(out, r.finish(h, rows)); err != nil {
		res.Err = fmt.Errorf("write %s: %w", out, err)
		return res
	}
	res.Output = out
	res.Rows = len(rows)
	return res
}

// Merge converts inputs in order against one shared header and writes a
// single output to Config.MergeInto. Documents that fail to parse are
// skipped.
func (r *Runner) Merge(ctx context.Context, inputs []string) Report {
	files, results := r.Expand(inputs)
	for _, m := range results {
		r.log().Warn("skipping input", "input", m.Input, "error", m.Err)
	}

	fl := r.flattener()
	h := flatten.NewHeader()
	var rows []api.Row
	var merged []int
	for _, in := range files {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Input: in, Err: err})
			continue
		}
		doc, err := r.parse(in)
		if err != nil {
			r.log().Warn("skipping input", "input", in, "error", err)
			results = append(results, Result{Input: in, Err: err})
			continue
		}
		got := fl.Convert(doc, h)
		rows = append(rows, got...)
		merged = append(merged, len(results))
		results = append(results, Result{Input: in, Rows: len(got)})
	}

	report := Report{Results: results}
	out, err := r.mergePath()
	if err == nil {
		err = r.write(out, r.finish(h, rows))
	}
	if err != nil {
		report.Err = fmt.Errorf("write merged output: %w", err)
		return report
	}
	for _, i := range merged {
		report.Results[i].Output = out
	}
	r.log().Info("wrote merged output", "output", out, "inputs", len(merged), "rows", len(rows))
	return report
}

func (r *Runner) parse(in string) (*tree.Node, error) {
	f, err := r.FS.Open(in)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return tree.Parse(in, f)
}

func (r *Runner) finish(h *flatten.Header, rows []api.Row) *api.Table {
	t := flatten.Table(h, rows)
	if r.Config.PruneEmpty {
		t = stats.Prune(t)
	}
	return t
}

// outputPath places <stem><ext> in OutputDir, or next to the input.
func (r *Runner) outputPath(in string) (string, error) {
	ext, err := sink.Ext(r.Config.Format)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(in)
	if r.Config.OutputDir != "" {
		dir = r.Config.OutputDir
		if err := r.FS.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return r.FS.Join(dir, stem+ext), nil
}

// mergePath resolves MergeInto: an existing directory gets merged<ext>
// inside it; otherwise parent directories are created.
func (r *Runner) mergePath() (string, error) {
	target := r.Config.MergeInto
	if target == "" {
		return "", errors.New("no merge target configured")
	}
	if info, err := r.FS.Stat(target); err == nil && info.IsDir() {
		ext, err := sink.Ext(r.Config.Format)
		if err != nil {
			return "", err
		}
		return r.FS.Join(target, "merged"+ext), nil
	}
	if dir := filepath.Dir(target); dir != "." && dir != string(filepath.Separator) {
		if err := r.FS.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create merge dir: %w", err)
		}
	}
	return target, nil
}

func (r *Runner) write(path string, t *api.Table) error {
	if !sink.IsStream(r.Config.Format) {
		return r.writeSQLite(path, t)
	}
	f, err := r.FS.Create(path)
	if err != nil {
		return err
	}
	var w sink.Writer
	switch r.Config.Format {
	case sink.FormatJSONL:
		w = &sink.JSONLines{W: f, Encoding: r.Config.Encoding}
	default:
		w = &sink.CSV{W: f, Delimiter: r.Config.Delimiter, Encoding: r.Config.Encoding}
	}
	werr := w.Write(t)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// writeSQLite builds the database in a local temp file, since the driver
// needs a real path, then copies it into FS.
func (r *Runner) writeSQLite(path string, t *api.Table) error {
	tmp, err := os.CreateTemp("", "xml2csv-*.db")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := (&sink.SQLite{Path: tmpPath, Table: r.Config.Table}).Write(t); err != nil {
		return err
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}
	return util.WriteFile(r.FS, path, data, 0o644)
}
