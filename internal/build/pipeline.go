// Package build turns project targets into BBCode output files.
//
// Each target is an independent unit of work: discovery over the target's
// include graph, then rendering of its root document's body into
// <output dir>/<target>.txt. Several targets can be built concurrently since
// no registry state is shared between them.
package build

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/markup"
	"github.com/conneroisu/bbcoder/internal/project"
	"github.com/conneroisu/bbcoder/internal/registry"
	"github.com/conneroisu/bbcoder/internal/renderer"
)

// DefaultOutputDir is where output files are written unless configured.
const DefaultOutputDir = "target"

// OutputExtension is appended to the target name to form the output file.
const OutputExtension = ".txt"

// Options configure a Pipeline.
type Options struct {
	OutputDir string
	// Jobs is the number of targets built concurrently.
	Jobs   int
	Render renderer.Options
}

// Result describes one target build.
type Result struct {
	Target     string
	OutputPath string
	// Output is the rendered BBCode, empty on failure.
	Output []byte
	// Documents lists every document read during discovery, root first.
	Documents []string
	Duration  time.Duration
	Error     error
}

// Callback is called after every target build.
type Callback func(result Result)

// Pipeline builds the targets of one project.
type Pipeline struct {
	project   *project.Project
	opts      Options
	logger    logging.Logger
	metrics   *Metrics
	callbacks []Callback
	mu        sync.RWMutex
}

// NewPipeline creates a pipeline for proj.
func NewPipeline(proj *project.Project, opts Options, logger logging.Logger) *Pipeline {
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		project: proj,
		opts:    opts,
		logger:  logger.WithComponent("build"),
		metrics: NewMetrics(),
	}
}

// Project returns the project being built.
func (p *Pipeline) Project() *project.Project {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.project
}

// SetProject replaces the project, for example after its manifest changed.
// Builds already running keep the project they started with.
func (p *Pipeline) SetProject(proj *project.Project) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.project = proj
}

// Metrics returns the pipeline's build counters.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// AddCallback registers a callback for build completion events.
func (p *Pipeline) AddCallback(cb Callback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

// OutputPath returns the file a target is written to.
func (p *Pipeline) OutputPath(target string) string {
	return filepath.Join(p.opts.OutputDir, target+OutputExtension)
}

// Build builds the named targets and returns their results in the order
// given. Every target is attempted; the returned error joins the failures of
// all targets that failed.
func (p *Pipeline) Build(ctx context.Context, targets []string) ([]Result, error) {
	results := make([]Result, len(targets))
	collector := errors.NewErrorCollector()

	jobs := p.opts.Jobs
	if jobs > len(targets) {
		jobs = len(targets)
	}

	tasks := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				results[idx] = p.BuildTarget(ctx, targets[idx])
				collector.Add(targets[idx], results[idx].Error)
			}
		}()
	}

	for idx := range targets {
		tasks <- idx
	}
	close(tasks)
	wg.Wait()

	return results, collector.Err()
}

// BuildTarget builds a single target.
func (p *Pipeline) BuildTarget(ctx context.Context, target string) Result {
	op := logging.StartOperation(p.logger, "build_target")
	start := time.Now()

	result := Result{Target: target, OutputPath: p.OutputPath(target)}
	documents, output, err := p.buildTarget(ctx, target, result.OutputPath)
	result.Documents = documents
	result.Duration = time.Since(start)

	if err != nil {
		var be *errors.BBCodeError
		if errors.As(err, &be) {
			err = be.WithTarget(target)
		}
		result.Error = err
		op.EndWithError(ctx, err, "target", target)
	} else {
		result.Output = output
		op.End(ctx, "target", target, "output", result.OutputPath, "bytes", len(output))
	}

	p.metrics.RecordBuild(result)
	p.notify(result)
	return result
}

func (p *Pipeline) buildTarget(ctx context.Context, target, outputPath string) ([]string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	proj := p.Project()
	filename, ok := proj.Targets[target]
	if !ok {
		return nil, nil, errors.NewTargetNotFoundError(target)
	}
	root, ok := proj.FindFile(filename, filepath.Dir(filename))
	if !ok {
		return nil, nil, errors.NewFileNotFoundError(filename)
	}

	reg, err := registry.NewBuilder(proj, p.logger).Build(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	documents := reg.Documents()

	// The root is read again so rendering sees the document as it is now,
	// after discovery has released it.
	document, err := markup.LoadDocument(root)
	if err != nil {
		return documents, nil, err
	}
	body, err := renderer.Body(document)
	if err != nil {
		return documents, nil, errors.AttachFile(err, root)
	}

	output, err := p.writeOutput(outputPath, func(w io.Writer) error {
		return renderer.New(reg, p.opts.Render).Render(w, body, nil)
	})
	if err != nil {
		return documents, nil, err
	}
	return documents, output, nil
}

// writeOutput creates the output file and runs render against a buffered
// writer. The file is flushed and closed on every path.
func (p *Pipeline) writeOutput(path string, render func(w io.Writer) error) (out []byte, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeCreateDir, "Unable to create output directory", err).WithFile(filepath.Dir(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeOpenFile, "Unable to create output file", err).WithFile(path)
	}

	var captured bytes.Buffer
	w := bufio.NewWriter(io.MultiWriter(f, &captured))
	defer func() {
		flushErr := w.Flush()
		closeErr := f.Close()
		if err != nil {
			return
		}
		if flushErr != nil {
			err = errors.WrapIO(flushErr, errors.ErrCodeWriteFailed, "Failed to write to output").WithFile(path)
		} else if closeErr != nil {
			err = errors.WrapIO(closeErr, errors.ErrCodeWriteFailed, "Failed to close output").WithFile(path)
		}
		if err == nil {
			out = captured.Bytes()
		}
	}()

	if err := render(w); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *Pipeline) notify(result Result) {
	p.mu.RLock()
	callbacks := make([]Callback, len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.RUnlock()

	for _, cb := range callbacks {
		cb(result)
	}
}
