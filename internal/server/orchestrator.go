package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/bbcoder/internal/build"
	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/project"
	"github.com/conneroisu/bbcoder/internal/watcher"
	"github.com/conneroisu/bbcoder/internal/websocket"
)

// Dependencies contains the services coordinated by an Orchestrator.
type Dependencies struct {
	// ManifestPath is reloaded when it changes on disk.
	ManifestPath string
	Pipeline     *build.Pipeline
	// WSManager receives a message after every build. Optional.
	WSManager *websocket.Manager
	Logger    logging.Logger

	// Debounce and Extensions configure the file watcher.
	Debounce   time.Duration
	Extensions []string
	OutputDir  string
}

// Orchestrator keeps a set of targets built while their sources change:
// it runs the initial build, watches the project and include directories,
// rebuilds the targets a change affects, and reloads the manifest when it
// is edited.
type Orchestrator struct {
	deps      Dependencies
	requested string
	tracker   *build.Tracker
	watcher   *watcher.FileWatcher
	logger    logging.Logger

	// targets is the current selection; guarded by mutex.
	targets []string
	mutex   sync.RWMutex

	ctx context.Context
}

// NewOrchestrator creates an orchestrator building the targets selected by
// requested ("" for the project default).
func NewOrchestrator(deps Dependencies, requested string) (*Orchestrator, error) {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	targets, err := deps.Pipeline.Project().SelectTargets(requested)
	if err != nil {
		return nil, err
	}

	fw, err := watcher.NewFileWatcher(deps.Debounce, deps.Logger)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeOpenFile, "Unable to start file watcher", err)
	}

	o := &Orchestrator{
		deps:      deps,
		requested: requested,
		tracker:   build.NewTracker(),
		watcher:   fw,
		logger:    deps.Logger.WithComponent("orchestrator"),
		targets:   targets,
		ctx:       context.Background(),
	}
	deps.Pipeline.AddCallback(o.handleBuildResult)

	return o, nil
}

// Tracker returns the latest build results.
func (o *Orchestrator) Tracker() *build.Tracker {
	return o.tracker
}

// Pipeline returns the build pipeline.
func (o *Orchestrator) Pipeline() *build.Pipeline {
	return o.deps.Pipeline
}

// Targets returns the selected targets in name order.
func (o *Orchestrator) Targets() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]string(nil), o.targets...)
}

// HasTarget reports whether name is among the selected targets.
func (o *Orchestrator) HasTarget(name string) bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	for _, target := range o.targets {
		if target == name {
			return true
		}
	}
	return false
}

// Start builds every selected target and starts watching. Build failures
// are logged, not returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx = ctx

	o.Rebuild(ctx, o.Targets())

	o.watcher.AddFilter(watcher.ExtensionFilter(o.deps.Extensions...))
	o.watcher.AddFilter(watcher.NoHiddenFilter)
	o.watcher.AddFilter(watcher.NoBackupFilter)
	o.watcher.AddFilter(watcher.NoGitFilter)
	if o.deps.OutputDir != "" {
		o.watcher.AddFilter(watcher.ExcludeDirFilter(o.deps.OutputDir))
	}
	o.watcher.AddHandler(o.HandleFileChange)

	o.watchProject(ctx)

	if err := o.watcher.Start(ctx); err != nil {
		return errors.NewIOError(errors.ErrCodeOpenFile, "Unable to start file watcher", err)
	}
	o.logger.Info(ctx, "Watching for changes", "directories", len(o.watcher.WatchList()))
	return nil
}

// Stop stops watching.
func (o *Orchestrator) Stop() error {
	return o.watcher.Stop()
}

// Rebuild builds the given targets and logs the outcome.
func (o *Orchestrator) Rebuild(ctx context.Context, targets []string) []build.Result {
	if len(targets) == 0 {
		return nil
	}
	results, err := o.deps.Pipeline.Build(ctx, targets)
	if err != nil {
		o.logger.Error(ctx, err, "Build failed", "targets", targets)
	} else {
		o.logger.Info(ctx, "Build succeeded", "targets", targets)
	}
	return results
}

// HandleFileChange rebuilds the targets affected by a batch of changes.
func (o *Orchestrator) HandleFileChange(events []watcher.ChangeEvent) error {
	ctx := o.ctx
	paths := watcher.Paths(events)
	o.logger.Debug(ctx, "Files changed", "paths", paths)

	if o.deps.ManifestPath != "" && containsPath(paths, o.deps.ManifestPath) {
		return o.reloadProject(ctx)
	}

	o.Rebuild(ctx, o.tracker.Affected(paths, o.Targets()))
	return nil
}

// reloadProject reloads the manifest and rebuilds the whole selection. A
// manifest that fails to load leaves the previous project in place.
func (o *Orchestrator) reloadProject(ctx context.Context) error {
	proj, err := project.Load(o.deps.ManifestPath)
	if err != nil {
		return err
	}
	if !proj.DefaultTargetValid() {
		o.logger.Warn(ctx, nil, "Default target not found", "target", proj.DefaultTarget)
	}
	targets, err := proj.SelectTargets(o.requested)
	if err != nil {
		return err
	}

	o.deps.Pipeline.SetProject(proj)
	o.mutex.Lock()
	o.targets = targets
	o.mutex.Unlock()
	o.tracker.Forget(targets)

	o.logger.Info(ctx, "Project reloaded", "targets", targets)
	o.watchProject(ctx)
	o.Rebuild(ctx, targets)
	return nil
}

// watchProject adds the project directory and every include path.
func (o *Orchestrator) watchProject(ctx context.Context) {
	proj := o.deps.Pipeline.Project()
	dirs := []string{proj.Directory}
	for _, include := range proj.Include {
		dir := include
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(proj.Directory, include)
		}
		if !isWithin(proj.Directory, dir) {
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			o.logger.Debug(ctx, "Skipping missing watch directory", "path", dir)
			continue
		}
		if err := o.watcher.AddRecursive(dir); err != nil {
			o.logger.Warn(ctx, err, "Failed to watch directory", "path", dir)
		}
	}
}

func (o *Orchestrator) handleBuildResult(result build.Result) {
	o.tracker.Record(result)

	if o.deps.WSManager == nil {
		return
	}
	msg := websocket.UpdateMessage{
		Type:      websocket.MessageRebuild,
		Target:    result.Target,
		Timestamp: time.Now(),
	}
	if result.Error != nil {
		msg.Type = websocket.MessageError
		msg.Content = result.Error.Error()
	}
	o.deps.WSManager.BroadcastMessage(msg)
}

func containsPath(paths []string, want string) bool {
	wantAbs, err := filepath.Abs(want)
	if err != nil {
		wantAbs = filepath.Clean(want)
	}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		if abs == wantAbs {
			return true
		}
	}
	return false
}

// isWithin reports whether path is root or below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
