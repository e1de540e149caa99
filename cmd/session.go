package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcoder/internal/build"
	"github.com/conneroisu/bbcoder/internal/config"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/project"
	"github.com/conneroisu/bbcoder/internal/renderer"
	"github.com/conneroisu/bbcoder/internal/server"
	"github.com/conneroisu/bbcoder/internal/websocket"
)

// session holds what every command needs: the configuration, a logger and
// the loaded project with its build pipeline.
type session struct {
	cfg      *config.Config
	logger   logging.Logger
	project  *project.Project
	pipeline *build.Pipeline
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// the level was validated by config.Load
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	proj, err := project.Load(cfg.Project)
	if err != nil {
		return nil, err
	}
	if !proj.DefaultTargetValid() {
		logger.Warn(cmd.Context(), nil, "Default target not found, building every target",
			"target", proj.DefaultTarget)
	}

	pipeline := build.NewPipeline(proj, build.Options{
		OutputDir: cfg.OutputDir,
		Jobs:      cfg.Jobs,
		Render: renderer.Options{
			Strict:   cfg.Render.Strict,
			MaxDepth: cfg.Render.MaxDepth,
		},
	}, logger)

	return &session{
		cfg:      cfg,
		logger:   logger,
		project:  proj,
		pipeline: pipeline,
	}, nil
}

// dependencies returns the orchestrator wiring for watch and serve.
func (s *session) dependencies(ws *websocket.Manager) server.Dependencies {
	outputDir, err := filepath.Abs(s.cfg.OutputDir)
	if err != nil {
		outputDir = s.cfg.OutputDir
	}
	return server.Dependencies{
		ManifestPath: s.cfg.Project,
		Pipeline:     s.pipeline,
		WSManager:    ws,
		Logger:       s.logger,
		Debounce:     s.cfg.Watch.Debounce,
		Extensions:   s.cfg.Watch.Extensions,
		OutputDir:    outputDir,
	}
}

// targetArg returns the optional TARGET argument.
func targetArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
