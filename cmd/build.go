package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcoder/internal/config"
)

var buildCmd = &cobra.Command{
	Use:     "build [TARGET]",
	Aliases: []string{"b"},
	Short:   "Build targets of the project",
	Long: `Build renders targets of the project manifest to <output-dir>/<target>.txt.

Without TARGET the manifest's default target is built. The special target
"_all" builds every target; each is attempted and the command fails if any
of them failed.

Examples:
  bbcoder build                     # Build the default target
  bbcoder build main                # Build the target "main"
  bbcoder build _all --jobs 4       # Build every target, four at a time
  bbcoder build --strict            # Fail on unbound placeholders and unknown classes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-dir", config.DefaultOutputDir, "directory the <target>.txt files are written to")
	cmd.Flags().IntP("jobs", "j", 1, "number of targets built concurrently")
	cmd.Flags().Bool("strict", false, "treat unbound placeholders and unknown classes as errors")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"output-dir": "output_dir",
		"jobs":       "jobs",
		"strict":     "render.strict",
	}); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	targets, err := s.project.SelectTargets(targetArg(args))
	if err != nil {
		return err
	}

	results, err := s.pipeline.Build(cmd.Context(), targets)

	failed := 0
	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintln(cmd.ErrOrStderr(), "ERROR:", result.Error)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", result.Target, result.OutputPath)
	}

	if err != nil {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}
