package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the targets of the project",
	Long: `List the targets declared by the project manifest with their source
document and output file. The default target is marked.

Examples:
  bbcoder list                   # Table
  bbcoder list --format json     # JSON array
  bbcoder list -p site/project.xml --format yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table, json, yaml)")
	AddFlagValidation(listCmd.Flags(), "format", func(format string) error {
		return ValidateFormat(format, []string{"table", "json", "yaml"})
	})
}

// targetInfo is one row of `bbcoder list`.
type targetInfo struct {
	Name    string `json:"name" yaml:"name"`
	Source  string `json:"source" yaml:"source"`
	Output  string `json:"output" yaml:"output"`
	Default bool   `json:"default" yaml:"default"`
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	names := s.project.TargetNames()
	targets := make([]targetInfo, 0, len(names))
	for _, name := range names {
		targets = append(targets, targetInfo{
			Name:    name,
			Source:  s.project.Targets[name],
			Output:  s.pipeline.OutputPath(name),
			Default: name == s.project.DefaultTarget,
		})
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(listFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(targets)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(targets)
	case "table":
		return outputTable(out, targets)
	default:
		return fmt.Errorf("unsupported format: %s", listFormat)
	}
}

func outputTable(out io.Writer, targets []targetInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tOUTPUT\tDEFAULT")
	fmt.Fprintln(w, "----\t------\t------\t-------")
	for _, t := range targets {
		def := ""
		if t.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Source, t.Output, def)
	}
	return w.Flush()
}
