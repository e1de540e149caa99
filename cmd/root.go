// Package cmd provides the bbcoder command-line interface.
//
// Configuration sources, highest priority first:
//
//  1. Command-line flags (--path, --output-dir, --port, ...)
//  2. Environment variables with the BBCODER_ prefix (BBCODER_OUTPUT_DIR,
//     BBCODER_SERVER_PORT, BBCODER_RENDER_STRICT, ...)
//  3. The configuration file: --config, else BBCODER_CONFIG_FILE, else
//     .bbcoder.yml in the working directory
//
// Running bbcoder without a subcommand builds, so `bbcoder main` and
// `bbcoder build main` are equivalent.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/bbcoder/internal/config"
)

const envPrefix = "BBCODER"

var cfgFile string

// rootCmd builds the requested target when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "bbcoder [TARGET]",
	Short: "Compile BBXML documents into BBCode",
	Long: `bbcoder compiles BBXML documents, an XML dialect with reusable classes
and templates, into BBCode text for forum posts.

A project manifest (project.xml) names the targets to build. Each target is
rendered to target/<name>.txt.

Quick Start:
  bbcoder                  Build the default target
  bbcoder main             Build the target "main"
  bbcoder list             List the targets of the project
  bbcoder watch            Rebuild on every change
  bbcoder serve            Preview targets in the browser`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bindPersistentFlags,
	RunE:              runBuild,
}

// Execute runs the root command and prints the error it fails with.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "ERROR:", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .bbcoder.yml, can also use BBCODER_CONFIG_FILE env var)")
	flags.StringP("path", "p", config.DefaultProject, "path to the project manifest")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text, json)")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", func(format string) error {
		return ValidateFormat(format, []string{"text", "json"})
	})

	addBuildFlags(rootCmd)
}

func bindPersistentFlags(cmd *cobra.Command, args []string) error {
	return bindFlags(cmd, map[string]string{
		"path":       "project",
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// initConfig selects the configuration file and enables environment
// overrides. A missing default file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(envPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bbcoder")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "WARNING: Unable to read config file:", err)
		}
	}
}
