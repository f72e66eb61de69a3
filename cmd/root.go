// Package cmd provides the senv command-line interface.
//
// Configuration System:
//
//	Global defaults are read through multiple sources with clear precedence:
//	1. Command-line flags (--env, --log-level, etc.) - highest priority
//	2. SENV_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SENV_LOG_LEVEL, etc.)
//	4. Configuration file (.senv.yml) - lowest priority
//
// Environment resolution is separate from configuration: the analysis
// environment is located via --env, then the S2EDIR environment variable,
// then by searching for the s2e.yaml marker upward from the working
// directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/s2e-tools/senv/internal/env"
	senverrors "github.com/s2e-tools/senv/internal/errors"
	"github.com/s2e-tools/senv/internal/logging"
)

var (
	cfgFile string
	envPath string

	// log is configured once per invocation, before any subcommand runs.
	log logging.Logger = logging.Discard()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "senv",
	Short: "Manage symbolic-execution environments and analysis projects",
	Long: `senv creates and manages analysis environments for a symbolic-execution
engine: the directory layout holding the engine build, VM images, and
analysis projects, plus the per-target project scaffolding.

Quick Start:
  senv init my-env                Initialize a new environment
  senv new_project ./a.out @@     Create a project for a binary
  senv info                       Show the active environment

An environment is any directory carrying the s2e.yaml marker file. It is
located via --env, the S2EDIR environment variable, or by searching
upward from the working directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(logging.Config{
			Level:  viper.GetString("log-level"),
			Format: viper.GetString("log-format"),
		})
	},
}

// Execute runs the root command and maps structured errors onto the
// stable exit codes consumed by scripts and CI wrappers.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "senv: %v\n", err)
		return senverrors.ExitCode(err)
	}
	return 0
}

// normalizeFlags lets flags be spelled with underscores as well as
// dashes, matching the underscore style of the subcommand names.
func normalizeFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().SetNormalizeFunc(normalizeFlags)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .senv.yml, can also use SENV_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringVarP(&envPath, "env", "e", "", "environment directory (default: $S2EDIR, else marker search upward)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: explicitly specified config file path
//  2. SENV_CONFIG_FILE environment variable: custom config file path
//  3. Default: .senv.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SENV_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".senv")
	}

	// Automatic environment variable binding with the SENV_ prefix,
	// e.g. SENV_LOG_LEVEL=debug.
	viper.SetEnvPrefix("SENV")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// A missing or malformed config file is not an error; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// resolveEnv locates the active environment using the --env flag, the
// S2EDIR variable, or the marker search.
func resolveEnv() (*env.Environment, error) {
	return env.Resolve(envPath)
}
