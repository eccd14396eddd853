package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"matrixctl/internal/color"
	"matrixctl/internal/config"
	"matrixctl/internal/matrix"
	"matrixctl/pkg/logging"
)

// Flags shared by every subcommand
var (
	configPath   string
	debugLogging bool
	logLevel     string
	noColor      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrixctl",
		Short: "Run a build under every combination of configuration properties",
		Long: `matrixctl rewrites selected properties of a configuration file to every
combination of their allowed values, runs the build for each combination,
and reports the configurations whose output contained error or warning
lines. The original property values are restored afterwards.`,
		// SilenceUsage is set to true to prevent printing usage message on errors
		// handled by us (e.g. a missing property, a failed restore)
		SilenceUsage:      true,
		PersistentPreRunE: initGlobals,
	}
	cmd.SetVersionTemplate(`{{printf "matrixctl version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a configuration file layered on top of user and project config")
	cmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging, same as --log-level debug")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum level of log records: debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newMatrixCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSelfUpdateCmd())
	return cmd
}

func initGlobals(cmd *cobra.Command, args []string) error {
	level, err := resolveLogLevel(logLevel, debugLogging)
	if err != nil {
		return err
	}
	// Logs go to stderr; stdout carries the build output.
	logging.InitForCLI(level, cmd.ErrOrStderr())

	color.InitializeFromEnv()
	color.SetEnabled(!noColor && color.DetectEnabled() && color.IsTerminal(cmd.OutOrStdout()))
	return nil
}

// resolveLogLevel parses --log-level; --debug wins over it.
func resolveLogLevel(name string, debug bool) (logging.LogLevel, error) {
	if debug {
		return logging.LevelDebug, nil
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return level, fmt.Errorf("--log-level: %w", err)
	}
	return level, nil
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

// loadSweepConfig loads the layered configuration and applies the
// command line overrides shared by run, show and matrix.
func loadSweepConfig(storePath string, properties []string) (config.MatrixConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.MatrixConfig{}, err
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if len(properties) > 0 {
		axes := make([]matrix.Axis, 0, len(properties))
		for _, p := range properties {
			ax, err := matrix.ParseAxis(p)
			if err != nil {
				return config.MatrixConfig{}, fmt.Errorf("--property: %w", err)
			}
			axes = append(axes, ax)
		}
		cfg.Properties = axes
	}
	if err := cfg.Validate(); err != nil {
		return config.MatrixConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// completePropertyFlag offers the configured property names as "name=".
func completePropertyFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return []string{}, cobra.ShellCompDirectiveDefault
	}
	var names []string
	for _, name := range matrix.Names(cfg.Properties) {
		names = append(names, name+"=")
	}
	return names, cobra.ShellCompDirectiveNoSpace
}
