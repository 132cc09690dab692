package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fxarchive/pkg/config"
	"fxarchive/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fxarchive configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FXARCHIVE_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The cookie is
masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		return errSilent
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Store your session with 'fxarchive auth login'")
	fmt.Fprintln(ui.Out, "2. Run 'fxarchive config validate' after editing the file")
	fmt.Fprintln(ui.Out, "3. Start downloading with 'fxarchive run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	flags, err := collectFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	display := *cfg
	display.Session.Cookie = maskCookie(display.Session.Cookie)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	var cfg *config.Config
	flags, err := collectFlags(cmd)
	if err == nil {
		cfg, err = config.Load(configFile, flags)
	}
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return errSilent
	}

	var warnings []string
	if cfg.Session.Cookie == "" && cfg.Session.Account == "" {
		warnings = append(warnings, "no cookie or account configured, the default stored session will be used")
	}
	if cfg.Retry.RequestsPerMinute == 0 && cfg.Download.Concurrency > 10 {
		warnings = append(warnings, "high concurrency without a request rate limit may get the session throttled")
	}
	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Out, "  Checkpoint: %s\n", cfg.Output.CheckpointFile)
	fmt.Fprintf(ui.Out, "  Concurrency: %d\n", cfg.Download.Concurrency)
	fmt.Fprintf(ui.Out, "  Max attempts: %d (backoff factor %.1fs)\n", cfg.Retry.MaxAttempts, cfg.Retry.BackoffFactor)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func maskCookie(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
