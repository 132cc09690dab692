package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"fxarchive/pkg/config"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/metrics"
	"fxarchive/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	noBanner   bool
)

// errSilent marks a failure that has already been reported to the user.
var errSilent = errors.New("")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fxarchive",
	Short: "Download your ImageFX generation history",
	Long: `fxarchive downloads every image you generated with ImageFX on labs.google,
together with its prompt, into one folder per creation date.

It needs the browser cookie of a signed-in session. Store one with
'fxarchive auth login' or pass it with --cookie / FXARCHIVE_COOKIE.

Running without a subcommand is the same as 'fxarchive run'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if noBanner {
			return
		}
		switch cmd.Name() {
		case "version", "help", "show":
		default:
			ui.PrintBanner()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			ui.PrintError("Error", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default: ./.fxarchive.yaml or ~/.config/fxarchive/config.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "also write logs to this file, rotated by size")
	pf.StringP("output", "o", "", "output directory")
	pf.String("checkpoint", "", "checkpoint file holding the discovered item list")
	pf.String("metrics-addr", "", "serve Prometheus metrics on host:port while running")
	pf.StringP("account", "a", "", "use a stored session")
	pf.String("cookie", "", "cookie header of a signed-in labs.google session")
	pf.String("base-url", "", "ImageFX tRPC endpoint")
	pf.Int("max-attempts", 0, "attempts per request, including the first")
	pf.Float64("backoff-factor", 0, "retry backoff factor in seconds")
	pf.Duration("timeout", 0, "timeout of a single request attempt")
	pf.Int("rpm", 0, "maximum requests per minute (0 = unlimited)")
	pf.String("retry-statuses", "", "comma-separated HTTP statuses to retry, e.g. 429,503")
	pf.BoolVar(&noBanner, "no-banner", false, "do not print the banner")

	addRunFlags(rootCmd)

	rootCmd.SetVersionTemplate(`fxarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// flagKinds lists the flags that map onto config keys.
var flagKinds = map[string]string{
	"account":        "string",
	"cookie":         "string",
	"base-url":       "string",
	"max-attempts":   "int",
	"backoff-factor": "float64",
	"timeout":        "duration",
	"rpm":            "int",
	"max-items":      "int",
	"page-delay":     "duration",
	"concurrency":    "int",
	"skip-existing":  "bool",
	"output":         "string",
	"checkpoint":     "string",
	"log-level":      "string",
	"log-file":       "string",
	"metrics-addr":   "string",
	"retry-statuses": "statuses",
}

// collectFlags returns the config flags the user explicitly set on cmd.
// Only a malformed --retry-statuses list is reported as an error.
func collectFlags(cmd *cobra.Command) (map[string]interface{}, error) {
	flags := make(map[string]interface{})
	fs := cmd.Flags()
	for name, kind := range flagKinds {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		var (
			v   interface{}
			err error
		)
		switch kind {
		case "string":
			v, err = fs.GetString(name)
		case "int":
			v, err = fs.GetInt(name)
		case "float64":
			v, err = fs.GetFloat64(name)
		case "duration":
			v, err = fs.GetDuration(name)
		case "bool":
			v, err = fs.GetBool(name)
		case "statuses":
			var raw string
			if raw, err = fs.GetString(name); err == nil {
				if v, err = config.ParseStatusList(raw); err != nil {
					return nil, fmt.Errorf("--%s: %w", name, err)
				}
			}
		}
		if err == nil {
			flags[name] = v
		}
	}
	return flags, nil
}

// loadConfig loads the configuration for cmd and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags, err := collectFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// startMetrics serves /metrics when an address is configured. The returned
// stop function is always safe to call.
func startMetrics(cfg *config.Config) (func(), error) {
	if cfg.Metrics.Listen == "" {
		return func() {}, nil
	}

	srv, err := metrics.Start(cfg.Metrics.Listen, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	ui.PrintInfo("Metrics", "http://"+srv.Addr()+"/metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
