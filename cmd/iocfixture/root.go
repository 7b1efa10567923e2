package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/axondata/go-iocfixture"
)

var (
	verbose      bool
	manifestPath string
	templateArgs []string
)

var rootCmd = &cobra.Command{
	Use:   "iocfixture",
	Short: "Run a simulated IOC from database templates",
	Long: `iocfixture launches an IOC with the given database templates, waits
for "iocRun: All initialization complete" and keeps it running until
interrupted. Templates come from --template flags and/or a TOML manifest.

A template flag is PATH or PATH:MACROS, for example:
  iocfixture run -t db/motor.db:P=SIM:,M=M1 -t db/extra.db`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "TOML manifest listing templates")
	rootCmd.PersistentFlags().StringArrayVarP(&templateArgs, "template", "t", nil, "Template as PATH or PATH:MACROS (repeatable)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// logger returns the console logger for the CLI
func logger() zerolog.Logger {
	lvl := zerolog.InfoLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// templates collects the manifest templates followed by the flag templates
func templates() ([]iocfixture.Template, error) {
	var out []iocfixture.Template
	if manifestPath != "" {
		ts, err := iocfixture.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	for _, arg := range templateArgs {
		t, err := parseTemplate(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no templates: use --template or --manifest")
	}
	return out, nil
}

// parseTemplate splits PATH:MACROS at the first colon
func parseTemplate(arg string) (iocfixture.Template, error) {
	path, macros, _ := strings.Cut(arg, ":")
	t := iocfixture.Template{Path: path, Macros: macros}
	if err := t.Validate(); err != nil {
		return iocfixture.Template{}, fmt.Errorf("template %q: %w", arg, err)
	}
	return t, nil
}
