// Package cli implements the socdetect command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/config"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// app carries state shared by every command of one invocation.
type app struct {
	cfgFile  string
	logLevel string
	format   string

	cfg    *config.Config
	logger *logging.Logger
	out    *printer
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout, os.Stderr).Execute()
}

// NewRootCmd builds the command tree. Command output goes to out; logs and
// errors go to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: newPrinter(out, errOut)}

	root := &cobra.Command{
		Use:   "socdetect",
		Short: "SOC log threat detection",
		Long: `socdetect scans log files for attack patterns, stores one alert per
detected threat and re-scores alerts against recent activity.

Run it as an HTTP service with 'socdetect serve' or use the analysis
commands directly from the terminal.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml or /etc/socdetect/config.yaml)")
	root.PersistentFlags().StringVarP(&a.format, "output", "o", "table", "output format: table, json")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newAnalyzeCmd(a),
		newScoreCmd(a),
		newPurgeCmd(a),
		newStatsCmd(a),
		newRulesCmd(a),
		newGenerateCmd(a),
	)
	return root
}

func (a *app) init(logOut io.Writer) error {
	if a.format != "table" && a.format != "json" {
		return fmt.Errorf("unknown output format %q", a.format)
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	a.logger = logging.NewWithWriter(logOut, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(a.logger)
	return nil
}

func (a *app) jsonOutput() bool {
	return a.format == "json"
}
