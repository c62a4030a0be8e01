package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MuchToMyDelight/hotspot/pkg/xlog"
	"github.com/MuchToMyDelight/hotspot/pkg/xpflag"
)

var (
	rootCmd = &cobra.Command{
		Use:           "hotspot",
		Short:         "Analyze sampled CPU profiles: hot functions, call trees, annotated source",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	logLevel   = xpflag.New("info", "debug", "info", "warn", "error")
	configPath string
)

func init() {
	rootCmd.PersistentFlags().Var(
		logLevel,
		"log-level",
		"Logging level, one of "+logLevel.Variants(),
	)
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", logLevel.Complete)

	rootCmd.PersistentFlags().StringVarP(
		&configPath,
		"config",
		"c",
		"",
		"Path to the hotspot config file",
	)
}

func newLogger() (xlog.Logger, error) {
	return xlog.New(logLevel.String())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
