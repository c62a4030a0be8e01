package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MuchToMyDelight/hotspot/pkg/atomicfs"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/collapsed"
)

var (
	collapseInput   string
	collapseOutput  string
	collapseChannel string
	collapseEvent   string

	collapseCmd = &cobra.Command{
		Use:   "collapse",
		Short: "Convert a profile to collapsed stacks",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCollapse()
		},
	}
)

func init() {
	collapseCmd.Flags().StringVarP(
		&collapseInput,
		"input",
		"i",
		"",
		"Profile to convert (pprof, collapsed stacks or JFR)",
	)
	_ = collapseCmd.MarkFlagRequired("input")
	_ = collapseCmd.MarkFlagFilename("input")

	collapseCmd.Flags().StringVarP(
		&collapseOutput,
		"output",
		"o",
		"",
		"Write collapsed stacks here instead of stdout",
	)
	collapseCmd.Flags().StringVar(
		&collapseChannel,
		"channel",
		"",
		"Cost channel to emit (defaults to the profile's default sample type)",
	)
	collapseCmd.Flags().StringVar(
		&collapseEvent,
		"event",
		"",
		"JFR event kind to extract (cpu, wall, alloc, lock)",
	)

	rootCmd.AddCommand(collapseCmd)
}

func runCollapse() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if collapseChannel == "" {
		collapseChannel = cfg.Channel
	}
	collapseEvent = jfrEvent(collapseInput, collapseEvent, cfg)

	ctx := context.Background()

	prof, err := openProfile(ctx, logger, collapseInput, collapseEvent)
	if err != nil {
		return err
	}
	typ, err := resolveChannel(prof, collapseChannel)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	var commit func() error
	if collapseOutput != "" {
		f, err := atomicfs.Create(collapseOutput, atomicfs.WithMode(0o644))
		if err != nil {
			return err
		}
		defer func() { _ = f.Discard() }()
		w = f
		commit = f.Close
	}

	if err := collapsed.Encode(prof, w, typ); err != nil {
		return err
	}
	if commit != nil {
		if err := commit(); err != nil {
			return err
		}
	}
	logger.Info(ctx, "Converted profile",
		zap.Int("samples", len(prof.Samples)),
		zap.Int("discarded", prof.Stats.Discarded),
		zap.String("channel", prof.TypeNames[typ]),
		zap.Int64("total", prof.Totals()[typ]),
	)
	return nil
}
