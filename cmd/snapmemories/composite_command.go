package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shoeless03/snapchat-memory-downloader/internal/compositor"
	"github.com/shoeless03/snapchat-memory-downloader/internal/exiftool"
	"github.com/shoeless03/snapchat-memory-downloader/internal/pairs"
)

func newCompositeCommand(ctx *commandContext) *cobra.Command {
	var imagesOnly bool
	var videosOnly bool
	var rebuildCache bool
	var copyMetadata bool

	cmd := &cobra.Command{
		Use:   "composite",
		Short: "Merge overlays onto their base media",
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagesOnly && videosOnly {
				return fmt.Errorf("--images-only and --videos-only are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newRunLogger(cfg)
			if err != nil {
				return err
			}
			release, err := ctx.acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			led, err := ctx.openLedger(cfg, logger)
			if err != nil {
				return err
			}
			caps := ctx.detectTools(cfg, out)

			index := pairs.New(cfg.Paths.OutputDir, cfg.Paths.PairsCachePath, logger)
			found, err := index.FindPairs(!rebuildCache)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "No overlay pairs found")
				return nil
			}

			var copier compositor.MetadataCopier
			if (copyMetadata || cfg.Composite.CopyMetadata) && caps.ExifTool {
				tool, toolErr := exiftool.New(cfg.Metadata.ExifToolBinary, cfg.Metadata.TimeoutSeconds)
				if toolErr == nil {
					copier = tool
				}
			}

			comp := compositor.New(compositor.Config{
				OutputDir:           cfg.Paths.OutputDir,
				FFmpegBinary:        cfg.Composite.FFmpegBinary,
				FFprobeBinary:       cfg.Composite.FFprobeBinary,
				VideoTimeoutSeconds: cfg.Composite.VideoTimeoutSeconds,
				CopyMetadata:        copyMetadata || cfg.Composite.CopyMetadata,
				LedgerFlushEvery:    cfg.Composite.LedgerFlushEvery,
			}, led, copier, caps, logger)

			runCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			started := time.Now()
			summary, err := comp.Run(runCtx, found, compositor.Filter{
				ImagesOnly: imagesOnly,
				VideosOnly: videosOnly,
			}, func(index, total int, pair pairs.Pair, success bool, message string) {
				mark := okMark("ok")
				if !success {
					mark = failMark("fail")
				}
				fmt.Fprintf(out, "[%d/%d] %s %s %s %s\n",
					index+1, total, mark, pair.MediaType, pair.SID, message)
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Pairs", "Composited", "Skipped", "Failed", "Elapsed"},
				[][]string{{
					strconv.Itoa(summary.Total),
					strconv.Itoa(summary.Composited),
					strconv.Itoa(summary.Skipped),
					strconv.Itoa(summary.Failed),
					time.Since(started).Round(time.Second).String(),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&imagesOnly, "images-only", false, "Composite images only")
	cmd.Flags().BoolVar(&videosOnly, "videos-only", false, "Composite videos only")
	cmd.Flags().BoolVar(&rebuildCache, "rebuild-cache", false, "Ignore the pairs cache and rescan the filesystem")
	cmd.Flags().BoolVar(&copyMetadata, "copy-metadata", false, "Copy EXIF tags from base files onto composites (requires exiftool)")
	return cmd
}
