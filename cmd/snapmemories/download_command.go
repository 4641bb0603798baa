package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shoeless03/snapchat-memory-downloader/internal/exiftool"
	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/fetch"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var delayFlag float64

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every memory from the export, resuming where the last run stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			records, err := ctx.loadRecords(cfg)
			if err != nil {
				return err
			}
			led, err := ctx.openLedger(cfg, logger)
			if err != nil {
				return err
			}
			caps := ctx.detectTools(cfg, out)

			var tagger fetch.GPSTagger
			if caps.ExifTool {
				tool, toolErr := exiftool.New(cfg.Metadata.ExifToolBinary, cfg.Metadata.TimeoutSeconds)
				if toolErr == nil {
					tagger = tool
				}
			}

			downloader := fetch.New(fetch.Config{
				OutputDir:     cfg.Paths.OutputDir,
				Timeout:       time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
				MaxRetries:    cfg.Download.MaxRetries,
				RetryBase:     time.Duration(cfg.Download.RetryBaseSeconds * float64(time.Second)),
				SkipThreshold: cfg.Download.PermanentSkipAfter,
			}, led, tagger, caps, logger)

			delaySeconds := cfg.Download.DelaySeconds
			if delayFlag >= 0 {
				delaySeconds = delayFlag
			}
			delay := time.Duration(delaySeconds * float64(time.Second))

			runCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			fmt.Fprintf(out, "Downloading %d memories (%d already in ledger)\n",
				len(records), led.DownloadedCount())

			started := time.Now()
			summary := downloader.DownloadAll(runCtx, records, delay,
				func(index, total int, record export.MemoryRecord, success bool, message string) {
					mark := okMark("ok")
					if !success {
						mark = failMark("fail")
					}
					fmt.Fprintf(out, "[%d/%d] %s %s %s %s\n",
						index, total, mark, record.ShortSID(), dimText(record.Date), message)
				})

			fmt.Fprintln(out, renderTable(
				[]string{"Total", "Downloaded", "Skipped", "Failed", "Elapsed"},
				[][]string{{
					strconv.Itoa(summary.Total),
					strconv.Itoa(summary.Downloaded),
					strconv.Itoa(summary.Skipped),
					strconv.Itoa(summary.Failed),
					time.Since(started).Round(time.Second).String(),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			if err := runCtx.Err(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&delayFlag, "delay", -1, "Seconds to wait between downloads (overrides config)")
	return cmd
}
