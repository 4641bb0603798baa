package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/pairs"
)

func newVerifyCompositesCommand(ctx *commandContext) *cobra.Command {
	var rebuildCache bool

	cmd := &cobra.Command{
		Use:   "verify-composites",
		Short: "Report which overlay pairs have been composited",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newRunLogger(cfg)
			if err != nil {
				return err
			}
			led, err := ctx.openLedger(cfg, logger)
			if err != nil {
				return err
			}

			index := pairs.New(cfg.Paths.OutputDir, cfg.Paths.PairsCachePath, logger)
			found, err := index.FindPairs(!rebuildCache)
			if err != nil {
				return err
			}

			var done, missing, failed int
			var missingRows [][]string
			for _, pair := range found {
				kind := ledger.KindImage
				if pair.MediaType == "video" {
					kind = ledger.KindVideo
				}
				switch {
				case led.IsComposited(pair.SID, kind):
					done++
				case led.CompositeFailureCount(pair.SID, kind) > 0:
					failed++
					missingRows = append(missingRows, []string{
						pair.SID, pair.MediaType,
						strconv.Itoa(led.CompositeFailureCount(pair.SID, kind)),
					})
				default:
					missing++
					missingRows = append(missingRows, []string{pair.SID, pair.MediaType, "0"})
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Pairs", "Composited", "Pending", "Failed"},
				[][]string{{
					strconv.Itoa(len(found)),
					strconv.Itoa(done),
					strconv.Itoa(missing),
					strconv.Itoa(failed),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
			))

			if len(missingRows) > 0 {
				fmt.Fprintln(out, "Pairs without a composite:")
				fmt.Fprintln(out, renderTable(
					[]string{"SID", "Type", "Attempts"},
					missingRows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
			} else {
				fmt.Fprintln(out, okMark("All overlay pairs composited"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuildCache, "rebuild-cache", false, "Ignore the pairs cache and rescan the filesystem")
	return cmd
}
