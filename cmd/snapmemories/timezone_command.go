package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shoeless03/snapchat-memory-downloader/internal/timezone"
)

func newTimezoneCommand(ctx *commandContext) *cobra.Command {
	var noGPS bool

	cmd := &cobra.Command{
		Use:   "timezone",
		Short: "Rename downloaded files from UTC into their local capture time",
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
			led, err := ctx.openLedger(cfg, logger)
			if err != nil {
				return err
			}

			gpsLookup := cfg.Timezone.GPSLookup && !noGPS
			var resolver timezone.Resolver
			if gpsLookup {
				resolver, err = timezone.NewResolver()
				if err != nil {
					fmt.Fprintf(out, "note: GPS timezone lookup unavailable (%v); using system timezone\n", err)
					resolver = nil
				}
			}

			pass := timezone.New(cfg.Paths.OutputDir, gpsLookup, led, resolver, logger)

			runCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			summary, err := pass.Run(runCtx)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Converted", "Skipped", "Failed"},
				[][]string{{
					strconv.Itoa(summary.Converted),
					strconv.Itoa(summary.Skipped),
					strconv.Itoa(summary.Failed),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noGPS, "no-gps", false, "Skip GPS lookup and use the system timezone for every file")
	return cmd
}
