package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Reconcile the export against the download ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newRunLogger(cfg)
			if err != nil {
				return err
			}
			records, err := ctx.loadRecords(cfg)
			if err != nil {
				return err
			}
			led, err := ctx.openLedger(cfg, logger)
			if err != nil {
				return err
			}

			result := led.VerifyDownloads(records)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, renderTable(
				[]string{"Total", "Downloaded", "Missing", "Failed", "On disk"},
				[][]string{{
					strconv.Itoa(result.Total),
					strconv.Itoa(result.Downloaded),
					strconv.Itoa(len(result.Missing)),
					strconv.Itoa(len(result.Failed)),
					humanize.Bytes(treeSize(cfg.Paths.OutputDir)),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			if len(result.Failed) > 0 {
				rows := make([][]string, 0, len(result.Failed))
				for _, item := range result.Failed {
					rows = append(rows, []string{item.SID[:min(8, len(item.SID))], item.Date, strconv.Itoa(item.Attempts)})
				}
				fmt.Fprintln(out, "Failed downloads:")
				fmt.Fprintln(out, renderTable(
					[]string{"SID", "Date", "Attempts"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
			}
			if len(result.Missing) > 0 {
				fmt.Fprintf(out, "%d memories were never attempted; run %s to fetch them\n",
					len(result.Missing), "snapmemories download")
			}
			if len(result.Missing) == 0 && len(result.Failed) == 0 {
				fmt.Fprintln(out, okMark("All memories downloaded"))
			}
			return nil
		},
	}
}

// treeSize totals file sizes under root. Errors while walking just stop
// counting; the number is informational.
func treeSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		if info, infoErr := entry.Info(); infoErr == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
