package fetch

import (
	"context"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
)

// Summary aggregates the outcome of a batch run.
type Summary struct {
	Total      int
	Downloaded int
	Failed     int
	Skipped    int
}

// Progress is invoked after each record with its 1-based index and outcome.
type Progress func(index, total int, record export.MemoryRecord, success bool, message string)

// DownloadAll processes records strictly in order, one at a time, sleeping
// the inter-item delay between downloads. Records already in the ledger are
// counted as skipped without touching the network. Cancelling the context
// stops after the in-flight item; everything completed so far is already
// durable in the ledger.
func (d *Downloader) DownloadAll(ctx context.Context, records []export.MemoryRecord, delay time.Duration, progress Progress) Summary {
	summary := Summary{Total: len(records)}

	for i, record := range records {
		if ctx.Err() != nil {
			break
		}

		if d.led.IsDownloaded(record.SID) {
			summary.Skipped++
			if progress != nil {
				progress(i+1, summary.Total, record, true, "already downloaded")
			}
			continue
		}

		success, message := d.DownloadOne(ctx, record)
		if success {
			summary.Downloaded++
		} else {
			summary.Failed++
		}
		if progress != nil {
			progress(i+1, summary.Total, record, success, message)
		}

		if delay > 0 && i < len(records)-1 {
			d.sleep(delay)
		}
	}

	return summary
}
