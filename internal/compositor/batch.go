package compositor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
	"github.com/shoeless03/snapchat-memory-downloader/internal/pairs"
)

// Summary reports the outcome of a compositing batch.
type Summary struct {
	Total      int
	Composited int
	Skipped    int
	Failed     int
}

// Progress receives per-pair outcomes as a batch runs.
type Progress func(index, total int, pair pairs.Pair, success bool, message string)

// Filter restricts a batch to a single media kind.
type Filter struct {
	ImagesOnly bool
	VideosOnly bool
}

// Run composites each pair in order. Individual failures are recorded in
// the ledger and do not stop the batch. The ledger is flushed periodically
// rather than per item, then saved once at the end.
func (c *Compositor) Run(ctx context.Context, found []pairs.Pair, filter Filter, progress Progress) (Summary, error) {
	selected := make([]pairs.Pair, 0, len(found))
	for _, pair := range found {
		if filter.ImagesOnly && pair.MediaType != "image" {
			continue
		}
		if filter.VideosOnly && pair.MediaType != "video" {
			continue
		}
		selected = append(selected, pair)
	}

	summary := Summary{Total: len(selected)}
	flushEvery := c.cfg.LedgerFlushEvery
	if flushEvery <= 0 {
		flushEvery = 10
	}

	started := time.Now()
	sinceFlush := 0

	for index, pair := range selected {
		if err := ctx.Err(); err != nil {
			if saveErr := c.ledger.Save(); saveErr != nil {
				c.logger.Error("failed to save ledger on interrupt", logging.Error(saveErr))
			}
			return summary, err
		}

		kind := c.kindOf(pair)
		if c.ledger.IsComposited(pair.SID, kind) {
			summary.Skipped++
			report(progress, index, summary.Total, pair, true, "already composited")
			continue
		}

		outPath := c.outputPath(pair)
		if _, err := os.Stat(outPath); err == nil {
			// Output exists from an earlier run that never recorded it.
			c.ledger.MarkComposited(pair.SID, kind, pair.BaseFile, pair.OverlayFile)
			sinceFlush++
			summary.Skipped++
			report(progress, index, summary.Total, pair, true, "output already exists")
			continue
		}

		if err := c.compositeOne(ctx, pair); err != nil {
			c.ledger.RecordCompositeFailure(pair.SID, kind, pair.BaseFile, pair.OverlayFile, err.Error())
			sinceFlush++
			summary.Failed++
			c.logger.Warn("composite failed",
				logging.String(logging.FieldSID, pair.SID), logging.Error(err))
			report(progress, index, summary.Total, pair, false, err.Error())
		} else {
			c.ledger.MarkComposited(pair.SID, kind, pair.BaseFile, pair.OverlayFile)
			sinceFlush++
			summary.Composited++
			report(progress, index, summary.Total, pair, true, "composited")
		}

		if sinceFlush >= flushEvery {
			if err := c.ledger.Save(); err != nil {
				c.logger.Error("failed to flush ledger", logging.Error(err))
			}
			sinceFlush = 0
			c.logProgress(index+1, summary.Total, started)
		}
	}

	if err := c.ledger.Save(); err != nil {
		return summary, fmt.Errorf("save ledger: %w", err)
	}

	c.logger.Info("compositing batch finished",
		logging.Int("composited", summary.Composited),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", time.Since(started)))
	return summary, nil
}

func (c *Compositor) logProgress(done, total int, started time.Time) {
	elapsed := time.Since(started)
	if done == 0 || elapsed <= 0 {
		return
	}
	rate := float64(done) / elapsed.Seconds()
	remaining := time.Duration(float64(total-done)/rate) * time.Second
	c.logger.Info("compositing progress",
		logging.Int("done", done),
		logging.Int("total", total),
		logging.Float64("per_second", rate),
		logging.Duration("eta", remaining))
}

func report(progress Progress, index, total int, pair pairs.Pair, success bool, message string) {
	if progress != nil {
		progress(index, total, pair, success, message)
	}
}
