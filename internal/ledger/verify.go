package ledger

import (
	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
)

// VerifyItem describes one record that is not fully downloaded.
type VerifyItem struct {
	SID      string
	Date     string
	Attempts int
}

// VerifyResult reconciles parsed export records against ledger state.
type VerifyResult struct {
	Total      int
	Downloaded int
	Missing    []VerifyItem
	Failed     []VerifyItem
}

// VerifyDownloads classifies every record as downloaded, failed (with
// attempt count), or missing (never attempted).
func (l *Ledger) VerifyDownloads(records []export.MemoryRecord) VerifyResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := VerifyResult{Total: len(records)}
	for _, record := range records {
		if _, ok := l.state.Downloaded[record.SID]; ok {
			result.Downloaded++
			continue
		}
		if entry, ok := l.state.Failed[record.SID]; ok {
			result.Failed = append(result.Failed, VerifyItem{
				SID:      record.SID,
				Date:     record.Date,
				Attempts: entry.Count,
			})
			continue
		}
		result.Missing = append(result.Missing, VerifyItem{SID: record.SID, Date: record.Date})
	}
	return result
}

// EnsureTimezoneFields backfills conversion-state fields on entries written
// by versions that predate timezone tracking, returning how many entries
// were touched. The persisted format stays bit-compatible either way; this
// just makes the fields explicit before a conversion pass.
func (l *Ledger) EnsureTimezoneFields() (int, error) {
	l.mu.Lock()
	updated := 0
	for sid, entry := range l.state.Downloaded {
		if entry.CurrentTimezone == "" {
			entry.CurrentTimezone = "UTC"
			l.state.Downloaded[sid] = entry
			updated++
		}
	}
	l.mu.Unlock()

	if updated == 0 {
		return 0, nil
	}
	return updated, l.Save()
}
