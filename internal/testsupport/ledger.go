package testsupport

import (
	"testing"

	"github.com/shoeless03/snapchat-memory-downloader/internal/config"
	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

// MustOpenLedger opens the configured ledger for tests.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Ledger {
	t.Helper()

	led, err := ledger.Open(cfg.Paths.LedgerPath, logging.NewNop())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	return led
}
