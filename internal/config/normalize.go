package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeExternal()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ExportHTML, err = expandPath(c.Paths.ExportHTML); err != nil {
		return fmt.Errorf("paths.export_html: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	if c.Paths.PairsCachePath, err = expandPath(c.Paths.PairsCachePath); err != nil {
		return fmt.Errorf("paths.pairs_cache_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	if c.Download.DelaySeconds < 0 {
		c.Download.DelaySeconds = 0
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.MaxRetries <= 0 {
		c.Download.MaxRetries = defaultMaxRetries
	}
	if c.Download.RetryBaseSeconds <= 0 {
		c.Download.RetryBaseSeconds = defaultRetryBase
	}
	if c.Download.PermanentSkipAfter <= 0 {
		c.Download.PermanentSkipAfter = defaultPermanentSkipAfter
	}
}

func (c *Config) normalizeExternal() {
	if strings.TrimSpace(c.Composite.FFmpegBinary) == "" {
		c.Composite.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Composite.FFprobeBinary) == "" {
		c.Composite.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Composite.VideoTimeoutSeconds <= 0 {
		c.Composite.VideoTimeoutSeconds = defaultVideoTimeout
	}
	if c.Composite.LedgerFlushEvery <= 0 {
		c.Composite.LedgerFlushEvery = defaultLedgerFlushEvery
	}
	if strings.TrimSpace(c.Metadata.ExifToolBinary) == "" {
		c.Metadata.ExifToolBinary = defaultExifToolBinary
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		c.Metadata.TimeoutSeconds = defaultExifToolTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
