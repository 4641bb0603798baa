package config

const (
	defaultExportHTML         = "memories_history.html"
	defaultOutputDir          = "memories"
	defaultLedgerFile         = "download_progress.json"
	defaultPairsCacheFile     = "overlay_pairs.json"
	defaultLogDir             = "~/.local/share/snapmemories/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultDownloadDelay      = 2.0
	defaultDownloadTimeout    = 60
	defaultMaxRetries         = 3
	defaultRetryBase          = 5.0
	defaultPermanentSkipAfter = 5
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultExifToolBinary     = "exiftool"
	defaultVideoTimeout       = 300
	defaultExifToolTimeout    = 30
	defaultLedgerFlushEvery   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ExportHTML:     defaultExportHTML,
			OutputDir:      defaultOutputDir,
			LedgerPath:     defaultLedgerFile,
			PairsCachePath: defaultPairsCacheFile,
			LogDir:         defaultLogDir,
		},
		Download: Download{
			DelaySeconds:       defaultDownloadDelay,
			TimeoutSeconds:     defaultDownloadTimeout,
			MaxRetries:         defaultMaxRetries,
			RetryBaseSeconds:   defaultRetryBase,
			PermanentSkipAfter: defaultPermanentSkipAfter,
		},
		Composite: Composite{
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			VideoTimeoutSeconds: defaultVideoTimeout,
			LedgerFlushEvery:    defaultLedgerFlushEvery,
		},
		Metadata: Metadata{
			ExifToolBinary: defaultExifToolBinary,
			TimeoutSeconds: defaultExifToolTimeout,
		},
		Timezone: Timezone{
			GPSLookup: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
