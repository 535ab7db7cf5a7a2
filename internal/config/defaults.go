package config

const (
	defaultConfigPath      = "~/.config/vidqueue/config.toml"
	defaultWorkDir         = "~/.local/share/vidqueue/work"
	defaultDataDir         = "~/.local/share/vidqueue"
	defaultLogDir          = "~/.local/share/vidqueue/logs"
	defaultArtifactDir     = "~/.local/share/vidqueue/artifacts"
	defaultAPIBind         = "127.0.0.1:7490"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultVideoCodec      = "libvpx-vp9"
	defaultAudioCodec      = "libopus"
	defaultContainer       = "webm"
	defaultFrameRate       = 30
	defaultDisplayAspect   = "4/3"
	defaultDeadline        = "good"
	defaultCPUUsed         = 2
	defaultTileColumns     = 2
	defaultThreads         = 4
	defaultThumbWidth      = 320
	defaultThumbHeight     = 240
	defaultThumbPosition   = 10.0
	defaultThumbQuality    = 85
	defaultBucket          = "videos"
	defaultRegion          = "us-east-1"
	defaultPresignHours    = 24
	defaultThumbPresignMin = 60
	defaultRetentionMin    = 60
	defaultSweepSeconds    = 60
	defaultNtfyTimeout     = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// DefaultTiers returns the stock rendition ladder, lowest first.
func DefaultTiers() []Tier {
	return []Tier{
		{Label: "144p", Height: 144, Bitrate: "100k"},
		{Label: "240p", Height: 240, Bitrate: "200k"},
		{Label: "360p", Height: 360, Bitrate: "400k"},
		{Label: "480p", Height: 480, Bitrate: "600k"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcode: Transcode{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
			AudioCodec:    defaultAudioCodec,
			Container:     defaultContainer,
			FrameRate:     defaultFrameRate,
			DisplayAspect: defaultDisplayAspect,
			Deadline:      defaultDeadline,
			CPUUsed:       defaultCPUUsed,
			RowMT:         true,
			TileColumns:   defaultTileColumns,
			Threads:       defaultThreads,
			Tiers:         DefaultTiers(),
		},
		Thumbnail: Thumbnail{
			Width:           defaultThumbWidth,
			Height:          defaultThumbHeight,
			PositionPercent: defaultThumbPosition,
			JPEGQuality:     defaultThumbQuality,
		},
		Storage: Storage{
			Backend:                 StorageLocal,
			LocalDir:                defaultArtifactDir,
			Bucket:                  defaultBucket,
			Region:                  defaultRegion,
			PresignHours:            defaultPresignHours,
			ThumbnailPresignMinutes: defaultThumbPresignMin,
		},
		Registry: Registry{
			RetentionMinutes:     defaultRetentionMin,
			SweepIntervalSeconds: defaultSweepSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
