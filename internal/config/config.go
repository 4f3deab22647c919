// Package config reads the runtime configuration shared by the command line and web surfaces.
package config

import (
	"github.com/myrjola/sagaboard/internal/envstruct"
	"github.com/myrjola/sagaboard/internal/errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var ErrDataDirUnwritable = errors.NewSentinel("data directory is not writable")

// Config is populated from the environment with [envstruct.Populate].
type Config struct {
	DataDir   string `env:"SAGABOARD_DATA_DIR" envDefault:"./data"`
	OutputDir string `env:"SAGABOARD_OUTPUT_DIR" envDefault:""`

	OpenAIAPIKey  string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL string        `env:"SAGABOARD_OPENAI_BASE_URL" envDefault:""`
	TextModel     string        `env:"SAGABOARD_TEXT_MODEL" envDefault:"gpt-4o-mini"`
	ImageModel    string        `env:"SAGABOARD_IMAGE_MODEL" envDefault:"dall-e-3"`
	ImageSize     string        `env:"SAGABOARD_IMAGE_SIZE" envDefault:"1024x1024"`
	AITimeout     time.Duration `env:"SAGABOARD_AI_TIMEOUT" envDefault:"60s"`

	HistoryLimit int    `env:"SAGABOARD_HISTORY_LIMIT" envDefault:"5"`
	FFmpegBinary string `env:"SAGABOARD_FFMPEG" envDefault:"ffmpeg"`

	Addr      string `env:"SAGABOARD_ADDR" envDefault:"localhost:4000"`
	SessionDB string `env:"SAGABOARD_SESSION_DB" envDefault:""`
	// PprofAddr enables the profiling server on a separate listener, e.g. localhost:6060.
	PprofAddr string `env:"SAGABOARD_PPROF_ADDR" envDefault:""`

	S3Bucket    string `env:"SAGABOARD_S3_BUCKET" envDefault:""`
	S3Endpoint  string `env:"SAGABOARD_S3_ENDPOINT" envDefault:""`
	S3Region    string `env:"SAGABOARD_S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"SAGABOARD_S3_ACCESS_KEY" envDefault:""`
	S3SecretKey string `env:"SAGABOARD_S3_SECRET_KEY" envDefault:""`
	S3PathStyle bool   `env:"SAGABOARD_S3_PATH_STYLE" envDefault:"true"`
}

// Load reads the configuration with lookupEnv, which has the same signature as [os.LookupEnv], and fills in
// the paths derived from the data directory.
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return Config{}, errors.Wrap(err, "populate config")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.DataDir, "exports")
	}
	if cfg.SessionDB == "" {
		cfg.SessionDB = filepath.Join(cfg.DataDir, "sessions.sqlite")
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	return cfg, nil
}

// EnsureWritable creates the data and output directories and verifies that files can be written to them.
//
// An unwritable data directory is the only startup condition that is fatal to the process.
func (c Config) EnsureWritable() error {
	for _, dir := range []string{c.DataDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.Join(ErrDataDirUnwritable, err), "create directory", slog.String("dir", dir))
		}
		check, err := os.CreateTemp(dir, ".write-check-*")
		if err != nil {
			return errors.Wrap(errors.Join(ErrDataDirUnwritable, err), "check directory", slog.String("dir", dir))
		}
		name := check.Name()
		_ = check.Close()
		_ = os.Remove(name)
	}
	return nil
}

// AIEnabled reports whether an API key is configured.
func (c Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// PublishEnabled reports whether exported montages should be uploaded to object storage.
func (c Config) PublishEnabled() bool {
	return c.S3Bucket != ""
}
