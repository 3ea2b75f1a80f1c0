package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the defaults the CLI flags fall back to
type Config struct {
	DetectorAddr  string        `env:"VIDCROP_DETECTOR_ADDR"  envDefault:"localhost:50051"`
	DetectTimeout time.Duration `env:"VIDCROP_DETECT_TIMEOUT" envDefault:"5s"`
	TargetRate    int           `env:"VIDCROP_FPS"            envDefault:"1"`
	TargetClass   string        `env:"VIDCROP_CLASS"          envDefault:"truck"`
	JPEGQuality   int           `env:"VIDCROP_JPEG_QUALITY"   envDefault:"95"`
	LogLevel      string        `env:"VIDCROP_LOG_LEVEL"      envDefault:"info"`
	MetricsFile   string        `env:"VIDCROP_METRICS_FILE"`
}

// Load reads the given .env files when they exist, then the process environment.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
