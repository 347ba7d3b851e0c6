package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port               int    `envconfig:"PORT" default:"3000"`
	Environment        string `envconfig:"ENV" default:"development"`
	BodyLimitMB        int    `envconfig:"BODY_LIMIT_MB" default:"10"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	// Database (optional, empty disables verification records)
	DatabaseURL string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	// Provider
	ProviderType     string        `envconfig:"PROVIDER_TYPE" default:"deepface"`
	EmbedderType     string        `envconfig:"EMBEDDER_TYPE" default:"deepface"`
	DeepFaceURL      string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel    string        `envconfig:"DEEPFACE_MODEL" default:"SFace"`
	DeepFaceDetector string        `envconfig:"DEEPFACE_DETECTOR" default:"yunet"`
	DeepFaceTimeout  time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"30s"`
	AWSRegion        string        `envconfig:"AWS_REGION" default:"us-east-1"`

	Defaults
}

// Defaults são os valores padrão do pipeline, todos sobrescrevíveis por chamada
type Defaults struct {
	DetectorScoreThreshold float64 `envconfig:"DETECTOR_SCORE_THRESHOLD" default:"0.5"`
	SimilarityThreshold    float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.55"`
	MinFaceRegionPixels    int     `envconfig:"MIN_FACE_REGION_PIXELS" default:"20"`
	MatchPercentMargin     float64 `envconfig:"MATCH_PERCENT_MARGIN" default:"0.1"`

	LivenessBlurFloor     float64 `envconfig:"LIVENESS_BLUR_FLOOR" default:"60"`
	LivenessBrightnessMin float64 `envconfig:"LIVENESS_BRIGHTNESS_MIN" default:"40"`
	LivenessBrightnessMax float64 `envconfig:"LIVENESS_BRIGHTNESS_MAX" default:"220"`
	LivenessFaceSizeFloor float64 `envconfig:"LIVENESS_FACE_SIZE_FLOOR" default:"0.03"`
	LivenessGating        bool    `envconfig:"LIVENESS_GATING" default:"false"`

	// Workers bounds concurrent detector/embedder calls; 0 means NumCPU.
	Workers int `envconfig:"WORKERS" default:"0"`

	// MaxImagePixels rejects uploads whose declared width*height is larger,
	// before any pixel is allocated.
	MaxImagePixels int `envconfig:"MAX_IMAGE_PIXELS" default:"40000000"`
}

// DefaultDefaults returns the built-in pipeline defaults without reading
// the environment.
func DefaultDefaults() Defaults {
	return Defaults{
		DetectorScoreThreshold: 0.5,
		SimilarityThreshold:    0.55,
		MinFaceRegionPixels:    20,
		MatchPercentMargin:     0.1,
		LivenessBlurFloor:      60,
		LivenessBrightnessMin:  40,
		LivenessBrightnessMax:  220,
		LivenessFaceSizeFloor:  0.03,
		MaxImagePixels:         40_000_000,
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.ProviderType {
	case "mock", "deepface", "rekognition":
	default:
		return fmt.Errorf("unsupported PROVIDER_TYPE %q", c.ProviderType)
	}

	switch c.EmbedderType {
	case "mock", "deepface":
	default:
		return fmt.Errorf("unsupported EMBEDDER_TYPE %q", c.EmbedderType)
	}

	return c.Defaults.Validate()
}

func (d Defaults) Validate() error {
	for name, v := range map[string]float64{
		"DETECTOR_SCORE_THRESHOLD": d.DetectorScoreThreshold,
		"SIMILARITY_THRESHOLD":     d.SimilarityThreshold,
		"LIVENESS_FACE_SIZE_FLOOR": d.LivenessFaceSizeFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}

	if d.MinFaceRegionPixels < 1 {
		return fmt.Errorf("MIN_FACE_REGION_PIXELS must be positive, got %d", d.MinFaceRegionPixels)
	}
	if d.MatchPercentMargin < 0 || d.MatchPercentMargin >= 1 {
		return fmt.Errorf("MATCH_PERCENT_MARGIN must be in [0, 1), got %v", d.MatchPercentMargin)
	}
	if d.LivenessBrightnessMin > d.LivenessBrightnessMax {
		return fmt.Errorf("LIVENESS_BRIGHTNESS_MIN %v exceeds LIVENESS_BRIGHTNESS_MAX %v",
			d.LivenessBrightnessMin, d.LivenessBrightnessMax)
	}
	if d.Workers < 0 {
		return fmt.Errorf("WORKERS must not be negative, got %d", d.Workers)
	}
	if d.MaxImagePixels < 1 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", d.MaxImagePixels)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) PersistenceEnabled() bool {
	return c.DatabaseURL != ""
}
