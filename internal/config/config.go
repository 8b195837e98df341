// README: Config loader with defaults, NAV_ env overrides and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
	// File enables a rotated log file in addition to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
}

type AuthConfig struct {
	// FirebaseProjectID enables bearer-token auth when set.
	FirebaseProjectID string `mapstructure:"firebase_project_id"`
	CredentialsFile   string `mapstructure:"credentials_file"`
}

type PlannerConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=osrm google"`
	OSRMURL      string        `mapstructure:"osrm_url" validate:"omitempty,url"`
	OSRMProfile  string        `mapstructure:"osrm_profile"`
	OSRMGeometry string        `mapstructure:"osrm_geometry" validate:"oneof=geojson polyline polyline6"`
	GoogleAPIKey string        `mapstructure:"google_api_key" validate:"required_if=Provider google"`
	Language     string        `mapstructure:"language"`
	Region       string        `mapstructure:"region"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// CacheSize of 0 disables the plan cache.
	CacheSize int           `mapstructure:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

type GuidanceConfig struct {
	RerouteThresholdM float64 `mapstructure:"reroute_threshold_m" validate:"gt=0"`
	PassedBufferM     float64 `mapstructure:"passed_buffer_m" validate:"gte=0"`
	DensifyStepM      float64 `mapstructure:"densify_step_m" validate:"gt=0"`
	Window            int     `mapstructure:"window" validate:"gte=1"`
	ProgressEpsilonM  float64 `mapstructure:"progress_epsilon_m" validate:"gte=0"`
	NoProgressLimit   int     `mapstructure:"no_progress_limit" validate:"gte=0"`
	ManeuverBufferM   float64 `mapstructure:"maneuver_buffer_m" validate:"gte=0"`
	RerouteEnabled    bool    `mapstructure:"reroute_enabled"`
	// RerouteBackoff is how long a route waits before retrying a failed reroute.
	RerouteBackoff time.Duration `mapstructure:"reroute_backoff" validate:"gte=0"`
}

type Config struct {
	HTTP HTTPConfig `mapstructure:"http"`
	DB   struct {
		// DSN enables the Postgres route journal when set.
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		// Addr enables the Redis position mirror when set.
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Guidance GuidanceConfig `mapstructure:"guidance"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.dsn", "")
	v.SetDefault("redis.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 64)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("auth.firebase_project_id", "")
	v.SetDefault("auth.credentials_file", "")

	v.SetDefault("planner.provider", "osrm")
	v.SetDefault("planner.osrm_url", "http://router.project-osrm.org")
	v.SetDefault("planner.osrm_profile", "driving")
	v.SetDefault("planner.osrm_geometry", "geojson")
	v.SetDefault("planner.google_api_key", "")
	v.SetDefault("planner.language", "")
	v.SetDefault("planner.region", "")
	v.SetDefault("planner.timeout", 15*time.Second)
	v.SetDefault("planner.cache_size", 256)
	v.SetDefault("planner.cache_ttl", 10*time.Minute)

	v.SetDefault("guidance.reroute_threshold_m", 20.0)
	v.SetDefault("guidance.passed_buffer_m", 5.0)
	v.SetDefault("guidance.densify_step_m", 0.5)
	v.SetDefault("guidance.window", 20)
	v.SetDefault("guidance.progress_epsilon_m", 1.0)
	v.SetDefault("guidance.no_progress_limit", 4)
	v.SetDefault("guidance.maneuver_buffer_m", 0.0)
	v.SetDefault("guidance.reroute_enabled", true)
	v.SetDefault("guidance.reroute_backoff", 5*time.Second)
}

// Load reads defaults, then the YAML file named by NAV_CONFIG_FILE if set,
// then NAV_* environment variables (NAV_GUIDANCE_REROUTE_THRESHOLD_M etc).
func Load() (Config, error) {
	return load(viper.New(), os.Getenv("NAV_CONFIG_FILE"))
}

func load(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("NAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
