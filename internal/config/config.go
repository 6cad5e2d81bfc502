// Package config loads the server configuration: environment variables for
// process-level settings and a YAML fleet file declaring displays, content
// sources and schedules. The fleet file is validated fully before the
// orchestrator starts; a schedule referencing an undefined display or
// source is a startup failure, not a runtime one.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paperframe/paperframe/internal/schedule"
	"github.com/paperframe/paperframe/pkg/models"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Fleet    FleetConfig
	LogLevel string
}

// ServerConfig holds the status API server configuration.
type ServerConfig struct {
	Port         int
	ReadTimeout  int
	WriteTimeout int
}

// RedisConfig holds Redis-related configuration. An empty Addr disables
// event publication.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AMQPConfig holds broker-related configuration. An empty URL disables
// broker integration.
type AMQPConfig struct {
	URL          string
	Exchange     string
	RefreshQueue string
}

// FleetConfig is the YAML fleet file: the registries of displays, content
// sources and schedule entries, immutable inputs to the orchestrator.
type FleetConfig struct {
	OutputDir      string                    `yaml:"output_dir"`
	SendTimeoutSec int                       `yaml:"send_timeout_seconds"`
	Displays       map[string]DisplayConfig  `yaml:"displays"`
	Sources        map[string]SourceConfig   `yaml:"sources"`
	Schedule       map[string][]ScheduleRule `yaml:"schedule"`
}

// DisplayConfig declares one physical panel.
type DisplayConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TriColor  bool   `yaml:"tricolor"`
	Grayscale bool   `yaml:"grayscale"`
}

// SourceConfig declares one content source instance: a registry type tag
// plus an opaque configuration blob passed to its factory.
type SourceConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// ScheduleRule binds a source to the enclosing display under a recurrence
// rule.
type ScheduleRule struct {
	Source string `yaml:"source"`
	Every  string `yaml:"every"`
}

// Load loads configuration from environment variables and the fleet file.
func Load() (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL:          getEnv("AMQP_URL", ""),
			Exchange:     getEnv("AMQP_EXCHANGE", "paperframe.events"),
			RefreshQueue: getEnv("AMQP_REFRESH_QUEUE", "paperframe.refresh"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	fleetPath := getEnv("FLEET_CONFIG", "fleet.yaml")
	fleet, err := LoadFleet(fleetPath)
	if err != nil {
		return nil, err
	}
	cfg.Fleet = *fleet

	if dir := getEnv("OUTPUT_DIR", ""); dir != "" {
		cfg.Fleet.OutputDir = dir
	}

	return cfg, nil
}

// LoadFleet reads and validates a fleet file.
func LoadFleet(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet config: %w", err)
	}

	var fleet FleetConfig
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to parse fleet config: %w", err)
	}

	if err := fleet.Validate(); err != nil {
		return nil, fmt.Errorf("fleet config %s: %w", path, err)
	}
	return &fleet, nil
}

// Validate checks the fleet registries for internal consistency.
func (fc *FleetConfig) Validate() error {
	for name, d := range fc.Displays {
		if d.Host == "" {
			return fmt.Errorf("display %q: host is required", name)
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("display %q: invalid port %d", name, d.Port)
		}
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("display %q: invalid dimensions %dx%d", name, d.Width, d.Height)
		}
		if d.TriColor && d.Grayscale {
			return fmt.Errorf("display %q: tricolor and grayscale are mutually exclusive", name)
		}
	}

	for name, s := range fc.Sources {
		if s.Type == "" {
			return fmt.Errorf("source %q: type is required", name)
		}
	}

	for displayName, rules := range fc.Schedule {
		if _, ok := fc.Displays[displayName]; !ok {
			return fmt.Errorf("schedule references undefined display %q", displayName)
		}
		for _, rule := range rules {
			if _, ok := fc.Sources[rule.Source]; !ok {
				return fmt.Errorf("schedule for display %q references undefined source %q",
					displayName, rule.Source)
			}
			if _, err := schedule.Parse(rule.Every); err != nil {
				return fmt.Errorf("schedule for display %q, source %q: %w",
					displayName, rule.Source, err)
			}
		}
	}
	return nil
}

// BuildDisplays converts the display registry into model objects, sorted
// by name for deterministic iteration.
func (fc *FleetConfig) BuildDisplays() []*models.Display {
	names := make([]string, 0, len(fc.Displays))
	for name := range fc.Displays {
		names = append(names, name)
	}
	sort.Strings(names)

	displays := make([]*models.Display, 0, len(names))
	for _, name := range names {
		d := fc.Displays[name]
		mode := models.Monochrome
		if d.TriColor {
			mode = models.TriColor
		} else if d.Grayscale {
			mode = models.Grayscale4
		}
		displays = append(displays, &models.Display{
			Name:   name,
			Host:   d.Host,
			Port:   d.Port,
			Width:  d.Width,
			Height: d.Height,
			Mode:   mode,
		})
	}
	return displays
}

// Entries flattens the schedule into (display, source, rule) tuples,
// sorted by display then position for deterministic job order.
func (fc *FleetConfig) Entries() []models.ScheduleEntry {
	names := make([]string, 0, len(fc.Schedule))
	for name := range fc.Schedule {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []models.ScheduleEntry
	for _, name := range names {
		for _, rule := range fc.Schedule[name] {
			entries = append(entries, models.ScheduleEntry{
				Display: name,
				Source:  rule.Source,
				Rule:    rule.Every,
			})
		}
	}
	return entries
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
