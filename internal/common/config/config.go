// Package config provides configuration management for the coordinator.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	NATS       NATSConfig       `mapstructure:"nats"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// MCPConfig holds the embedded MCP tool server configuration.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SimulationConfig drives the timers and randomness of the simulators.
type SimulationConfig struct {
	// TimeScale multiplies every scripted workflow delay. 1.0 reproduces the
	// demo pacing, 0 makes workflows complete immediately.
	TimeScale float64 `mapstructure:"timeScale"`

	ChurnInterval     time.Duration `mapstructure:"churnInterval"`
	ChurnProbability  float64       `mapstructure:"churnProbability"`
	MotionInterval    time.Duration `mapstructure:"motionInterval"`
	ReasoningInterval time.Duration `mapstructure:"reasoningInterval"`

	// Seed for the simulators' random source; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`

	// ScenarioPath points at a YAML scenario replacing the embedded default.
	ScenarioPath string `mapstructure:"scenarioPath"`

	DefaultCustomerID string `mapstructure:"defaultCustomerId"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Addr returns host:port for the HTTP listener.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("COORDINATOR_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "lastmile-coordinator")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("mcp.enabled", true)
	v.SetDefault("mcp.port", 9090)

	v.SetDefault("simulation.timeScale", 1.0)
	v.SetDefault("simulation.churnInterval", 10*time.Second)
	v.SetDefault("simulation.churnProbability", 0.3)
	v.SetDefault("simulation.motionInterval", 1500*time.Millisecond)
	v.SetDefault("simulation.reasoningInterval", 2*time.Second)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.scenarioPath", "")
	v.SetDefault("simulation.defaultCustomerId", "customer_123")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix COORDINATOR_ with dots replaced by underscores.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified directory or the default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COORDINATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys do not map onto SNAKE_CASE env vars by themselves.
	_ = v.BindEnv("simulation.timeScale", "COORDINATOR_SIMULATION_TIME_SCALE")
	_ = v.BindEnv("simulation.scenarioPath", "COORDINATOR_SIMULATION_SCENARIO_PATH")
	_ = v.BindEnv("simulation.defaultCustomerId", "COORDINATOR_SIMULATION_DEFAULT_CUSTOMER_ID")
	_ = v.BindEnv("mcp.port", "COORDINATOR_MCP_PORT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/coordinator/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.MCP.Enabled && (cfg.MCP.Port <= 0 || cfg.MCP.Port > 65535) {
		errs = append(errs, "mcp.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	sim := cfg.Simulation
	if sim.TimeScale < 0 {
		errs = append(errs, "simulation.timeScale must not be negative")
	}
	if sim.ChurnInterval <= 0 || sim.MotionInterval <= 0 || sim.ReasoningInterval <= 0 {
		errs = append(errs, "simulation intervals must be positive")
	}
	if sim.ChurnProbability < 0 || sim.ChurnProbability > 1 {
		errs = append(errs, "simulation.churnProbability must be within [0,1]")
	}
	if strings.TrimSpace(sim.DefaultCustomerID) == "" {
		errs = append(errs, "simulation.defaultCustomerId is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
