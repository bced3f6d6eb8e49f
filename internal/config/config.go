package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/radar-pi/internal/adsb"
	"github.com/yegors/radar-pi/pkg/logger"
)

// Config is the resolved configuration for one invocation. It is built once in
// main and passed down; nothing else reads the environment.
type Config struct {
	Station StationConfig `toml:"station"`
	ADSB    ADSBConfig    `toml:"adsb"`
	Render  RenderConfig  `toml:"render"`
	Display DisplayConfig `toml:"display"`
	Logging LoggingConfig `toml:"logging"`

	// Source is the file the configuration was read from, empty when only
	// defaults and environment apply
	Source string `toml:"-"`
}

// StationConfig is the waypoint searched around
type StationConfig struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	RadiusNM  float64 `toml:"radius_nm"`
}

// ADSBConfig configures the telemetry feed
type ADSBConfig struct {
	// SourceURL is a format string receiving latitude, longitude and radius
	SourceURL      string `toml:"source_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// RenderConfig configures the render pipeline
type RenderConfig struct {
	OutputPath string `toml:"output_path"`

	// ServerPort 0 picks a free port for every run
	ServerPort int `toml:"server_port"`

	// ServerCommand overrides the render server command. {port} and {data} are
	// replaced with the run's port and data file. Empty runs "radar-pi serve".
	ServerCommand []string `toml:"server_command"`

	// DataDir holds the per-run data files; empty uses the system temp dir
	DataDir string `toml:"data_dir"`

	StartupTimeoutSeconds int `toml:"startup_timeout_seconds"`
	PollIntervalMs        int `toml:"poll_interval_ms"`
	RenderTimeoutSeconds  int `toml:"render_timeout_seconds"`
	SettleDelayMs         int `toml:"settle_delay_ms"`
	StopGraceSeconds      int `toml:"stop_grace_seconds"`

	BrowserPath      string `toml:"browser_path"`
	BrowserNoSandbox bool   `toml:"browser_no_sandbox"`
}

// DisplayConfig configures the console output of the flights command
type DisplayConfig struct {
	// MaxAircraft caps the aircraft listed, nearest first
	MaxAircraft int `toml:"max_aircraft"`
}

// LoggingConfig configures pkg/logger
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Station: StationConfig{
			Latitude:  38.89580240857114,
			Longitude: -77.09308316546287,
			RadiusNM:  10,
		},
		ADSB: ADSBConfig{
			SourceURL:      adsb.DefaultSourceURL,
			TimeoutSeconds: 10,
			UserAgent:      "radar-pi/1.0",
		},
		Render: RenderConfig{
			OutputPath:            "curr_flight.png",
			ServerPort:            3000,
			StartupTimeoutSeconds: 140,
			PollIntervalMs:        1000,
			RenderTimeoutSeconds:  30,
			SettleDelayMs:         2000,
			StopGraceSeconds:      5,
		},
		Display: DisplayConfig{
			MaxAircraft: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the TOML file at path on top of the defaults and applies
// environment overrides. A missing file is not an error; Source stays empty
// so the caller can warn about it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			md, err := toml.DecodeFile(path, cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, 0, len(undecoded))
				for _, k := range undecoded {
					keys = append(keys, k.String())
				}
				return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
			}
			cfg.Source = path
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies RADAR_* variables
func (c *Config) applyEnvironmentOverrides(lookup func(string) (string, bool)) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"RADAR_LATITUDE", &c.Station.Latitude},
		{"RADAR_LONGITUDE", &c.Station.Longitude},
		{"RADAR_RADIUS", &c.Station.RadiusNM},
	}
	for _, f := range floats {
		if v, ok := lookup(f.key); ok && v != "" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", f.key, err)
			}
			*f.dst = parsed
		}
	}

	if v, ok := lookup("RADAR_PORT"); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid RADAR_PORT: %w", err)
		}
		c.Render.ServerPort = port
	}
	if v, ok := lookup("RADAR_OUTPUT"); ok && v != "" {
		c.Render.OutputPath = v
	}
	if v, ok := lookup("RADAR_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}

	return nil
}

// Validate checks the resolved configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		errs = append(errs, fmt.Errorf("station.latitude %v out of range", c.Station.Latitude))
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		errs = append(errs, fmt.Errorf("station.longitude %v out of range", c.Station.Longitude))
	}
	if c.Station.RadiusNM <= 0 {
		errs = append(errs, fmt.Errorf("station.radius_nm must be positive"))
	}
	if c.ADSB.SourceURL == "" {
		errs = append(errs, fmt.Errorf("adsb.source_url is required"))
	} else if strings.Count(c.ADSB.SourceURL, "%") < 3 {
		errs = append(errs, fmt.Errorf("adsb.source_url needs latitude, longitude and radius verbs"))
	}
	if c.ADSB.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("adsb.timeout_seconds must be positive"))
	}
	if c.Render.OutputPath == "" {
		errs = append(errs, fmt.Errorf("render.output_path is required"))
	}
	if c.Render.ServerPort < 0 || c.Render.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("render.server_port %d out of range", c.Render.ServerPort))
	}
	if c.Render.StartupTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("render.startup_timeout_seconds must be positive"))
	}
	if c.Render.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("render.poll_interval_ms must be positive"))
	}
	if c.Render.RenderTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("render.render_timeout_seconds must be positive"))
	}
	if c.Render.SettleDelayMs < 0 {
		errs = append(errs, fmt.Errorf("render.settle_delay_ms must not be negative"))
	}
	if c.Render.StopGraceSeconds <= 0 {
		errs = append(errs, fmt.Errorf("render.stop_grace_seconds must be positive"))
	}
	if c.Display.MaxAircraft <= 0 {
		errs = append(errs, fmt.Errorf("display.max_aircraft must be positive"))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("unsupported log format: %s", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Waypoint returns the station as an adsb waypoint
func (c *Config) Waypoint() adsb.Waypoint {
	return adsb.Waypoint{
		Latitude:  c.Station.Latitude,
		Longitude: c.Station.Longitude,
		RadiusNM:  c.Station.RadiusNM,
	}
}

// FetchTimeout is the bound on a single telemetry request
func (c *ADSBConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StartupTimeout bounds the wait for the render server
func (c *RenderConfig) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSeconds) * time.Second
}

// PollInterval is the readiness poll interval
func (c *RenderConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RenderTimeout bounds page load and capture
func (c *RenderConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSeconds) * time.Second
}

// SettleDelay is the pause after the page reports its data loaded
func (c *RenderConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// StopGrace is how long the server gets to exit before it is killed
func (c *RenderConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSeconds) * time.Second
}
