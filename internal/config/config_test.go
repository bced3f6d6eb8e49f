package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radar.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, 10, cfg.Display.MaxAircraft)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Render.ServerPort)
	assert.Equal(t, 140*time.Second, cfg.Render.StartupTimeout())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[station]
latitude = 40.6413
longitude = -73.7781
radius_nm = 25

[adsb]
source_url = "http://feed.local/point/%.4f/%.4f/%.0f"
timeout_seconds = 4

[render]
output_path = "/var/lib/radar/flight.png"
server_port = 0
server_command = ["npm", "run", "dev", "--", "-p", "{port}"]
poll_interval_ms = 250
settle_delay_ms = 0

[display]
max_aircraft = 3

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	wp := cfg.Waypoint()
	assert.Equal(t, 40.6413, wp.Latitude)
	assert.Equal(t, -73.7781, wp.Longitude)
	assert.Equal(t, 25.0, wp.RadiusNM)
	assert.Equal(t, 4*time.Second, cfg.ADSB.FetchTimeout())
	assert.Equal(t, "/var/lib/radar/flight.png", cfg.Render.OutputPath)
	assert.Equal(t, 0, cfg.Render.ServerPort)
	assert.Equal(t, []string{"npm", "run", "dev", "--", "-p", "{port}"}, cfg.Render.ServerCommand)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.PollInterval())
	assert.Equal(t, time.Duration(0), cfg.Render.SettleDelay())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Display.MaxAircraft)
	assert.Equal(t, path, cfg.Source)

	// Untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Render.StopGrace())
}

func TestLoad_RejectsUnknownKeysAndBadSyntax(t *testing.T) {
	_, err := Load(writeConfig(t, "[station]\nlatitud = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station.latitud")

	_, err = Load(writeConfig(t, "[station\n"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("RADAR_LATITUDE", "51.47")
	t.Setenv("RADAR_LONGITUDE", "-0.4543")
	t.Setenv("RADAR_RADIUS", "15")
	t.Setenv("RADAR_PORT", "3100")
	t.Setenv("RADAR_OUTPUT", "out.png")
	t.Setenv("RADAR_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 51.47, cfg.Station.Latitude)
	assert.Equal(t, -0.4543, cfg.Station.Longitude)
	assert.Equal(t, 15.0, cfg.Station.RadiusNM)
	assert.Equal(t, 3100, cfg.Render.ServerPort)
	assert.Equal(t, "out.png", cfg.Render.OutputPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	t.Setenv("RADAR_RADIUS", "ten")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RADAR_RADIUS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"latitude", func(c *Config) { c.Station.Latitude = 91 }, "station.latitude"},
		{"longitude", func(c *Config) { c.Station.Longitude = -181 }, "station.longitude"},
		{"radius", func(c *Config) { c.Station.RadiusNM = 0 }, "radius_nm"},
		{"source url verbs", func(c *Config) { c.ADSB.SourceURL = "http://feed.local/all" }, "source_url"},
		{"port", func(c *Config) { c.Render.ServerPort = 70000 }, "server_port"},
		{"startup timeout", func(c *Config) { c.Render.StartupTimeoutSeconds = 0 }, "startup_timeout_seconds"},
		{"max aircraft", func(c *Config) { c.Display.MaxAircraft = 0 }, "display.max_aircraft"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
