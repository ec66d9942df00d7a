package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 30*time.Second, cfg.Ingestion.Interval)
	assert.Equal(t, SourceMock, cfg.Ingestion.EffectiveSource())
	assert.Equal(t, 60*time.Minute, cfg.Alerts.DedupWindow)
	assert.Equal(t, 15*time.Minute, cfg.Escalation.After)
	assert.Equal(t, []string{"critical"}, cfg.Escalation.Severities)
	assert.Equal(t, "alerts", cfg.Redis.Channel)
	assert.Equal(t, 130.0, cfg.Thresholds.HeartRateCritical)
	assert.Equal(t, 88.0, cfg.Thresholds.SpO2Critical)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("INGESTION_INTERVAL", "45s")
	t.Setenv("INGESTION_SOURCE", "thingspeak")
	t.Setenv("USE_MOCK_DATA", "true")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("VITALS_HEART_RATE_HIGH", "100")
	t.Setenv("VITALS_SPO2_LOW", "92")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Ingestion.Interval)
	assert.Equal(t, SourceThingSpeak, cfg.Ingestion.Source)
	assert.Equal(t, SourceMock, cfg.Ingestion.EffectiveSource())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 100.0, cfg.Thresholds.HeartRateHigh)
	assert.Equal(t, 92.0, cfg.Thresholds.SpO2Low)
	// untouched by env
	assert.Equal(t, 130.0, cfg.Thresholds.HeartRateCritical)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: 9090
ingestion:
  interval: 10s
  spike_rate: 0.25
thresholds:
  temperature_high: 100.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Ingestion.Interval)
	assert.Equal(t, 0.25, cfg.Ingestion.SpikeRate)
	assert.Equal(t, 100.5, cfg.Thresholds.TemperatureHigh)
	assert.Equal(t, 103.0, cfg.Thresholds.TemperatureCritical)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("INGESTION_SOURCE", "serial")
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfig_InvalidThresholds(t *testing.T) {
	t.Setenv("VITALS_SPO2_CRITICAL", "97")
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
