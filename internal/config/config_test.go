package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("RECVIEWD_MEDIA_DIR", "/srv/recordings")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/srv/recordings", cfg.MediaDir)
	assert.Equal(t, "/var/lib/recviewd", cfg.DataDir)
	assert.Equal(t, "/var/lib/recviewd/hls", cfg.HLSDir, "HLS dir derives from data dir")
	assert.Equal(t, 2, cfg.MaxEncodeSlots)
	assert.Equal(t, 2, cfg.SeekThresholdSegments)
	assert.Equal(t, 10*time.Second, cfg.SegmentDuration)
	assert.Equal(t, 30*time.Second, cfg.SegmentWaitTimeout)
	assert.Equal(t, 2*time.Hour, cfg.IdleTTL)
	assert.Equal(t, 5*time.Minute, cfg.ReapInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RECVIEWD_MEDIA_DIR", "/srv/recordings")
	t.Setenv("RECVIEWD_LISTEN", "127.0.0.1:9000")
	t.Setenv("RECVIEWD_MAX_ENCODE_SLOTS", "4")
	t.Setenv("RECVIEWD_SEGMENT_DURATION", "6")
	t.Setenv("RECVIEWD_IDLE_TTL", "3600")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 4, cfg.MaxEncodeSlots)
	assert.Equal(t, 6*time.Second, cfg.SegmentDuration)
	assert.Equal(t, time.Hour, cfg.IdleTTL)
}

func TestFromEnvRequiresMediaDir(t *testing.T) {
	t.Setenv("RECVIEWD_MEDIA_DIR", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		return Config{
			MediaDir:              "/srv/recordings",
			MaxEncodeSlots:        2,
			SeekThresholdSegments: 2,
			SegmentDuration:       10 * time.Second,
			SegmentWaitTimeout:    30 * time.Second,
			IdleTTL:               2 * time.Hour,
			ReapInterval:          5 * time.Minute,
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative media dir", func(c *Config) { c.MediaDir = "recordings" }},
		{"zero slots", func(c *Config) { c.MaxEncodeSlots = 0 }},
		{"zero threshold", func(c *Config) { c.SeekThresholdSegments = 0 }},
		{"sub-second segments", func(c *Config) { c.SegmentDuration = 500 * time.Millisecond }},
		{"zero wait timeout", func(c *Config) { c.SegmentWaitTimeout = 0 }},
		{"zero ttl", func(c *Config) { c.IdleTTL = 0 }},
		{"zero reap interval", func(c *Config) { c.ReapInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
