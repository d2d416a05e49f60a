// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attitude_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `# replay settings
LOG_LEVEL=debug
WEB_SERVER_PORT=9090
MQTT_BROKER=tcp://broker:1883
PLAYBACK_TICK_INTERVAL=40
PLAYBACK_SPEED=-3
CAMERA_OFFSET=1, 2, 3
BODY_FORWARD_AXIS=1,0,0
DEMO_PATHS=a.csv, b.parquet
DISPLAY_I2C_ADDR=0x3c
METRICS_STDOUT=true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 9090, cfg.WebServerPort)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, 40*time.Millisecond, cfg.PlaybackTickInterval)
	assert.Equal(t, -3, cfg.PlaybackSpeed)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, cfg.CameraOffset)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, cfg.BodyForwardAxis)
	assert.Equal(t, []string{"a.csv", "b.parquet"}, cfg.DemoPaths)
	assert.Equal(t, uint16(SSD1306Addr), cfg.DisplayI2CAddr)
	assert.True(t, cfg.MetricsStdout)
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "", cfg.LogDir)
	assert.Equal(t, 8080, cfg.WebServerPort)
	assert.Equal(t, "./web", cfg.WebStaticDir)
	assert.Equal(t, "attitude/pose", cfg.TopicPose)
	assert.Equal(t, "attitude/state", cfg.TopicState)
	assert.Equal(t, 20*time.Millisecond, cfg.PlaybackTickInterval)
	assert.Equal(t, 1, cfg.PlaybackSpeed)
	assert.Equal(t, 0.25, cfg.CameraFollowFraction)
	assert.Equal(t, mgl64.Vec3{-6, -6, 3}, cfg.CameraOffset)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, cfg.BodyForwardAxis)
	assert.Equal(t, 640, cfg.SceneWidth)
	assert.Equal(t, 480, cfg.SceneHeight)
	assert.Equal(t, 160, cfg.SnapshotWidth)
	assert.Equal(t, 120, cfg.SnapshotHeight)
	assert.Equal(t, 200, cfg.NavballSize)
	assert.Empty(t, cfg.DemoPaths)
	assert.Equal(t, uint16(0x3C), cfg.DisplayI2CAddr)
	assert.Equal(t, 200*time.Millisecond, cfg.DisplayUpdateInterval)
	assert.False(t, cfg.MetricsStdout)
	assert.Equal(t, 64, cfg.FrameCacheSize)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.WebServerPort)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ATTREPLAY_WEB_SERVER_PORT", "7000")
	t.Setenv("ATTREPLAY_TOPIC_POSE", "replay/pose")

	cfg, err := Load(writeConfig(t, "WEB_SERVER_PORT=9090\n"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.WebServerPort)
	assert.Equal(t, "replay/pose", cfg.TopicPose)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/attitude_config.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"unknown key", "IMU_GYRO_RANGE=3\n", "unknown config key"},
		{"bad level", "LOG_LEVEL=loud\n", "LOG_LEVEL"},
		{"bad port", "WEB_SERVER_PORT=70000\n", "WEB_SERVER_PORT"},
		{"port not a number", "WEB_SERVER_PORT=http\n", "WEB_SERVER_PORT"},
		{"zero speed", "PLAYBACK_SPEED=0\n", "PLAYBACK_SPEED"},
		{"zero tick", "PLAYBACK_TICK_INTERVAL=0\n", "PLAYBACK_TICK_INTERVAL"},
		{"fraction", "CAMERA_FOLLOW_FRACTION=1.5\n", "CAMERA_FOLLOW_FRACTION"},
		{"offset arity", "CAMERA_OFFSET=1,2\n", "CAMERA_OFFSET"},
		{"zero offset", "CAMERA_OFFSET=0,0,0\n", "CAMERA_OFFSET"},
		{"zero forward", "BODY_FORWARD_AXIS=0,0,0\n", "BODY_FORWARD_AXIS"},
		{"nan forward", "BODY_FORWARD_AXIS=NaN,0,1\n", "BODY_FORWARD_AXIS"},
		{"size", "SCENE_WIDTH=0\n", "SCENE_WIDTH"},
		{"i2c", "DISPLAY_I2C_ADDR=zz\n", "DISPLAY_I2C_ADDR"},
		{"i2c unsupported address", "DISPLAY_I2C_ADDR=0x3D\n", "DISPLAY_I2C_ADDR must be 0x3C"},
		{"cache", "FRAME_CACHE_SIZE=-1\n", "FRAME_CACHE_SIZE"},
		{"bool", "METRICS_STDOUT=maybe\n", "METRICS_STDOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3(" 0.5,-1 ,2e1")
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{0.5, -1, 20}, v)

	_, err = parseVec3("1,a,2")
	assert.Error(t, err)
}

func TestGlobal(t *testing.T) {
	require.NoError(t, InitGlobal(writeConfig(t, "WEB_SERVER_PORT=8181\n")))
	require.NotNil(t, Get())
	assert.Equal(t, 8181, Get().WebServerPort)

	// Later calls keep the first configuration.
	require.NoError(t, InitGlobal(writeConfig(t, "WEB_SERVER_PORT=8282\n")))
	assert.Equal(t, 8181, Get().WebServerPort)
}
