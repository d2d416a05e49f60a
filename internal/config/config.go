// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
)

// DefaultPath is the configuration file the commands read.
const DefaultPath = "attitude_config.txt"

// SSD1306Addr is the only I2C address the ssd1306 driver talks to.
const SSD1306Addr = 0x3C

// EnvPrefix prefixes environment overrides, e.g. ATTREPLAY_LOG_LEVEL.
const EnvPrefix = "ATTREPLAY"

// Config holds all application configuration values.
type Config struct {
	// Logging
	LogLevel slog.Level
	LogDir   string // empty disables the rotating file

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDDisplay  string

	// Topics
	TopicPose  string
	TopicState string

	// Playback
	PlaybackTickInterval time.Duration
	PlaybackSpeed        int

	// Scene
	CameraFollowFraction float64
	CameraOffset         mgl64.Vec3
	BodyForwardAxis      mgl64.Vec3
	SceneWidth           int
	SceneHeight          int
	SnapshotWidth        int
	SnapshotHeight       int

	// Instrument and plots
	NavballSize int
	PlotWidth   int
	PlotHeight  int

	// DemoPaths overrides the demo trajectory search list when non-empty.
	DemoPaths []string

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval time.Duration

	MetricsStdout  bool
	FrameCacheSize int
}

var defaults = map[string]any{
	"LOG_LEVEL":               "info",
	"LOG_DIR":                 "",
	"WEB_SERVER_PORT":         8080,
	"WEB_STATIC_DIR":          "./web",
	"MQTT_BROKER":             "tcp://localhost:1883",
	"MQTT_CLIENT_ID_PRODUCER": "attitude-replay-producer",
	"MQTT_CLIENT_ID_DISPLAY":  "attitude-replay-display",
	"TOPIC_POSE":              "attitude/pose",
	"TOPIC_STATE":             "attitude/state",
	"PLAYBACK_TICK_INTERVAL":  20,
	"PLAYBACK_SPEED":          1,
	"CAMERA_FOLLOW_FRACTION":  0.25,
	"CAMERA_OFFSET":           "-6,-6,3",
	"BODY_FORWARD_AXIS":       "0,0,1",
	"SCENE_WIDTH":             640,
	"SCENE_HEIGHT":            480,
	"SNAPSHOT_WIDTH":          160,
	"SNAPSHOT_HEIGHT":         120,
	"NAVBALL_SIZE":            200,
	"PLOT_WIDTH":              480,
	"PLOT_HEIGHT":             150,
	"DEMO_PATHS":              "",
	"DISPLAY_I2C_ADDR":        "0x3C",
	"DISPLAY_UPDATE_INTERVAL": 200,
	"METRICS_STDOUT":          false,
	"FRAME_CACHE_SIZE":        64,
}

// Package-level unexported variables for the singleton: InitGlobal sets
// globalConfig once under the write lock, Get reads it under the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the KEY=VALUE configuration file, applies ATTREPLAY_*
// environment overrides and defaults, and validates the result. An empty
// configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		for _, key := range v.AllKeys() {
			if _, ok := defaults[strings.ToUpper(key)]; !ok {
				return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
			}
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogDir:               v.GetString("LOG_DIR"),
		WebStaticDir:         v.GetString("WEB_STATIC_DIR"),
		MQTTBroker:           v.GetString("MQTT_BROKER"),
		MQTTClientIDProducer: v.GetString("MQTT_CLIENT_ID_PRODUCER"),
		MQTTClientIDDisplay:  v.GetString("MQTT_CLIENT_ID_DISPLAY"),
		TopicPose:            v.GetString("TOPIC_POSE"),
		TopicState:           v.GetString("TOPIC_STATE"),
		DemoPaths:            splitList(v.GetString("DEMO_PATHS")),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v.GetString("LOG_LEVEL"), err)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"WEB_SERVER_PORT", &cfg.WebServerPort},
		{"PLAYBACK_SPEED", &cfg.PlaybackSpeed},
		{"SCENE_WIDTH", &cfg.SceneWidth},
		{"SCENE_HEIGHT", &cfg.SceneHeight},
		{"SNAPSHOT_WIDTH", &cfg.SnapshotWidth},
		{"SNAPSHOT_HEIGHT", &cfg.SnapshotHeight},
		{"NAVBALL_SIZE", &cfg.NavballSize},
		{"PLOT_WIDTH", &cfg.PlotWidth},
		{"PLOT_HEIGHT", &cfg.PlotHeight},
		{"FRAME_CACHE_SIZE", &cfg.FrameCacheSize},
	}
	for _, it := range ints {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(it.key)))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", it.key, v.GetString(it.key), err)
		}
		*it.dst = n
	}

	for key, dst := range map[string]*time.Duration{
		"PLAYBACK_TICK_INTERVAL":  &cfg.PlaybackTickInterval,
		"DISPLAY_UPDATE_INTERVAL": &cfg.DisplayUpdateInterval,
	} {
		ms, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", key, v.GetString(key), err)
		}
		*dst = time.Duration(ms) * time.Millisecond
	}

	frac, err := strconv.ParseFloat(strings.TrimSpace(v.GetString("CAMERA_FOLLOW_FRACTION")), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CAMERA_FOLLOW_FRACTION %q: %w", v.GetString("CAMERA_FOLLOW_FRACTION"), err)
	}
	cfg.CameraFollowFraction = frac

	if cfg.CameraOffset, err = parseVec3(v.GetString("CAMERA_OFFSET")); err != nil {
		return nil, fmt.Errorf("invalid CAMERA_OFFSET: %w", err)
	}
	if cfg.BodyForwardAxis, err = parseVec3(v.GetString("BODY_FORWARD_AXIS")); err != nil {
		return nil, fmt.Errorf("invalid BODY_FORWARD_AXIS: %w", err)
	}

	addr, err := strconv.ParseUint(strings.TrimSpace(v.GetString("DISPLAY_I2C_ADDR")), 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", v.GetString("DISPLAY_I2C_ADDR"), err)
	}
	cfg.DisplayI2CAddr = uint16(addr)

	cfg.MetricsStdout, err = strconv.ParseBool(strings.TrimSpace(v.GetString("METRICS_STDOUT")))
	if err != nil {
		return nil, fmt.Errorf("invalid METRICS_STDOUT %q: %w", v.GetString("METRICS_STDOUT"), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks ranges that the components rely on.
func (c *Config) validate() error {
	if c.WebServerPort < 1 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicPose == "" || c.TopicState == "" {
		return fmt.Errorf("TOPIC_POSE and TOPIC_STATE are required")
	}
	if c.PlaybackTickInterval <= 0 {
		return fmt.Errorf("PLAYBACK_TICK_INTERVAL must be positive, got %v", c.PlaybackTickInterval)
	}
	if c.PlaybackSpeed == 0 {
		return fmt.Errorf("PLAYBACK_SPEED must be non-zero")
	}
	if c.CameraFollowFraction <= 0 || c.CameraFollowFraction > 1 {
		return fmt.Errorf("CAMERA_FOLLOW_FRACTION must be in (0, 1], got %v", c.CameraFollowFraction)
	}
	if c.CameraOffset.Len() == 0 {
		return fmt.Errorf("CAMERA_OFFSET must be non-zero")
	}
	if c.BodyForwardAxis.Len() == 0 {
		return fmt.Errorf("BODY_FORWARD_AXIS must be non-zero")
	}
	for name, n := range map[string]int{
		"SCENE_WIDTH":     c.SceneWidth,
		"SCENE_HEIGHT":    c.SceneHeight,
		"SNAPSHOT_WIDTH":  c.SnapshotWidth,
		"SNAPSHOT_HEIGHT": c.SnapshotHeight,
		"NAVBALL_SIZE":    c.NavballSize,
		"PLOT_WIDTH":      c.PlotWidth,
		"PLOT_HEIGHT":     c.PlotHeight,
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, n)
		}
	}
	if c.DisplayI2CAddr != SSD1306Addr {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0x%02X (the ssd1306 driver's fixed address), got 0x%02X", SSD1306Addr, c.DisplayI2CAddr)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %v", c.DisplayUpdateInterval)
	}
	if c.FrameCacheSize <= 0 {
		return fmt.Errorf("FRAME_CACHE_SIZE must be positive, got %d", c.FrameCacheSize)
	}
	return nil
}

// parseVec3 reads "x,y,z".
func parseVec3(s string) (mgl64.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var out mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mgl64.Vec3{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return mgl64.Vec3{}, fmt.Errorf("component %d of %q is not finite", i, s)
		}
		out[i] = f
	}
	return out, nil
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
