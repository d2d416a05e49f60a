// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/orientation"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/telemetry"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

func formatPose(p orientation.Pose) string {
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f", p.Roll, p.Pitch, p.Yaw)
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return "---"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func formatState(s StateMessage) string {
	return fmt.Sprintf("[STATE] #%d t=%s alt=%s spd=%s hdg=%s fuel=%s",
		s.Index,
		formatOptional(s.T, 2),
		formatOptional(s.Position[2], 1),
		formatOptional(s.Speed, 1),
		formatOptional(s.Heading, 1),
		formatOptional(s.Fuel, 3),
	)
}

// ConsoleSink prints the pose and state of every key frame (see
// trajectory.KeyFrames) that playback reaches or steps over, so the output
// matches `trajtool keyframes` whatever the playback speed.
type ConsoleSink struct {
	w     io.Writer
	every int
	step  int
	cfg   *config.Config

	rec      *trajectory.Record
	keys     []int
	prev     int
	havePrev bool
}

// NewConsoleSink prints to w. every <= 0 prints only the ends. Moves larger
// than the configured playback speed are jumps and print only the sample
// landed on.
func NewConsoleSink(w io.Writer, every int, cfg *config.Config) *ConsoleSink {
	step := cfg.PlaybackSpeed
	if step < 0 {
		step = -step
	}
	return &ConsoleSink{w: w, every: every, step: max(step, 1), cfg: cfg}
}

// due returns the key frames between the previous update and i in playback
// order, i included and the previous index excluded.
func (s *ConsoleSink) due(i int) []int {
	if s.havePrev && i == s.prev {
		return nil
	}
	from, to := i, i
	if s.havePrev && abs(i-s.prev) <= s.step {
		if i > s.prev {
			from = s.prev + 1
		} else {
			to = s.prev - 1
		}
	}
	lo, _ := slices.BinarySearch(s.keys, from)
	hi, _ := slices.BinarySearch(s.keys, to+1)
	out := slices.Clone(s.keys[lo:hi])
	if i < s.prev {
		slices.Reverse(out)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Update prints the key frames reached by f.
func (s *ConsoleSink) Update(f playback.Frame) error {
	if f.Record == nil {
		return nil
	}
	if f.Record != s.rec {
		s.rec = f.Record
		s.keys = trajectory.KeyFrames(f.Record.Len(), s.every)
		s.havePrev = false
	}
	for _, k := range s.due(f.Index) {
		kf := f
		kf.Index = k
		if trajectory.QuatAvailable(f.Record.Orientation[k]) {
			fmt.Fprintln(s.w, formatPose(f.Record.Euler[k].Degrees()))
		}
		fmt.Fprintln(s.w, formatState(newStateMessage(kf, s.cfg.BodyForwardAxis)))
	}
	s.prev, s.havePrev = f.Index, true
	return nil
}

// RunConsole replays path (the demo trajectory when empty) in real time,
// printing key frames to w.
func RunConsole(ctx context.Context, cfg *config.Config, w io.Writer, path string, every int, logger *slog.Logger, metrics *telemetry.Metrics) error {
	if logger == nil {
		logger = slog.Default()
	}
	var demo []string
	if len(cfg.DemoPaths) > 0 {
		demo = cfg.DemoPaths
	}
	loader := trajectory.NewLoader(logger, demo)

	var (
		rec *trajectory.Record
		err error
	)
	if path == "" {
		rec, err = loader.LoadDemo(ctx)
	} else {
		rec, err = loader.Load(ctx, path)
	}
	metrics.LoadFinished(err)
	if err != nil {
		return err
	}

	producer, err := NewReplayProducer(NewConsoleSink(w, every, cfg), cfg.PlaybackSpeed, false, logger, metrics)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(cfg.PlaybackTickInterval)
	defer ticker.Stop()
	return producer.Run(ctx, rec, ticker.C)
}

// RunConsoleMQTT prints every pose and state published on the broker until
// ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "console")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", "broker", cfg.MQTTBroker)

	lines := make(chan string, 64)
	handlers := map[string]func([]byte) (string, error){
		cfg.TopicPose: func(b []byte) (string, error) {
			var p orientation.Pose
			err := json.Unmarshal(b, &p)
			return formatPose(p), err
		},
		cfg.TopicState: func(b []byte) (string, error) {
			var s StateMessage
			err := json.Unmarshal(b, &s)
			return formatState(s), err
		},
	}
	for topic, format := range handlers {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				logger.Warn("unmarshal error", "topic", msg.Topic(), "err", err)
				return
			}
			select {
			case lines <- line:
			default:
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		logger.Info("subscribed", "topic", topic)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case line := <-lines:
			fmt.Fprintln(w, line)
		}
	}
}
