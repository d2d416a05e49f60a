// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/orientation"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/telemetry"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// Publisher sends one retained message.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

// MQTTSink is a pipeline stage that publishes the pose and kinematic state
// of every frame it sees.
type MQTTSink struct {
	pub        Publisher
	poseTopic  string
	stateTopic string
	forward    mgl64.Vec3
}

// NewMQTTSink publishes poses on cfg.TopicPose and states on cfg.TopicState.
func NewMQTTSink(pub Publisher, cfg *config.Config) *MQTTSink {
	return &MQTTSink{
		pub:        pub,
		poseTopic:  cfg.TopicPose,
		stateTopic: cfg.TopicState,
		forward:    cfg.BodyForwardAxis,
	}
}

// Update publishes the state, then the pose. A sample without orientation
// publishes only its state and reports a transient frame.
func (s *MQTTSink) Update(f playback.Frame) error {
	if f.Record == nil {
		return nil
	}

	state, err := json.Marshal(newStateMessage(f, s.forward))
	if err != nil {
		return fmt.Errorf("state marshal: %w", err)
	}
	if err := s.pub.Publish(s.stateTopic, state); err != nil {
		return fmt.Errorf("publish %s: %w", s.stateTopic, err)
	}

	if !trajectory.QuatAvailable(f.Record.Orientation[f.Index]) {
		return fmt.Errorf("%w: sample %d has no orientation", playback.ErrTransientFrame, f.Index)
	}
	pose, err := json.Marshal(f.Record.Euler[f.Index].Degrees())
	if err != nil {
		return fmt.Errorf("pose marshal: %w", err)
	}
	if err := s.pub.Publish(s.poseTopic, pose); err != nil {
		return fmt.Errorf("publish %s: %w", s.poseTopic, err)
	}
	return nil
}

// ReplayProducer plays a record through an MQTTSink at a fixed tick rate.
type ReplayProducer struct {
	ctrl   *playback.Controller
	repeat bool
	logger *slog.Logger
}

// NewReplayProducer builds a controller whose only stage is sink.
func NewReplayProducer(sink playback.Stage, speed int, repeat bool, logger *slog.Logger, metrics *telemetry.Metrics) (*ReplayProducer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pipe := playback.NewPipeline(logger, metrics).Add("mqtt", sink, false)
	ctrl := playback.NewController(pipe, nil, logger, metrics)
	if err := ctrl.SetSpeed(speed); err != nil {
		return nil, err
	}
	return &ReplayProducer{ctrl: ctrl, repeat: repeat, logger: logger}, nil
}

// Run installs rec and advances it once per tick. It returns when the
// record ends (unless repeating) or ctx is cancelled.
func (p *ReplayProducer) Run(ctx context.Context, rec *trajectory.Record, ticks <-chan time.Time) error {
	p.ctrl.Install(rec)
	if err := p.ctrl.Play(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			p.ctrl.Tick()
			if p.ctrl.Playing() {
				continue
			}
			if !p.repeat {
				p.logger.Info("replay finished", "samples", rec.Len())
				return nil
			}
			p.logger.Debug("replay restarting")
			if err := p.ctrl.Play(); err != nil {
				return err
			}
		}
	}
}

// State exposes the controller state for tests and logging.
func (p *ReplayProducer) State() playback.State {
	return p.ctrl.State()
}

// publishPoses publishes src on topic once per tick until ctx ends.
func publishPoses(ctx context.Context, pub Publisher, src orientation.Source, topic string, ticks <-chan time.Time, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			pose, err := src.Next()
			if err != nil {
				logger.Warn("error from pose source", "err", err)
				continue
			}
			payload, err := json.Marshal(pose)
			if err != nil {
				logger.Warn("json marshal error", "err", err)
				continue
			}
			if err := pub.Publish(topic, payload); err != nil {
				return fmt.Errorf("publish %s: %w", topic, err)
			}
			logger.Debug("published pose", "roll", pose.Roll, "pitch", pose.Pitch, "yaw", pose.Yaw)
		}
	}
}

// RunReplayProducer publishes path (or the synthetic mock source when path
// is empty) to the broker.
func RunReplayProducer(ctx context.Context, cfg *config.Config, path string, repeat bool, logger *slog.Logger, metrics *telemetry.Metrics) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "replay_producer")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT", "broker", cfg.MQTTBroker)

	pub := mqttPublisher{client: client}
	ticker := time.NewTicker(cfg.PlaybackTickInterval)
	defer ticker.Stop()

	if path == "" {
		logger.Info("using mock orientation source")
		return publishPoses(ctx, pub, orientation.NewMockSource(), cfg.TopicPose, ticker.C, logger)
	}

	rec, err := trajectory.NewLoader(logger, nil).Load(ctx, path)
	if err != nil {
		return err
	}
	producer, err := NewReplayProducer(NewMQTTSink(pub, cfg), cfg.PlaybackSpeed, repeat, logger, metrics)
	if err != nil {
		return err
	}
	logger.Info("replaying", "source", rec.Source, "samples", rec.Len(), "repeat", repeat)
	return producer.Run(ctx, rec, ticker.C)
}
