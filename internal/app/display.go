// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/orientation"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// Screen is the part of the SSD1306 driver the update loop needs.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplayData holds the latest replayed pose and state for the OLED.
type DisplayData struct {
	mu sync.RWMutex

	pose     orientation.Pose
	havePose bool

	state     StateMessage
	haveState bool
}

// displaySnapshot is a lock-free copy of DisplayData.
type displaySnapshot struct {
	pose      orientation.Pose
	havePose  bool
	state     StateMessage
	haveState bool
}

func (d *DisplayData) handlePose(payload []byte) error {
	var p orientation.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("pose unmarshal: %w", err)
	}
	d.mu.Lock()
	d.pose = p
	d.havePose = true
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) handleState(payload []byte) error {
	var s StateMessage
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("state unmarshal: %w", err)
	}
	d.mu.Lock()
	d.state = s
	d.haveState = true
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		pose:      d.pose,
		havePose:  d.havePose,
		state:     d.state,
		haveState: d.haveState,
	}
}

// RunDisplay mirrors the replay producer's topics on an SSD1306 until ctx
// is cancelled.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "display")

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	logger.Info("display initialized", "addr", fmt.Sprintf("0x%02X", cfg.DisplayI2CAddr))

	if err := showSplash(dev); err != nil {
		logger.Warn("error showing splash", "err", err)
	}

	data := &DisplayData{}

	mopts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(mopts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", "broker", cfg.MQTTBroker)

	subs := map[string]func([]byte) error{
		cfg.TopicPose:  data.handlePose,
		cfg.TopicState: data.handleState,
	}
	for topic, handle := range subs {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				logger.Warn("dropping message", "topic", msg.Topic(), "err", err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		logger.Info("subscribed", "topic", topic)
	}

	ticker := time.NewTicker(cfg.DisplayUpdateInterval)
	defer ticker.Stop()

	logger.Info("starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := updateDisplay(dev, data.snapshot()); err != nil {
				logger.Warn("error updating display", "err", err)
			}
		}
	}
}

func newDisplayImage() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// renderDisplay lays out one OLED frame: attitude on the first two rows,
// heading and speed below.
func renderDisplay(s displaySnapshot) *image1bit.VerticalLSB {
	img, drawer := newDisplayImage()

	if !s.havePose {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Attitude")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	lines := []string{
		fmt.Sprintf("R%6.1f P%6.1f", s.pose.Roll, s.pose.Pitch),
		fmt.Sprintf("Y%6.1f", s.pose.Yaw),
		"HDG ---",
		"SPD ---",
	}
	if s.haveState {
		if h := s.state.Heading; h != nil {
			lines[2] = fmt.Sprintf("HDG %05.1f", *h)
		}
		if v := s.state.Speed; v != nil {
			lines[3] = fmt.Sprintf("SPD %.1f m/s", *v)
		}
		if t := s.state.T; t != nil {
			lines[1] += fmt.Sprintf(" %5.1fs", *t)
		}
	}
	for i, l := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(l)
	}
	return img
}

func updateDisplay(dev Screen, s displaySnapshot) error {
	return dev.Draw(dev.Bounds(), renderDisplay(s), image.Point{})
}

func showSplash(dev Screen) error {
	img, drawer := newDisplayImage()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Attitude Replay")

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Waiting for MQTT")

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
