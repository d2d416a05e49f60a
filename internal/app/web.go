// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/plot"
	"github.com/relabs-tech/attitude_replay/internal/telemetry"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

const (
	maxUploadBytes = 256 << 20
	clientQueue    = 8
	writeTimeout   = 5 * time.Second
	frameCacheTTL  = 10 * time.Minute
)

// The default CheckOrigin rejects browsers whose Origin host differs from
// the request Host.
var upgrader = websocket.Upgrader{}

// ErrPathNotAllowed is returned when a browser asks to load a file outside
// the upload directory.
var ErrPathNotAllowed = errors.New("path outside the upload directory")

// WSMessage is a control message from the browser.
type WSMessage struct {
	Action string `json:"action"` // load, demo, play, pause, toggle, scrub, speed, mode, snapshot, click
	Index  int    `json:"index,omitempty"`
	Speed  int    `json:"speed,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Path   string `json:"path,omitempty"`
	View   string `json:"view,omitempty"`
	X      int    `json:"x,omitempty"`
}

// WSResponse is pushed to every browser.
type WSResponse struct {
	Type     string            `json:"type"` // state, loaded, snapshot, error
	State    *playback.State   `json:"state,omitempty"`
	Readout  *ReadoutMessage   `json:"readout,omitempty"`
	Frames   map[string]string `json:"frames,omitempty"` // view -> base64 PNG
	Snapshot *SnapshotInfo     `json:"snapshot,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// SnapshotInfo describes a captured still.
type SnapshotInfo struct {
	Number int      `json:"number"`
	Index  int      `json:"index"`
	T      *float64 `json:"t"`
	URL    string   `json:"url"`
}

type frameKey struct {
	view       string
	generation uint64
	index      int
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebServer serves the browser viewer. It observes the playback loop and
// pushes every new frame to the connected websockets.
type WebServer struct {
	ctx     context.Context
	engine  *Engine
	loop    *playback.Loop
	static  string
	uploads string
	logger  *slog.Logger
	frames  *expirable.LRU[frameKey, []byte]
	enc     png.Encoder

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    []byte
	readout *ReadoutMessage
	upload  int
}

// NewWebServer registers the server as an observer of loop. It must be
// called before loop.Run. Loads requested by browsers run under ctx.
func NewWebServer(ctx context.Context, cfg *config.Config, engine *Engine, loop *playback.Loop, logger *slog.Logger) (*WebServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	uploads, err := os.MkdirTemp("", "attitude-replay-uploads-")
	if err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	s := &WebServer{
		ctx:     ctx,
		engine:  engine,
		loop:    loop,
		static:  cfg.WebStaticDir,
		uploads: uploads,
		logger:  logger,
		frames:  expirable.NewLRU[frameKey, []byte](cfg.FrameCacheSize, nil, frameCacheTTL),
		enc:     png.Encoder{CompressionLevel: png.BestSpeed},
		clients: map[*wsClient]struct{}{},
	}
	loop.Observe(s.observe)
	return s, nil
}

// Close removes uploaded files.
func (s *WebServer) Close() error {
	return os.RemoveAll(s.uploads)
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/snapshots/{name}", s.handleSnapshot)
	mux.Handle("/", http.FileServer(http.Dir(s.static)))
	return mux
}

// observe runs on the loop goroutine, where the renderers' images are
// stable.
func (s *WebServer) observe(ev playback.StateEvent) {
	resp := WSResponse{Type: string(ev.Kind), State: &ev.State}
	switch ev.Kind {
	case playback.EventError:
		resp.Message = ev.Err.Error()
	case playback.EventSnapshot:
		resp.Snapshot = &SnapshotInfo{
			Number: ev.State.Snapshots - 1,
			Index:  ev.Snapshot.Index,
			T:      optional(ev.Snapshot.Time),
			URL:    fmt.Sprintf("/api/snapshots/%d.png", ev.State.Snapshots-1),
		}
	default:
		if ev.Frame.Record != nil {
			ro := newReadoutMessage(s.engine.Navball.Current())
			resp.Readout = &ro
			resp.Frames = s.encodeFrames(ev.Frame)
		}
	}

	msg, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding websocket message", "error", err)
		return
	}
	s.mu.Lock()
	if resp.Type != string(playback.EventError) && resp.Type != string(playback.EventSnapshot) {
		s.last = msg
		s.readout = resp.Readout
	}
	s.mu.Unlock()
	s.broadcast(msg)
}

// encodeFrames returns the views refreshed for f. Plot and instrument
// images depend only on the sample, so their encodings are cached; the
// scene depends on the camera history and is always encoded.
func (s *WebServer) encodeFrames(f playback.Frame) map[string]string {
	out := map[string]string{}
	put := func(name string, img *image.RGBA, cache bool) {
		key := frameKey{view: name, generation: f.Generation, index: f.Index}
		data, ok := s.frames.Get(key)
		if !ok || !cache {
			var err error
			if data, err = s.encodePNG(img); err != nil {
				s.logger.Error("encoding frame", "view", name, "error", err)
				return
			}
			if cache {
				s.frames.Add(key, data)
			}
		}
		out[name] = base64.StdEncoding.EncodeToString(data)
	}

	for _, id := range s.engine.Plots.Views() {
		spec, _ := s.engine.Plots.Spec(id)
		if spec.Secondary && f.Mode == playback.ModeSimplified {
			continue
		}
		put("plot/"+string(id), s.engine.Plots.Frame(id), true)
	}
	if f.Mode == playback.ModeFull {
		put("scene", s.engine.Scene.Frame(), false)
	}
	put("navball", s.engine.Navball.Frame(), true)
	return out
}

func (s *WebServer) encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *WebServer) broadcast(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Debug("websocket client lagging, message dropped")
		}
	}
}

func (s *WebServer) register(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	if s.last != nil {
		c.send <- s.last
	}
}

func (s *WebServer) unregister(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	close(c.send)
}

func (c *wsClient) writeLoop(logger *slog.Logger) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("websocket write error", "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// handleWS reads control messages until the browser goes away.
func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}
	s.register(c)
	defer s.unregister(c)
	go c.writeLoop(s.logger)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		if err := s.dispatch(msg); err != nil {
			s.sendError(c, err)
		}
	}
}

func (s *WebServer) sendError(c *wsClient, err error) {
	msg, _ := json.Marshal(WSResponse{Type: string(playback.EventError), Message: err.Error()})
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (s *WebServer) dispatch(msg WSMessage) error {
	switch msg.Action {
	case "play":
		return s.loop.Play()
	case "pause":
		return s.loop.Pause()
	case "toggle":
		return s.loop.Toggle()
	case "scrub":
		return s.loop.Scrub(msg.Index)
	case "speed":
		return s.loop.SetSpeed(msg.Speed)
	case "mode":
		m, err := playback.ParseMode(msg.Mode)
		if err != nil {
			return err
		}
		return s.loop.SetMode(m)
	case "snapshot":
		_, err := s.loop.Capture()
		return err
	case "click":
		return s.loop.Do(func(c *playback.Controller) error {
			index, err := s.engine.Plots.Click(plot.ViewID(msg.View), msg.X)
			if err != nil {
				return err
			}
			return c.Scrub(index)
		})
	case "load":
		path, err := s.uploadPath(msg.Path)
		if err != nil {
			return err
		}
		// Failures reach every client as an error event.
		s.loop.Load(s.ctx, path)
		return nil
	case "demo":
		s.loop.LoadDemo(s.ctx)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", msg.Action)
	}
}

// uploadPath resolves name, either relative to the upload directory or an
// absolute path inside it.
func (s *WebServer) uploadPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("load: missing path")
	}
	rel := name
	if filepath.IsAbs(name) {
		r, err := filepath.Rel(s.uploads, filepath.Clean(name))
		if err != nil {
			return "", fmt.Errorf("load %q: %w", name, ErrPathNotAllowed)
		}
		rel = r
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("load %q: %w", name, ErrPathNotAllowed)
	}
	return filepath.Join(s.uploads, rel), nil
}

type stateResponse struct {
	State   playback.State  `json:"state"`
	Readout *ReadoutMessage `json:"readout,omitempty"`
}

func (s *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.loop.State()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.mu.Lock()
	ro := s.readout
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stateResponse{State: st, Readout: ro})
}

// handleUpload loads a trajectory posted as the multipart field "file".
func (s *WebServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}
	defer file.Close()

	name := filepath.Base(hdr.Filename)
	if !trajectory.Supported(name) {
		writeJSONError(w, http.StatusUnsupportedMediaType, fmt.Errorf("%w: %s", trajectory.ErrUnsupportedFileExtension, name))
		return
	}

	s.mu.Lock()
	s.upload++
	path := filepath.Join(s.uploads, fmt.Sprintf("%03d-%s", s.upload, name))
	s.mu.Unlock()

	if err := saveUpload(path, file); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("trajectory uploaded", "file", name, "size", hdr.Size)

	if err := <-s.loop.Load(r.Context(), path); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.handleState(w, r)
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("saving upload: %w", err)
	}
	return dst.Close()
}

// handleSnapshot serves /api/snapshots/{n}.png.
func (s *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(strings.TrimSuffix(r.PathValue("name"), ".png"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	st, err := s.loop.State()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	snaps, err := s.loop.Snapshots()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	if n < 0 || n >= len(snaps) {
		http.NotFound(w, r)
		return
	}

	snap := snaps[n]
	key := frameKey{view: "snapshot", generation: st.Generation, index: snap.Index}
	data, ok := s.frames.Get(key)
	if !ok {
		if data, err = s.encodePNG(snap.Image); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		s.frames.Add(key, data)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// RunWeb serves the browser viewer until ctx is cancelled. The demo
// trajectory is loaded at startup when one is found.
func RunWeb(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) error {
	engine, err := NewEngine(cfg, logger, metrics)
	if err != nil {
		return err
	}
	loop := playback.NewLoop(engine.Controller, engine.Loader, cfg.PlaybackTickInterval, logger, metrics)
	srv, err := NewWebServer(ctx, cfg, engine, loop, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	go func() {
		if err := <-loop.LoadDemo(ctx); err != nil {
			logger.Warn("no demo trajectory loaded", "error", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("web server listening", "addr", httpSrv.Addr, "static", cfg.WebStaticDir)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-loopErr; !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
