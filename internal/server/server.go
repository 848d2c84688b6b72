// Package server runs the polling scheduler and serves the dashboard over
// HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/macduff/obdscan/internal/obd"
	"github.com/macduff/obdscan/internal/poll"
	"github.com/macduff/obdscan/internal/recorder"
)

// IgnorablePort is implemented by ports whose not-ready state the user can
// choose to ignore for the session.
type IgnorablePort interface {
	MarkUserIgnored()
}

// Server coordinates sensor polling and broadcasts snapshots to WebSocket
// clients. It also implements poll.Presenter: engine alerts and prompts are
// forwarded to clients as frames, and user decisions arrive over the API.
type Server struct {
	cfg    *Config
	log    zerolog.Logger
	table  *obd.Table
	engine *poll.Engine
	port   poll.Port
	rec    *recorder.Recorder
	webFS  fs.FS

	// engineMu serializes engine access between the tick loop and HTTP
	// handlers.
	engineMu sync.Mutex

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	// Prompt state. Decisions arrive asynchronously over the API; the
	// engine gets the stored preference synchronously.
	promptMu       sync.Mutex
	ignoreDevice   bool
	ignorePort     bool
	devicePrompted bool
	portPrompted   bool
	lastAlert      poll.Condition
	lastAlertStamp time.Time

	statesPath string
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Snapshot *poll.Snapshot `json:"snapshot,omitempty"`
	Alert    string         `json:"alert,omitempty"`
	Prompt   string         `json:"prompt,omitempty"`
	Stamp    int64          `json:"stamp"` // Unix ms
}

// New creates a Server. The engine is constructed here so that the server
// can wire itself in as the engine's presenter.
func New(cfg *Config, port poll.Port, table *obd.Table, rate *poll.RateEstimator, webFS fs.FS, log zerolog.Logger) *Server {
	statesPath := filepath.Join(filepath.Dir(cfg.path), "sensors.yaml")
	if cfg.path == "" {
		statesPath = "/etc/obdscan/sensors.yaml"
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		table:   table,
		port:    port,
		rec:     recorder.New(cfg.Recording, log),
		webFS:   webFS,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		statesPath: statesPath,
		lastAlert:  -1,
	}

	if err := loadSensorStates(statesPath, table); err != nil {
		log.Warn().Err(err).Str("path", statesPath).Msg("sensor states load failed")
	}
	for p := 0; p < table.PageCount(); p++ {
		table.FillPage(p)
	}

	units := obd.Metric
	if cfg.Display.Units == "imperial" {
		units = obd.Imperial
	}
	s.engine = poll.New(poll.Config{
		Units:          units,
		RequestTimeout: time.Duration(cfg.Polling.RequestTimeoutMs) * time.Millisecond,
	}, table, port, s, rate, log)
	if cfg.Polling.StartPage > 0 {
		s.engine.OnPageChanged(cfg.Polling.StartPage)
	}
	return s
}

// Run starts the HTTP server and the polling scheduler.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/page", s.handlePage)
	mux.HandleFunc("/api/sensors/toggle", s.handleToggle)
	mux.HandleFunc("/api/sensors/all", s.handleToggleAll)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/prompt", s.handlePrompt)

	go s.tickLoop(ctx)
	go s.broadcastLoop(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		s.saveStates()
		s.rec.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.cfg.Server.ListenAddr).Msg("listening")
	return srv.ListenAndServe()
}

// tickLoop drives the engine at the base tick period.
func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(poll.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engineMu.Lock()
			s.engine.Tick()
			s.engineMu.Unlock()
		}
	}
}

// broadcastLoop sends snapshots to clients at 10 Hz and feeds the recorder.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engineMu.Lock()
			snap := s.engine.Snapshot()
			s.engineMu.Unlock()

			s.broadcast(Frame{Snapshot: &snap, Stamp: time.Now().UnixMilli()})
			s.rec.Record(snap)
		}
	}
}

// Alert implements poll.Presenter. Repeats of the same condition within a
// second are collapsed to keep a flapping bus from flooding clients.
func (s *Server) Alert(c poll.Condition) {
	s.promptMu.Lock()
	now := time.Now()
	if c == s.lastAlert && now.Sub(s.lastAlertStamp) < time.Second {
		s.promptMu.Unlock()
		return
	}
	s.lastAlert = c
	s.lastAlertStamp = now
	s.promptMu.Unlock()

	s.log.Warn().Str("condition", c.String()).Msg("communication alert")
	s.broadcast(Frame{Alert: c.String(), Stamp: time.Now().UnixMilli()})
}

// PromptDeviceNotResponding implements poll.Presenter. The first call
// broadcasts a prompt frame and acknowledges; once a client posts an ignore
// decision, subsequent calls return it without prompting again.
func (s *Server) PromptDeviceNotResponding() poll.Decision {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	if s.ignoreDevice {
		return poll.DecisionIgnore
	}
	if !s.devicePrompted {
		s.devicePrompted = true
		go s.broadcast(Frame{Prompt: "device_not_responding", Stamp: time.Now().UnixMilli()})
	}
	return poll.DecisionAck
}

// PromptPortNotReady implements poll.Presenter.
func (s *Server) PromptPortNotReady() poll.Decision {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	if s.ignorePort {
		return poll.DecisionIgnore
	}
	if !s.portPrompted {
		s.portPrompted = true
		go s.broadcast(Frame{Prompt: "port_not_ready", Stamp: time.Now().UnixMilli()})
	}
	return poll.DecisionAck
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.log.Info().Int("clients", total).Msg("ws client connected")

	// Send an immediate snapshot so the page renders without waiting
	s.engineMu.Lock()
	snap := s.engine.Snapshot()
	s.engineMu.Unlock()
	if data, err := json.Marshal(Frame{Snapshot: &snap, Stamp: time.Now().UnixMilli()}); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive, detects disconnect)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.log.Info().Int("clients", total).Msg("ws client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			s.log.Error().Err(err).Msg("config save failed")
		}

		units := obd.Metric
		if s.cfg.Display.Units == "imperial" {
			units = obd.Imperial
		}
		s.engineMu.Lock()
		s.engine.SetUnits(units)
		s.engineMu.Unlock()
		s.rec.SetEnabled(s.cfg.Recording.Enabled)

		writeOK(w)

	default:
		http.Error(w, "method not allowed", 405)
	}
}

// handlePage switches the visible sensor page: POST {"page": n} or
// {"action": "next"} / {"action": "prev"}.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Page   *int   `json:"page"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}

	s.engineMu.Lock()
	page := s.engine.Page()
	last := s.table.PageCount() - 1
	switch {
	case req.Page != nil:
		page = *req.Page
	case strings.EqualFold(req.Action, "next"):
		if page < last {
			page++
		}
	case strings.EqualFold(req.Action, "prev"):
		if page > 0 {
			page--
		}
	}
	s.engine.OnPageChanged(page)
	s.engineMu.Unlock()

	writeOK(w)
}

// handleToggle flips one sensor's enabled flag: POST {"index": n}, where n
// is the absolute catalog index.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	if req.Index < 0 || req.Index >= len(s.table.Sensors) {
		http.Error(w, "index out of range", 400)
		return
	}

	s.engineMu.Lock()
	s.engine.OnSensorToggled(req.Index)
	s.engineMu.Unlock()

	s.saveStates()
	writeOK(w)
}

// handleToggleAll enables or disables every sensor on the current page:
// POST {"enabled": true|false}.
func (s *Server) handleToggleAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}

	s.engineMu.Lock()
	page := s.engine.Page()
	base := page * obd.SensorsPerPage
	for i, sensor := range s.table.Page(page) {
		if sensor.Enabled != req.Enabled {
			s.engine.OnSensorToggled(base + i)
		}
	}
	s.engineMu.Unlock()

	s.saveStates()
	writeOK(w)
}

// handleReset requests a full interface reset (ATZ on the next tick).
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.engineMu.Lock()
	s.engine.OnResetRequested()
	s.engineMu.Unlock()
	writeOK(w)
}

// handlePrompt records the user's answer to a broadcast prompt:
// POST {"prompt": "device_not_responding"|"port_not_ready", "ignore": bool}.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
		Ignore bool   `json:"ignore"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}

	s.promptMu.Lock()
	switch req.Prompt {
	case "device_not_responding":
		s.ignoreDevice = req.Ignore
		s.devicePrompted = false
	case "port_not_ready":
		s.ignorePort = req.Ignore
		s.portPrompted = false
		if req.Ignore {
			if p, ok := s.port.(IgnorablePort); ok {
				p.MarkUserIgnored()
			}
		}
	default:
		s.promptMu.Unlock()
		http.Error(w, "unknown prompt", 400)
		return
	}
	s.promptMu.Unlock()

	writeOK(w)
}

func (s *Server) saveStates() {
	if err := saveSensorStates(s.statesPath, s.table); err != nil {
		s.log.Error().Err(err).Str("path", s.statesPath).Msg("sensor states save failed")
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
