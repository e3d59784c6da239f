// Package api provides the local HTTP control API: start/pause/stop, status,
// config and preset management, and a WebSocket stream of status transitions.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"runk/internal/autostart"
	"runk/internal/config"
	"runk/internal/engine"
)

// Server provides HTTP control over one engine instance. It binds to
// loopback only; the humanizer is a single-machine tool.
type Server struct {
	configMgr *config.Manager
	engine    *engine.Engine
	start     func()
	token     string
	wsMgr     *WSManager
}

// NewServer creates a new API server. start is the shared engine starter
// wired up in main so every control surface reports status the same way; a
// nil start falls back to a plain engine start with WebSocket broadcasting.
func NewServer(configMgr *config.Manager, eng *engine.Engine, start func()) *Server {
	s := &Server{
		configMgr: configMgr,
		engine:    eng,
		start:     start,
	}
	s.wsMgr = newWSManager(s)
	if s.start == nil {
		s.start = func() { eng.Start(configMgr.Get(), s.onStatus) }
	}
	return s
}

// Start starts the API server on the specified loopback port (blocking).
func (s *Server) Start(port int) error {
	cfg := s.configMgr.Get()
	s.token = cfg.Service.APIToken

	go s.wsMgr.start()

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}
	log.Printf("API: listening on %s", addr)

	server := &http.Server{
		Handler: s.handler(),
	}
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// handler assembles the route table behind the middleware chain.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/presets/load", s.handlePresetLoad)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic recovered: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the bearer token if one is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleStart handles POST /api/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.start()
	writeOK(w)
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.engine.Stop()
	writeOK(w)
}

// handlePause handles POST /api/pause (toggles pause/resume)
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.engine.TogglePause()
	writeOK(w)
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    s.engine.Status(),
		"running":   s.engine.Running(),
		"run_id":    s.engine.RunID(),
		"presets":   s.configMgr.ListPresets(),
		"autostart": autostart.IsEnabled(),
	})
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.configMgr.Get())

	case http.MethodPost:
		if s.engine.Running() {
			http.Error(w, "Stop the engine before changing configuration", http.StatusConflict)
			return
		}

		newCfg := config.DefaultConfig()
		if err := json.NewDecoder(r.Body).Decode(newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		s.configMgr.Set(newCfg)
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: failed to save config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
		writeOK(w)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePresets handles GET /api/presets
func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.configMgr.ListPresets())
}

// handlePresetLoad handles POST /api/presets/load?name=<preset>
func (s *Server) handlePresetLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.engine.Running() {
		http.Error(w, "Stop the engine before loading a preset", http.StatusConflict)
		return
	}

	name := config.SanitizePresetName(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "Missing or invalid name parameter", http.StatusBadRequest)
		return
	}

	if err := s.configMgr.LoadPreset(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeOK(w)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// onStatus forwards engine transitions to connected WebSocket clients.
func (s *Server) onStatus(status string) {
	s.BroadcastStatus(status, s.engine.RunID())
}

// Close stops the WebSocket hub. Safe to call repeatedly.
func (s *Server) Close() {
	s.wsMgr.stop()
}

// BroadcastStatus publishes a status transition to all WebSocket clients.
func (s *Server) BroadcastStatus(status, runID string) {
	if s.wsMgr != nil {
		s.wsMgr.BroadcastStatus(status, runID)
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
