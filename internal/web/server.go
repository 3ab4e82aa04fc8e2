// Package web serves the dashboard JSON API: session login, runtime
// settings, bot and endpoint CRUD, the change log, and backup/restore.
// The watcher itself is read-only from here; handlers only touch the
// shared store.
package web

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/Linhcute123/biendongsodu/internal/backup"
	"github.com/Linhcute123/biendongsodu/internal/db"
)

const (
	sessionCookie = "bw_session"
	sessionTTL    = 24 * time.Hour
)

// WatcherStatus reports whether the polling loop is running
type WatcherStatus interface {
	Running() bool
}

// APIResponse is the envelope for every JSON response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server is the dashboard API server
type Server struct {
	db            *db.Database
	watcher       WatcherStatus
	router        *mux.Router
	adminPassword string

	sessionMu sync.Mutex
	sessions  map[string]time.Time
}

// NewServer creates the dashboard server over the shared store
func NewServer(database *db.Database, watcher WatcherStatus, adminPassword string) *Server {
	s := &Server{
		db:            database,
		watcher:       watcher,
		router:        mux.NewRouter(),
		adminPassword: adminPassword,
		sessions:      make(map[string]time.Time),
	}
	s.setupRoutes()
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/logout", s.handleLogout).Methods("POST")
	authed.HandleFunc("/status", s.handleStatus).Methods("GET")
	authed.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	authed.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")
	authed.HandleFunc("/bots", s.handleListBots).Methods("GET")
	authed.HandleFunc("/bots", s.handleAddBot).Methods("POST")
	authed.HandleFunc("/bots/{id:[0-9]+}", s.handleDeleteBot).Methods("DELETE")
	authed.HandleFunc("/sites", s.handleListSites).Methods("GET")
	authed.HandleFunc("/sites", s.handleAddSite).Methods("POST")
	authed.HandleFunc("/sites/{id:[0-9]+}", s.handleDeleteSite).Methods("DELETE")
	authed.HandleFunc("/sites/{id:[0-9]+}/history", s.handleSiteHistory).Methods("GET")
	authed.HandleFunc("/backup", s.handleBackup).Methods("GET")
	authed.HandleFunc("/restore", s.handleRestore).Methods("POST")
}

// ---- sessions ----

func (s *Server) newSession() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.sessionMu.Lock()
	s.sessions[token] = time.Now().Add(sessionTTL)
	s.sessionMu.Unlock()

	return token, nil
}

func (s *Server) validSession(token string) bool {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	expiry, ok := s.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.sessions, token)
		return false
	}
	return true
}

func (s *Server) dropSession(token string) {
	s.sessionMu.Lock()
	delete(s.sessions, token)
	s.sessionMu.Unlock()
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || !s.validSession(cookie.Value) {
			s.writeError(w, http.StatusUnauthorized, "Login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- handlers ----

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
		s.writeError(w, http.StatusUnauthorized, "Wrong password")
		return
	}

	token, err := s.newSession()
	if err != nil {
		log.Errorf("handleLogin: failed to create session: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.writeJSON(w, APIResponse{Success: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.dropSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	s.writeJSON(w, APIResponse{Success: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now(),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"watcher_running": s.watcher.Running(),
		},
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetSettings()
	if err != nil {
		log.Errorf("handleGetSettings: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings db.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid settings body")
		return
	}

	if settings.PollInterval <= 0 {
		s.writeError(w, http.StatusBadRequest, "Poll interval must be positive")
		return
	}
	if settings.Threshold != nil && *settings.Threshold < 0 {
		s.writeError(w, http.StatusBadRequest, "Threshold must not be negative")
		return
	}
	if settings.DefaultBotID != nil {
		if _, err := s.db.GetBotByID(*settings.DefaultBotID); err != nil {
			s.writeError(w, http.StatusBadRequest, "Default bot does not exist")
			return
		}
	}

	// The store clamps the interval to the floor
	if err := s.db.UpdateSettings(&settings); err != nil {
		log.Errorf("handleUpdateSettings: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: settings})
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := s.db.GetBots()
	if err != nil {
		log.Errorf("handleListBots: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list bots")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: bots})
}

func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid bot body")
		return
	}
	if req.Name == "" || req.Token == "" {
		s.writeError(w, http.StatusBadRequest, "Bot name and token are required")
		return
	}

	bot, err := s.db.InsertBot(req.Name, req.Token)
	if err != nil {
		log.Errorf("handleAddBot: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to add bot")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: bot})
}

func (s *Server) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := s.db.DeleteBot(id); err != nil {
		if err == db.ErrNotFound {
			s.writeError(w, http.StatusNotFound, "Bot not found")
			return
		}
		log.Errorf("handleDeleteBot: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete bot")
		return
	}
	s.writeJSON(w, APIResponse{Success: true})
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.db.GetSites()
	if err != nil {
		log.Errorf("handleListSites: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list endpoints")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: sites})
}

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		URL          string `json:"url"`
		BalanceField string `json:"balance_field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid endpoint body")
		return
	}
	if req.Name == "" || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "Endpoint name and URL are required")
		return
	}

	site, err := s.db.InsertSite(req.Name, req.URL, req.BalanceField)
	if err != nil {
		log.Errorf("handleAddSite: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to add endpoint")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: site})
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := s.db.DeleteSite(id); err != nil {
		if err == db.ErrNotFound {
			s.writeError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		log.Errorf("handleDeleteSite: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete endpoint")
		return
	}
	s.writeJSON(w, APIResponse{Success: true})
}

func (s *Server) handleSiteHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if _, err := s.db.GetSiteByID(id); err != nil {
		if err == db.ErrNotFound {
			s.writeError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		log.Errorf("handleSiteHistory: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read endpoint")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.db.GetChangeLog(id, limit)
	if err != nil {
		log.Errorf("handleSiteHistory: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read change log")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: entries})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	data, err := backup.ExportJSON(s.db)
	if err != nil {
		log.Errorf("handleBackup: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=balance_watcher_backup.json")
	if _, err := w.Write(data); err != nil {
		log.Errorf("handleBackup: failed to write response: %v", err)
	}
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read backup body")
		return
	}

	wipe := r.URL.Query().Get("wipe") == "1" || r.URL.Query().Get("wipe") == "true"

	if err := backup.ImportJSON(s.db, raw, wipe); err != nil {
		log.Errorf("handleRestore: %v", err)
		s.writeError(w, http.StatusBadRequest, "Invalid backup JSON")
		return
	}
	s.writeJSON(w, APIResponse{Success: true})
}

// ---- helpers ----

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message}); err != nil {
		log.Errorf("Failed to encode error response (status %d, message %q): %v", status, message, err)
	}
}
