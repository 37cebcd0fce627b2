// Package web exposes the status and control API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
	"github.com/lcr-sec/dualstrike/internal/core/services/coordinator"
)

// Server serves the REST API, the websocket status stream and Prometheus
// metrics.
type Server struct {
	addr        string
	coordinator *coordinator.Coordinator
	prober      ports.CapabilityProber
	store       ports.SessionStore
	reporter    ReportWriter
	reportDir   string
	ws          *WSManager
	httpServer  *http.Server
}

// ReportWriter renders a PDF engagement report. Nil disables the endpoint.
type ReportWriter interface {
	Write(w io.Writer) error
}

func NewServer(addr string, co *coordinator.Coordinator, prober ports.CapabilityProber, store ports.SessionStore) *Server {
	return &Server{
		addr:        addr,
		coordinator: co,
		prober:      prober,
		store:       store,
		ws:          NewWSManager(co),
	}
}

// SetReporter enables the PDF report endpoint.
func (s *Server) SetReporter(r ReportWriter) {
	s.reporter = r
}

// SetReportDir makes the report endpoint keep a timestamped copy of every
// generated report in dir.
func (s *Server) SetReportDir(dir string) {
	s.reportDir = dir
}

// Start begins serving. Non-blocking; the server runs until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.ws.Start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           otelhttp.NewHandler(s.routes(), "dualstrike-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[WEB] Server error: %v", err)
		}
	}()
	log.Printf("[WEB] Listening on %s", s.addr)
	return nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/interfaces", s.handleInterfaces).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/stop", s.handleStopSession).Methods(http.MethodPost)
	api.HandleFunc("/attacks/handshake", s.handleStartHandshake).Methods(http.MethodPost)
	api.HandleFunc("/attacks/rogue-ap", s.handleStartRogueAP).Methods(http.MethodPost)
	api.HandleFunc("/credentials", s.handleListCredentials).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.ws.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	capabilities, err := s.prober.Probe(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, capabilities)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.coordinator.ListSessions()
	if sessions == nil {
		sessions = []*domain.AttackSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, ok := s.coordinator.GetSession(id)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.coordinator.StopAttack(id); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

type attackRequest struct {
	BSSID   string `json:"bssid"`
	ESSID   string `json:"essid"`
	Channel int    `json:"channel"`
}

func (r attackRequest) validate() string {
	if !domain.IsValidMAC(r.BSSID) {
		return "invalid bssid"
	}
	if !domain.IsValidChannel(r.Channel) {
		return "invalid channel"
	}
	return ""
}

func (s *Server) handleStartHandshake(w http.ResponseWriter, r *http.Request) {
	s.startAttack(w, r, s.coordinator.StartHandshakeAttack)
}

func (s *Server) handleStartRogueAP(w http.ResponseWriter, r *http.Request) {
	s.startAttack(w, r, s.coordinator.StartRogueAPAttack)
}

func (s *Server) startAttack(w http.ResponseWriter, r *http.Request, start func(context.Context, coordinator.Target) (string, error)) {
	var req attackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeErrorMessage(w, http.StatusBadRequest, msg)
		return
	}

	id, err := start(r.Context(), coordinator.Target(req))
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []domain.CapturedCredential{})
		return
	}
	creds, err := s.store.ListCredentials()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		writeErrorMessage(w, http.StatusNotFound, "reporting not configured")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="dualstrike-report.pdf"`)

	var out io.Writer = w
	if s.reportDir != "" {
		name := filepath.Join(s.reportDir,
			"dualstrike-"+time.Now().Format("20060102-150405")+".pdf")
		f, err := os.Create(name)
		if err != nil {
			log.Printf("[WEB] Could not keep report copy: %v", err)
		} else {
			defer f.Close()
			out = io.MultiWriter(w, f)
			log.Printf("[WEB] Report copy saved to %s", name)
		}
	}
	if err := s.reporter.Write(out); err != nil {
		log.Printf("[WEB] Report generation failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
