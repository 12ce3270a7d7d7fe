// Package webui wraps a download job in a small HTTP front-end: POST
// /api/download starts a job, /ws streams progress events, /api/status
// answers polls. One job runs at a time.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dukadump/internal/model"
	"dukadump/internal/service"
)

// Runner is the slice of the orchestrator the server drives. A fresh Runner
// is created per job because cancellation is one-way.
type Runner interface {
	Run(ctx context.Context, req *service.Request) (map[string]string, error)
	Cancel()
}

// RunnerFactory builds a Runner wired to the given observer.
type RunnerFactory func(obs service.Observer) Runner

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from anywhere during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// SymbolProgress is the per-symbol slice of Status.
type SymbolProgress struct {
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Finished bool   `json:"finished"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Status is the server's job state as served on /api/status.
type Status struct {
	State     string                     `json:"state"` // idle, running, done, cancelled, failed
	Symbols   map[string]*SymbolProgress `json:"symbols,omitempty"`
	StartedAt string                     `json:"started_at,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// Server owns the HTTP surface and the single running job.
type Server struct {
	newRunner RunnerFactory
	outDir    string
	hub       *Hub

	mu      sync.Mutex
	current Runner
	status  Status

	srv *http.Server
}

// NewServer builds the web front-end. outDir is where job output lands when
// the request does not name a directory.
func NewServer(addr, outDir string, factory RunnerFactory) *Server {
	s := &Server{
		newRunner: factory,
		outDir:    outDir,
		hub:       NewHub(),
		status:    Status{State: "idle"},
	}
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler returns the route table; split out for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/download", s.handleDownload)
	mux.HandleFunc("/api/cancel", s.handleCancel)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/symbols", s.handleSymbols)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[webui] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[webui] server error: %v", err)
		}
	}()
}

// Stop cancels any running job and shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.current != nil {
		s.current.Cancel()
	}
	s.mu.Unlock()
	s.srv.Shutdown(ctx)
}

// downloadRequest is the POST /api/download body.
type downloadRequest struct {
	Symbols   []string `json:"symbols"`
	Start     string   `json:"start"` // YYYY-MM-DD
	End       string   `json:"end"`
	Timeframe string   `json:"timeframe"`
	Custom    string   `json:"custom,omitempty"`
	Source    string   `json:"source,omitempty"`
	Side      string   `json:"side,omitempty"`
	Volume    string   `json:"volume,omitempty"`
	Header    bool     `json:"header"`
	Resume    bool     `json:"resume"`
	Threads   int      `json:"threads,omitempty"`
	OutDir    string   `json:"outdir,omitempty"`
}

func (s *Server) buildRequest(dr *downloadRequest) (*service.Request, error) {
	start, err := time.ParseInLocation("2006-01-02", dr.Start, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", dr.End, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}

	tf := dr.Timeframe
	if tf == "" {
		tf = "TICK"
	}
	period, err := model.ResolveTimeframe(tf, dr.Custom)
	if err != nil {
		return nil, err
	}

	source := service.SourceAuto
	if dr.Source != "" {
		if source, err = service.ParseDataSource(dr.Source); err != nil {
			return nil, err
		}
	}
	side := model.SideBid
	if dr.Side != "" {
		if side, err = model.ParsePriceSide(dr.Side); err != nil {
			return nil, err
		}
	}
	volKind := model.VolTotal
	if dr.Volume != "" {
		if volKind, err = model.ParseVolumeKind(dr.Volume); err != nil {
			return nil, err
		}
	}

	threads := dr.Threads
	if threads == 0 {
		threads = 5
	}
	outDir := dr.OutDir
	if outDir == "" {
		outDir = s.outDir
	}

	req := &service.Request{
		Symbols:   dr.Symbols,
		Start:     start,
		End:       end,
		Timeframe: tf,
		Period:    period,
		Source:    source,
		Side:      side,
		VolKind:   volKind,
		Header:    dr.Header,
		Resume:    dr.Resume,
		Threads:   threads,
		OutDir:    outDir,
	}
	return req, req.Validate()
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var dr downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&dr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := s.buildRequest(&dr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.status.State == "running" {
		s.mu.Unlock()
		http.Error(w, "a download is already running", http.StatusConflict)
		return
	}
	runner := s.newRunner(&jobObserver{s: s})
	s.current = runner
	s.status = Status{
		State:     "running",
		Symbols:   make(map[string]*SymbolProgress),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Unlock()

	go s.runJob(runner, req)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"state": "running"})
}

func (s *Server) runJob(runner Runner, req *service.Request) {
	_, err := runner.Run(context.Background(), req)

	s.mu.Lock()
	switch {
	case errors.Is(err, service.ErrCancelled):
		s.status.State = "cancelled"
	case err != nil:
		s.status.State = "failed"
		s.status.Error = err.Error()
	default:
		s.status.State = "done"
	}
	s.current = nil
	state, errMsg := s.status.State, s.status.Error
	s.mu.Unlock()

	s.hub.Broadcast(map[string]string{"type": "job", "state": state, "error": errMsg})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	runner := s.current
	s.mu.Unlock()
	if runner == nil {
		http.Error(w, "no download running", http.StatusConflict)
		return
	}
	runner.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snapshot := s.status
	symbols := make(map[string]*SymbolProgress, len(s.status.Symbols))
	for k, v := range s.status.Symbols {
		cp := *v
		symbols[k] = &cp
	}
	snapshot.Symbols = symbols
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"symbols":    model.KnownSymbols,
		"timeframes": model.TimeframeChoices,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[webui] ws upgrade: %v", err)
		return
	}
	s.hub.Attach(conn)
}

// jobObserver bridges orchestrator callbacks onto the status map and the
// WebSocket hub.
type jobObserver struct {
	s *Server
}

func (o *jobObserver) symbol(symbol string) *SymbolProgress {
	sp, ok := o.s.status.Symbols[symbol]
	if !ok {
		sp = &SymbolProgress{}
		o.s.status.Symbols[symbol] = sp
	}
	return sp
}

func (o *jobObserver) OnStart(symbol string, totalDays int) {
	o.s.mu.Lock()
	o.symbol(symbol).Total = totalDays
	o.s.mu.Unlock()
	o.s.hub.Broadcast(map[string]any{
		"type": "start", "symbol": symbol, "total": totalDays,
	})
}

func (o *jobObserver) OnUpdate(symbol string, done, total int, success bool) {
	o.s.mu.Lock()
	sp := o.symbol(symbol)
	sp.Done, sp.Total = done, total
	o.s.mu.Unlock()
	o.s.hub.Broadcast(map[string]any{
		"type": "update", "symbol": symbol, "done": done, "total": total, "success": success,
	})
}

func (o *jobObserver) OnFinish(symbol, path string) {
	o.s.mu.Lock()
	sp := o.symbol(symbol)
	sp.Finished = true
	sp.Path = path
	o.s.mu.Unlock()
	o.s.hub.Broadcast(map[string]any{
		"type": "finish", "symbol": symbol, "path": path,
	})
}

func (o *jobObserver) OnError(symbol string, err error) {
	o.s.mu.Lock()
	o.symbol(symbol).Error = err.Error()
	o.s.mu.Unlock()
	o.s.hub.Broadcast(map[string]any{
		"type": "error", "symbol": symbol, "error": err.Error(),
	})
}
