// Package api exposes the engine to a host UI over HTTP and a websocket.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/yuwei/yunduanban-runner/pkg/config"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/report"
	"github.com/yuwei/yunduanban-runner/pkg/sink"
)

// Controller is the engine surface the API drives. Implemented by
// workflow.Engine.
type Controller interface {
	Start(operator string) (string, error)
	Stop() bool
	State() core.EngineState
	LastSummary() *core.RunSummary
	Subscribe() (<-chan core.EngineState, func())
}

// Server serves the control API.
type Server struct {
	engine    Controller
	sink      *sink.Sink
	operators *config.Operators
	scheduler *Scheduler
	reports   string
}

// NewServer creates a server. operators may be nil, in which case start
// requests must name the operator.
func NewServer(engine Controller, s *sink.Sink, operators *config.Operators) *Server {
	return &Server{engine: engine, sink: s, operators: operators}
}

// SetScheduler attaches a scheduler so status can report the next start.
func (s *Server) SetScheduler(sch *Scheduler) {
	s.scheduler = sch
}

// SetReportRoot enables GET /api/runs/{id} for reports written under root.
func (s *Server) SetReportRoot(root string) {
	s.reports = root
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Post("/start", s.start)
		r.Post("/stop", s.stop)
		r.Route("/results", func(r chi.Router) {
			r.Get("/", s.listResults)
			r.Delete("/", s.clearResults)
			r.Get("/export", s.exportResults)
		})
		r.Route("/logs", func(r chi.Router) {
			r.Get("/", s.listLogs)
			r.Delete("/", s.clearLogs)
		})
		if s.reports != "" {
			r.Get("/runs/{id}", s.getReport)
		}
		if s.operators != nil {
			r.Route("/operators", func(r chi.Router) {
				r.Get("/", s.listOperators)
				r.Post("/", s.addOperator)
				r.Put("/selected", s.selectOperator)
				r.Delete("/{name}", s.removeOperator)
			})
		}
	})
	r.Get("/ws", s.handleWebSocket)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusResponse struct {
	State   core.EngineState `json:"state"`
	Summary *core.RunSummary `json:"lastRun,omitempty"`
	Results int              `json:"results"`
	NextRun string           `json:"nextRun,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:   s.engine.State(),
		Summary: s.engine.LastSummary(),
		Results: len(s.sink.Results()),
	}
	if s.scheduler != nil {
		if next, ok := s.scheduler.Next(); ok {
			resp.NextRun = next.Format("2006-01-02 15:04:05")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type startRequest struct {
	Operator string `json:"operator"`
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Operator == "" && s.operators != nil {
		req.Operator = s.operators.Selected()
	}

	runID, err := s.engine.Start(req.Operator)
	switch {
	case errors.Is(err, core.ErrMissingOperator):
		http.Error(w, "请先选择民警", http.StatusBadRequest)
		return
	case errors.Is(err, core.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.operators != nil {
		if err := s.operators.Select(req.Operator); err != nil {
			s.sink.Warning("保存民警选择失败: %v", err)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopping": s.engine.Stop()})
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sink.Results())
}

func (s *Server) clearResults(w http.ResponseWriter, r *http.Request) {
	if s.engine.State().Running {
		http.Error(w, "cannot clear results while running", http.StatusConflict)
		return
	}
	s.sink.ClearResults()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="results.txt"`)
		_ = s.sink.WriteText(w)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
		if err := s.sink.WriteXLSX(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	default:
		http.Error(w, "unknown format "+strconv.Quote(format), http.StatusBadRequest)
	}
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	if since == "" {
		writeJSON(w, http.StatusOK, s.sink.Logs())
		return
	}
	seq, err := strconv.ParseUint(since, 10, 64)
	if err != nil {
		http.Error(w, "since must be a sequence number", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.sink.LogsSince(seq))
}

func (s *Server) clearLogs(w http.ResponseWriter, r *http.Request) {
	s.sink.ClearLogs()
	w.WriteHeader(http.StatusNoContent)
}

type operatorsResponse struct {
	Names    []string `json:"names"`
	Selected string   `json:"selected"`
}

type operatorRequest struct {
	Name string `json:"name"`
}

func (s *Server) operatorsState() operatorsResponse {
	return operatorsResponse{Names: s.operators.List(), Selected: s.operators.Selected()}
}

func (s *Server) listOperators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.operatorsState())
}

func (s *Server) addOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	added, err := s.operators.Add(req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.operatorsState())
}

func (s *Server) selectOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.operators.Select(req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.operatorsState())
}

func (s *Server) removeOperator(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	removed, err := s.operators.Remove(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "operator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.operatorsState())
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	rep, err := report.Load(s.reports, id)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
