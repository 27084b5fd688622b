package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/runner"
	"github.com/hupe1980/colloquy/session"
)

const (
	msgNotFound      = "Simulation not found."
	msgActive        = "A simulation is already running. Stop it before starting a new one."
	msgInvalidBody   = "Invalid request body."
	msgNotAvailable  = "Transcript not available yet."
	msgStreamFailure = "Streaming is not supported by this connection."
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: msg}})
}

// StartResponse is returned by POST /api/simulations.
type StartResponse struct {
	SimulationID string `json:"simulation_id"`
}

// TranscriptDocument is returned by the download endpoint.
type TranscriptDocument struct {
	SimulationID string                   `json:"simulation_id"`
	Topic        string                   `json:"topic"`
	Mode         core.Mode                `json:"mode"`
	Stage        string                   `json:"stage"`
	Agents       []core.ActorConfig       `json:"agents"`
	Moderator    core.FacilitatorConfig   `json:"moderator"`
	Synthesizer  core.FacilitatorConfig   `json:"synthesizer"`
	Messages     []core.TranscriptMessage `json:"messages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, s.opts.Catalog.Load())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}

	req := core.Request{TurnLimit: core.DefaultTurnLimit}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.opts.Preflight != nil {
		if err := s.opts.Preflight(&req); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	st, err := s.registry.Launch(&req)
	if err != nil {
		if errors.Is(err, runner.ErrActiveSimulation) {
			jsonError(w, msgActive, http.StatusConflict)
			return
		}
		s.logger.Error("launch failed", "request_id", RequestID(r.Context()), "error", err)
		jsonError(w, "Unexpected server error. Please try again.", http.StatusInternalServerError)
		return
	}

	s.logger.Info("simulation started", "simulation_id", st.ID(), "request_id", RequestID(r.Context()))
	jsonResponse(w, StartResponse{SimulationID: st.ID()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Stop(r.PathValue("id")) {
		jsonError(w, msgNotFound, http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}
	msgs, sealed := st.Transcript()
	if !sealed {
		jsonError(w, msgNotAvailable, http.StatusConflict)
		return
	}

	req := st.Request()
	if msgs == nil {
		msgs = []core.TranscriptMessage{}
	}
	jsonResponse(w, TranscriptDocument{
		SimulationID: st.ID(),
		Topic:        req.Topic,
		Mode:         req.Mode,
		Stage:        req.Stage,
		Agents:       req.Agents,
		Moderator:    req.Moderator,
		Synthesizer:  req.Synthesizer,
		Messages:     msgs,
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	st, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, msgNotFound, http.StatusNotFound)
		return nil, false
	}
	return st, true
}
