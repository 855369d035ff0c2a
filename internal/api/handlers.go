package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vwlab/vwharness/internal/boundary"
	"github.com/vwlab/vwharness/internal/inspect"
	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/probe"
	"github.com/vwlab/vwharness/internal/report"
	"github.com/vwlab/vwharness/internal/surface"
	"github.com/vwlab/vwharness/pkg/envelope"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
	"github.com/vwlab/vwharness/pkg/types"
)

// MethodsResponse lists what the simulated background serves next to the
// full classified surface of the extension
type MethodsResponse struct {
	Registered []string           `json:"registered"`
	Surface    []surface.Exposure `json:"surface"`
}

// FindingsResponse is the ledger with its severity counts
type FindingsResponse struct {
	Findings []types.Finding        `json:"findings"`
	Counts   map[types.Severity]int `json:"counts"`
}

// ProbesResponse holds one probe run
type ProbesResponse struct {
	Results []types.ProbeResult       `json:"results"`
	Summary map[types.ProbeStatus]int `json:"summary"`
}

// InspectResponse holds the matches found in a storage dump
type InspectResponse struct {
	Matches []inspect.Match `json:"matches"`
}

// handleMessages dispatches one VW_REQ and returns its VW_RES
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	req, err := envelope.DecodeRequest(body)
	if err != nil {
		appErr, ok := apperrors.IsAppError(err)
		if !ok {
			appErr = apperrors.InvalidRequest(err.Error())
		}
		// Without an id there is nothing to correlate a VW_RES with.
		if req.ID == "" {
			s.writeError(w, appErr)
			return
		}
		s.writeEnvelope(w, r, envelope.Failure(req, appErr.Code, appErr.Message+": "+appErr.Detail))
		return
	}

	s.writeEnvelope(w, r, s.harness.Dispatcher().Handle(r.Context(), req))
}

func (s *Server) writeEnvelope(w http.ResponseWriter, r *http.Request, resp envelope.Response) {
	b, err := envelope.EncodeResponse(resp)
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Error("failed to encode response", "id", resp.ID, "error", err)
		s.writeError(w, apperrors.ErrInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MethodsResponse{
		Registered: s.harness.Dispatcher().Methods(),
		Surface:    surface.All(),
	})
}

func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, boundary.Catalog())
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	l := s.harness.Ledger()
	writeJSON(w, http.StatusOK, FindingsResponse{
		Findings: l.Findings(),
		Counts:   l.Counts(),
	})
}

// handleReport renders the ledger without running probes. format defaults to markdown.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatMarkdown
	}

	b, err := s.harness.Renderer(nil).Bytes(format, s.harness.Ledger())
	if err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok {
			s.writeError(w, appErr)
			return
		}
		logger.FromContext(r.Context(), s.logger).Error("failed to render report", "format", format, "error", err)
		s.writeError(w, apperrors.ErrInternalError)
		return
	}

	w.Header().Set("Content-Type", report.ContentType(format))
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (s *Server) handleProbes(w http.ResponseWriter, r *http.Request) {
	results := s.harness.Probe(r.Context())
	writeJSON(w, http.StatusOK, ProbesResponse{
		Results: results,
		Summary: probe.Summarize(results),
	})
}

// handleInspect scans a JSON storage dump for key material
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	matches, err := inspect.ScanJSON(body)
	if err != nil {
		s.writeError(w, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid JSON body", err.Error(), http.StatusBadRequest))
		return
	}
	if matches == nil {
		matches = []inspect.Match{}
	}

	if len(matches) > 0 {
		logger.FromContext(r.Context(), s.logger).Warn("sensitive data in inspected dump", "matches", len(matches))
	}
	writeJSON(w, http.StatusOK, InspectResponse{Matches: matches})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge))
			return nil, false
		}
		s.writeError(w, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Failed to read request body", err.Error(), http.StatusBadRequest))
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(err)
}
