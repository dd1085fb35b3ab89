package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON request body; numbers stay json.Number so
// arguments reach the dispatcher without float rounding.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	var req CreateSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format: "+err.Error())
		return
	}
	req.Definition = strings.TrimSpace(req.Definition)
	if req.Definition == "" {
		s.errorHandler.HandleValidationError(w, r, "definition", "definition is required")
		return
	}

	token, err := s.engine.CreateSession(r.Context(), req.Definition, req.Player)
	if err != nil {
		s.securityLogger.LogSessionOperation(requestID, "create", "", req.Definition, "rejected")
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogSessionOperation(requestID, "create", token, req.Definition, "success")

	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{
		Token:         token,
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handleDescribeSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Describe(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: info, EngineVersion: EngineVersion})
}

func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := s.engine.DestroySession(r.Context(), token); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogSessionOperation(middleware.GetReqID(r.Context()), "destroy", token, "", "success")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format: "+err.Error())
		return
	}
	if req.Function == "" {
		s.errorHandler.HandleValidationError(w, r, "function", "function is required")
		return
	}

	res, err := s.dispatcher.Invoke(r.Context(), chi.URLParam(r, "token"), req.Function, req.Args)
	if err != nil {
		s.errorHandler.HandleInvokeFailure(w, r, req.Function, res, err)
		return
	}
	s.writeJSON(w, http.StatusOK, InvokeResponse{
		Result:    res,
		Function:  req.Function,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"functions":      s.dispatcher.Functions(),
		"engine_version": EngineVersion,
	})
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.definitions.ListDefinitions(r.Context(), r.URL.Query().Get("player"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, DefinitionsResponse{Definitions: defs, EngineVersion: EngineVersion})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit, offset := 100, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.errorHandler.HandleValidationError(w, r, "limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.errorHandler.HandleValidationError(w, r, "offset", "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	results, err := s.results.ListResults(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResultsResponse{Results: results, EngineVersion: EngineVersion})
}
