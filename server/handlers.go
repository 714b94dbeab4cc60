package server

import (
	"encoding/json"
	"net/http"

	"github.com/openagents/deepsearch"
)

// queryRequest is the /query request body.
type queryRequest struct {
	Query          string `json:"query"`
	Mode           string `json:"mode,omitempty"`
	SearchProvider string `json:"search_provider,omitempty"`
	Reranker       string `json:"reranker,omitempty"`
	UseReact       bool   `json:"use_react,omitempty"`
}

// queryResponse is the /query response body.
type queryResponse struct {
	Response string              `json:"response"`
	Metadata deepsearch.Metadata `json:"metadata"`
}

// configureAgentRequest is the /configure-agent request body.
type configureAgentRequest struct {
	SearchProvider string `json:"search_provider,omitempty"`
	Reranker       string `json:"reranker,omitempty"`
	SearxngURL     string `json:"searxng_instance_url,omitempty"`
	SearxngKey     string `json:"searxng_api_key,omitempty"`
}

// healthResponse is the /health response body.
type healthResponse struct {
	Status       string   `json:"status"`
	Date         string   `json:"date"`
	ActiveAgents []string `json:"active_agents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Date:         s.svc.Date(),
		ActiveAgents: s.svc.ActiveAgents(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Snapshot(s.cfg))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	result, err := s.svc.Query(r.Context(), deepsearch.QueryRequest{
		Query:          req.Query,
		Mode:           deepsearch.Mode(req.Mode),
		SearchProvider: req.SearchProvider,
		Reranker:       req.Reranker,
		UseReact:       req.UseReact,
	})
	if err != nil {
		if deepsearch.IsRequestError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("query failed", "error", err.Error(), "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Response: result.Response, Metadata: result.Metadata})
}

func (s *Server) handleConfigureAgent(w http.ResponseWriter, r *http.Request) {
	var req configureAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	key, err := s.svc.ConfigureAgent(deepsearch.AgentConfig{
		SearchProvider: req.SearchProvider,
		Reranker:       req.Reranker,
		SearxngURL:     req.SearxngURL,
		SearxngKey:     req.SearxngKey,
	})
	if err != nil {
		if deepsearch.IsRequestError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "agent configured: " + key,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
