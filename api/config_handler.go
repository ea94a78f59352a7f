package api

import (
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/marketdesk/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config map[string]any `json:"config"`
}

// handleGetConfig returns the running configuration with secrets masked.
// ?format=yaml returns the YAML document itself.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	out, err := config.Dump(s.cfg)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}

	// Round-trip through the YAML document so the JSON view carries the
	// same keys and the same masking.
	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		writeErr(w, r, fmt.Errorf("decode config dump: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Config: doc},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys := config.CheckAPIKeys(s.cfg)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    keys,
	})
}
