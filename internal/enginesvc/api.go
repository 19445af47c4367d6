package enginesvc

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

const reloadTimeout = 10 * time.Second

// Mux is satisfied by *http.ServeMux and *metrics.Server.
type Mux interface {
	Handle(pattern string, h http.Handler)
}

// RegisterRoutes mounts POST /reload and GET /rules.
func (s *Service) RegisterRoutes(mux Mux) {
	mux.Handle("/reload", http.HandlerFunc(s.handleReload))
	mux.Handle("/rules", http.HandlerFunc(s.handleRules))
}

// handleReload re-reads the settings document and applies it in place.
func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	res, err := s.Reload(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reload failed")
		http.Error(w, "reload: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"updated": res.Updated,
		"added":   res.Added,
		"removed": res.Removed,
	})
}

// handleRules lists the latest state of every rule.
func (s *Service) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.States())
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
