package api

import (
	"net/http"

	"github.com/rookie50/ioBroker.bluos/internal/bridges/bluos"
)

// handleListGroups returns the configured player groups. Groups are
// informational; no command targets a group.
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	groups := s.bridge.Groups()
	if groups == nil {
		groups = []bluos.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}
