package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports the table's lobby size and, if one is running, its game status.
// It never mutates anything.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	tableID, err := tableIDParam(r)
	if err != nil {
		http.Error(w, "invalid table id", http.StatusBadRequest)
		return
	}
	tbl, ok := s.Store.GetTable(tableID)
	if !ok {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tbl.Status()); err != nil {
		s.log.WithError(err).Warn("failed to encode health response")
	}
}
