package app

import "net/http"

// handleAdmin dispatches /api/admin/* routes. parts holds the path
// segments after "admin". Admin checks live in the service so every
// entry point shares them.
func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 && r.Method == http.MethodGet {
		switch parts[0] {
		case "pending-notes":
			payload, err := s.service.ListPendingNotes(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		case "pending-count":
			count, err := s.service.PendingCount(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"count": count})
			return
		case "note-stats":
			payload, err := s.service.NoteStats(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		}
	}

	if len(parts) == 2 && r.Method == http.MethodPut {
		noteID := parts[1]
		switch parts[0] {
		case "approve-note":
			payload, err := s.service.ApproveNote(r.Context(), session, noteID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		case "reject-note":
			payload, err := s.service.RejectNote(r.Context(), session, noteID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
