package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnshRaj112/kokoro-journal/internal/middleware"
	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/internal/services"
)

const maxRecordBody = 64 << 10

// CreateRecordResponse answers a submission. Feedback is only present on
// success and is never stored.
type CreateRecordResponse struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message"`
	Record   *models.JournalEntry `json:"record,omitempty"`
	Feedback string               `json:"feedback,omitempty"`
}

// CreateRecord handles POST /api/records. Requires RequireIdentity.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var fields models.EntryFields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.journal.Submit(r.Context(), middleware.IdentityFrom(r.Context()), fields)
	if err != nil {
		var fieldErr *models.FieldError
		switch {
		case errors.Is(err, services.ErrNoIdentity):
			writeError(w, http.StatusUnauthorized, "Authentication required")
		case errors.As(err, &fieldErr):
			writeError(w, http.StatusBadRequest, fieldErr.Error())
		default:
			// *services.StoreWriteError, already logged by the journal.
			writeError(w, http.StatusInternalServerError, "Failed to save journal entry")
		}
		return
	}

	writeJSON(w, http.StatusCreated, CreateRecordResponse{
		Success:  true,
		Message:  "Journal entry saved",
		Record:   result.Entry,
		Feedback: result.Feedback,
	})
}
