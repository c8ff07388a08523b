package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// AdminHandlers serves operator views.
type AdminHandlers struct {
	Progress ProgressServiceInterface
	Logger   *slog.Logger
}

// Stats returns queue statistics per stage and job counts per status.
// GET /api/admin/stats.
func (h *AdminHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Progress.Overview(r.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "admin stats failed", "error", err)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal_error",
			Err:     errors.New("could not load stats"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, ov)
}
