package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/service"
)

// KeyServiceInterface stores a user's scoring credential.
type KeyServiceInterface interface {
	SaveScoringKey(ctx context.Context, owner model.Owner, apiKey string) error
}

// KeyHandlers serves credential management.
type KeyHandlers struct {
	Svc    KeyServiceInterface
	Logger *slog.Logger
}

type saveKeyRequest struct {
	APIKey string `json:"api_key"`
}

// SaveScoringKey stores the caller's scoring API key.
// POST /api/keys/scoring.
func (h *KeyHandlers) SaveScoringKey(w http.ResponseWriter, r *http.Request) {
	session := CurrentSession(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var req saveKeyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Svc.SaveScoringKey(r.Context(), session.Owner(), req.APIKey)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrRegisteredOnly):
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "registered_only", Err: err})
	case errors.Is(err, service.ErrInvalidInput):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_input", Err: err})
	default:
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "save scoring key failed", "error", err)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal_error",
			Err:     errors.New("could not save key"),
		})
	}
}
