package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
	"github.com/target/jobmatch/internal/service"
)

const (
	// resumeField is the multipart field carrying the uploaded artifact.
	resumeField = "resume"
	// multipartOverhead allows for form fields and part headers on top of the artifact itself.
	multipartOverhead = 1 << 20
)

// IntakeServiceInterface accepts new submissions.
type IntakeServiceInterface interface {
	MaxBytes() int64
	Submit(ctx context.Context, sub service.Submission) (*service.SubmissionResult, error)
}

// ProgressServiceInterface exposes job state to polling clients.
type ProgressServiceInterface interface {
	Status(ctx context.Context, jobID string) (*service.JobStatus, error)
	Results(ctx context.Context, jobID string) (*service.ResultsView, error)
	Download(ctx context.Context, jobID string, owner model.Owner) ([]byte, error)
	Overview(ctx context.Context) (*service.Overview, error)
}

// PipelineHandlers serves submission, polling and retrieval.
type PipelineHandlers struct {
	Intake       IntakeServiceInterface
	Progress     ProgressServiceInterface
	CookieDomain string
	Logger       *slog.Logger
}

func (h *PipelineHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Upload accepts a resume and search criteria and starts a job.
// POST /upload.
func (h *PipelineHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.Intake.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeUploadError(w, service.ErrArtifactTooLarge)
			return
		}
		writeUploadError(w, service.ErrNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(resumeField)
	if err != nil {
		writeUploadError(w, missingFileReason(r.MultipartForm))
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeUploadError(w, service.ErrArtifactTooLarge)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_upload", Err: err})
		return
	}

	criteria, err := criteriaFromForm(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_input", Err: err})
		return
	}

	sub := service.Submission{
		Filename: header.Filename,
		Data:     data,
		Criteria: criteria,
		Session:  CurrentSession(r.Context()),
	}
	if c, cookieErr := r.Cookie(guestCookie); cookieErr == nil {
		sub.GuestMarker = c.Value
	}

	result, err := h.Intake.Submit(r.Context(), sub)
	if err != nil {
		if service.IsValidationError(err) {
			writeUploadError(w, err)
			return
		}
		h.logger().ErrorContext(r.Context(), "submission failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal_error",
			Err:     errors.New("could not accept submission"),
		})
		return
	}

	if result.GuestMarker != "" {
		cookieJar{domain: h.CookieDomain}.set(w, r, guestCookie, result.GuestMarker, guestCookieTTL)
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": result.JobID})
}

// criteriaFromForm reads the optional search fields. Blank titles and location are defaulted by intake.
func criteriaFromForm(r *http.Request) (model.Criteria, error) {
	c := model.Criteria{
		JobTitles: strings.TrimSpace(r.FormValue("job_titles")),
		Location:  strings.TrimSpace(r.FormValue("location")),
		Skills:    model.ParseSkills(r.FormValue("skills")),
	}
	if raw := strings.TrimSpace(r.FormValue("years_of_experience")); raw != "" {
		years, err := strconv.Atoi(raw)
		if err != nil || years < 0 {
			return model.Criteria{}, errors.New("years_of_experience must be a non-negative integer")
		}
		c.YearsOfExperience = &years
	}
	return c, nil
}

// missingFileReason tells a part sent with filename="" apart from no part at all. The
// multipart reader files the former under Value because it has no filename.
func missingFileReason(form *multipart.Form) error {
	if form != nil {
		if _, ok := form.Value[resumeField]; ok {
			return service.ErrEmptyFilename
		}
	}
	return service.ErrNoFile
}

// writeUploadError renders an intake rejection. The error field carries the rejection reason verbatim.
func writeUploadError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	reason := err.Error()
	switch {
	case errors.Is(err, service.ErrArtifactTooLarge):
		code = http.StatusRequestEntityTooLarge
		reason = service.ErrArtifactTooLarge.Error()
	case errors.Is(err, service.ErrFileTypeNotAllowed):
		reason = service.ErrFileTypeNotAllowed.Error()
	case errors.Is(err, service.ErrEmptyFilename):
		reason = service.ErrEmptyFilename.Error()
	case errors.Is(err, service.ErrNoFile):
		reason = service.ErrNoFile.Error()
	}
	WriteError(w, ErrorParams{Code: code, ErrCode: reason, Err: err})
}

// Status reports a job's status and progress.
// GET /task/{id}/status.
func (h *PipelineHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := h.Progress.Status(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// Results returns the results document, or a pending indicator while the job is unfinished.
// GET /task/{id}/results.
func (h *PipelineHandlers) Results(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := h.Progress.Results(r.Context(), id)
	if errors.Is(err, service.ErrResultsUnavailable) {
		h.writeResultsUnavailable(w, r, err)
		return
	}
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	if !view.Ready {
		WriteJSON(w, http.StatusAccepted, map[string]any{
			"error":  service.ErrResultsNotReady.Error(),
			"status": view.Status,
		})
		return
	}
	writeDocument(w, http.StatusOK, view.Document)
}

// Download returns the results of a job owned by the signed-in user as an attachment.
// GET /job/{id}.
func (h *PipelineHandlers) Download(w http.ResponseWriter, r *http.Request) {
	if IsGuestUser(r.Context()) {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	session := CurrentSession(r.Context())
	id := r.PathValue("id")
	doc, err := h.Progress.Download(r.Context(), id, session.Owner())
	switch {
	case err == nil:
	case errors.Is(err, service.ErrOwnerMismatch):
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "access_denied", Err: errors.New("access denied")})
		return
	case errors.Is(err, service.ErrResultsNotReady):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "not_ready", Err: err})
		return
	case errors.Is(err, service.ErrResultsUnavailable):
		h.writeResultsUnavailable(w, r, err)
		return
	default:
		h.writeLookupError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results_%s.json"`, id))
	writeDocument(w, http.StatusOK, doc)
}

func (h *PipelineHandlers) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.IsNotFound(err) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("task not found")})
		return
	}
	h.logger().ErrorContext(r.Context(), "job lookup failed", "error", err)
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "internal_error",
		Err:     errors.New("could not load job"),
	})
}

// writeResultsUnavailable answers for a completed job whose document is gone (404) or
// unreadable (500). The body keeps the polling shape so clients see the job did complete.
func (h *PipelineHandlers) writeResultsUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, fs.ErrNotExist) {
		code = http.StatusNotFound
	}
	h.logger().ErrorContext(r.Context(), "results document unavailable", "job_id", r.PathValue("id"), "error", err)
	WriteJSON(w, code, map[string]any{
		"error":  service.ErrResultsUnavailable.Error(),
		"status": model.JobStatusCompleted,
	})
}

// writeDocument writes an already encoded JSON document.
func writeDocument(w http.ResponseWriter, code int, doc []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(doc); err != nil {
		return
	}
}
