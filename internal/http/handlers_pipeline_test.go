package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
	"github.com/target/jobmatch/internal/service"
)

type fakeIntake struct {
	maxBytes int64
	got      *service.Submission
	result   *service.SubmissionResult
	err      error
}

func (f *fakeIntake) MaxBytes() int64 {
	if f.maxBytes == 0 {
		return 1 << 20
	}
	return f.maxBytes
}

func (f *fakeIntake) Submit(_ context.Context, sub service.Submission) (*service.SubmissionResult, error) {
	f.got = &sub
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &service.SubmissionResult{JobID: "job-1", TaskID: "task-1", Owner: model.RegisteredOwner("u1")}, nil
}

type fakeProgress struct {
	status   *service.JobStatus
	view     *service.ResultsView
	doc      []byte
	overview *service.Overview
	err      error
	owner    model.Owner
}

func (f *fakeProgress) Status(context.Context, string) (*service.JobStatus, error) {
	return f.status, f.err
}

func (f *fakeProgress) Results(context.Context, string) (*service.ResultsView, error) {
	return f.view, f.err
}

func (f *fakeProgress) Download(_ context.Context, _ string, owner model.Owner) ([]byte, error) {
	f.owner = owner
	return f.doc, f.err
}

func (f *fakeProgress) Overview(context.Context) (*service.Overview, error) {
	return f.overview, f.err
}

type multipartField struct {
	name, value string
}

func newUploadRequest(t *testing.T, filename string, data []byte, fields ...multipartField) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "-" {
		part, err := mw.CreateFormFile(resumeField, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.name, f.value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPipelineHandlers_Upload_Accepted(t *testing.T) {
	intake := &fakeIntake{}
	h := &PipelineHandlers{Intake: intake}

	req := newUploadRequest(t, "cv.pdf", []byte("%PDF-1.4"),
		multipartField{"job_titles", "Backend Engineer"},
		multipartField{"location", "Berlin"},
		multipartField{"years_of_experience", "5"},
		multipartField{"skills", "go, sql ,,k8s"},
	)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "job-1", decodeBody(t, w)["task_id"])

	require.NotNil(t, intake.got)
	assert.Equal(t, "cv.pdf", intake.got.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), intake.got.Data)
	assert.Equal(t, "Backend Engineer", intake.got.Criteria.JobTitles)
	assert.Equal(t, "Berlin", intake.got.Criteria.Location)
	require.NotNil(t, intake.got.Criteria.YearsOfExperience)
	assert.Equal(t, 5, *intake.got.Criteria.YearsOfExperience)
	assert.Equal(t, []string{"go", "sql", "k8s"}, intake.got.Criteria.Skills)
	assert.Nil(t, intake.got.Session)
	assert.Empty(t, w.Result().Cookies(), "registered owners get no guest cookie")
}

func TestPipelineHandlers_Upload_GuestCookie(t *testing.T) {
	intake := &fakeIntake{result: &service.SubmissionResult{
		JobID:       "job-2",
		Owner:       model.GuestOwner("g1"),
		GuestMarker: "marker-new",
	}}
	h := &PipelineHandlers{Intake: intake}

	req := newUploadRequest(t, "cv.txt", []byte("hello"))
	req.AddCookie(&http.Cookie{Name: guestCookie, Value: "marker-old"})
	w := httptest.NewRecorder()
	h.Upload(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "marker-old", intake.got.GuestMarker)

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == guestCookie {
			found = c
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "marker-new", found.Value)
	assert.True(t, found.HttpOnly)
}

func TestPipelineHandlers_Upload_PassesSession(t *testing.T) {
	intake := &fakeIntake{}
	h := &PipelineHandlers{Intake: intake}

	req := newUploadRequest(t, "cv.txt", []byte("hello"))
	session := &domainauth.Session{ID: "s1", AccountID: "u1", Role: domainauth.RoleUser}
	req = req.WithContext(WithSession(req.Context(), session))
	w := httptest.NewRecorder()
	h.Upload(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Same(t, session, intake.got.Session)
}

func TestPipelineHandlers_Upload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		submit   error
		wantCode int
		wantErr  string
	}{
		{
			name:     "no file part",
			req:      func(t *testing.T) *http.Request { return newUploadRequest(t, "-", nil) },
			wantCode: http.StatusBadRequest,
			wantErr:  "no file",
		},
		{
			name: "not multipart",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("plain"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "no file",
		},
		{
			name:     "part with empty filename",
			req:      func(t *testing.T) *http.Request { return newUploadRequest(t, "", []byte("a")) },
			wantCode: http.StatusBadRequest,
			wantErr:  "empty filename",
		},
		{
			name:     "blank filename from intake",
			req:      func(t *testing.T) *http.Request { return newUploadRequest(t, "   ", []byte("a")) },
			submit:   service.ErrEmptyFilename,
			wantCode: http.StatusBadRequest,
			wantErr:  "empty filename",
		},
		{
			name:     "disallowed type",
			req:      func(t *testing.T) *http.Request { return newUploadRequest(t, "x.exe", []byte("a")) },
			submit:   fmt.Errorf("%w: %q", service.ErrFileTypeNotAllowed, "exe"),
			wantCode: http.StatusBadRequest,
			wantErr:  "file type not allowed",
		},
		{
			name:     "oversize from intake",
			req:      func(t *testing.T) *http.Request { return newUploadRequest(t, "x.pdf", []byte("a")) },
			submit:   fmt.Errorf("%w: too big", service.ErrArtifactTooLarge),
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "file too large",
		},
		{
			name: "bad years of experience",
			req: func(t *testing.T) *http.Request {
				return newUploadRequest(t, "x.pdf", []byte("a"), multipartField{"years_of_experience", "lots"})
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &PipelineHandlers{Intake: &fakeIntake{err: tt.submit}}
			w := httptest.NewRecorder()
			h.Upload(w, tt.req(t))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeBody(t, w)["error"])
		})
	}
}

func TestPipelineHandlers_Upload_EmptyFilenameNeverReachesIntake(t *testing.T) {
	intake := &fakeIntake{}
	h := &PipelineHandlers{Intake: intake}
	w := httptest.NewRecorder()
	h.Upload(w, newUploadRequest(t, "", []byte("resume text"), multipartField{"job_titles", "developer"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty filename", decodeBody(t, w)["error"])
	assert.Nil(t, intake.got)
}

func TestPipelineHandlers_Upload_BodyTooLarge(t *testing.T) {
	h := &PipelineHandlers{Intake: &fakeIntake{maxBytes: 10}}

	req := newUploadRequest(t, "cv.pdf", bytes.Repeat([]byte("x"), 2*multipartOverhead))
	w := httptest.NewRecorder()
	h.Upload(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "file too large", decodeBody(t, w)["error"])
}

func TestPipelineHandlers_Upload_InternalError(t *testing.T) {
	h := &PipelineHandlers{Intake: &fakeIntake{err: errors.New("db down")}}

	w := httptest.NewRecorder()
	h.Upload(w, newUploadRequest(t, "cv.pdf", []byte("a")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func newPathRequest(method, pattern, target string, h http.HandlerFunc) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestPipelineHandlers_Status(t *testing.T) {
	progress := &fakeProgress{status: &service.JobStatus{
		Status:   model.JobStatusRunning,
		Progress: model.ProgressFetched,
		Message:  "running...",
	}}
	h := &PipelineHandlers{Progress: progress}

	w := newPathRequest(http.MethodGet, "/task/{id}/status", "/task/j1/status", h.Status)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"running","progress":60,"message":"running..."}`, w.Body.String())
}

func TestPipelineHandlers_Status_NotFound(t *testing.T) {
	h := &PipelineHandlers{Progress: &fakeProgress{err: apperrors.NotFound("job not found")}}

	w := newPathRequest(http.MethodGet, "/task/{id}/status", "/task/nope/status", h.Status)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPipelineHandlers_Results(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		h := &PipelineHandlers{Progress: &fakeProgress{view: &service.ResultsView{Status: model.JobStatusRunning}}}
		w := newPathRequest(http.MethodGet, "/task/{id}/results", "/task/j1/results", h.Results)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"error":"task not completed yet","status":"running"}`, w.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		doc := []byte(`{"job_id":"j1","matches":[]}`)
		h := &PipelineHandlers{Progress: &fakeProgress{view: &service.ResultsView{
			Ready: true, Document: doc, Status: model.JobStatusCompleted,
		}}}
		w := newPathRequest(http.MethodGet, "/task/{id}/results", "/task/j1/results", h.Results)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, doc, w.Body.Bytes())
	})

	t.Run("unknown", func(t *testing.T) {
		h := &PipelineHandlers{Progress: &fakeProgress{err: apperrors.NotFound("job not found")}}
		w := newPathRequest(http.MethodGet, "/task/{id}/results", "/task/j1/results", h.Results)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("completed but document missing", func(t *testing.T) {
		err := fmt.Errorf("%w: read results for job j1: %w", service.ErrResultsUnavailable, fs.ErrNotExist)
		h := &PipelineHandlers{Progress: &fakeProgress{err: err}}
		w := newPathRequest(http.MethodGet, "/task/{id}/results", "/task/j1/results", h.Results)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"results unavailable","status":"completed"}`, w.Body.String())
	})

	t.Run("completed but document unreadable", func(t *testing.T) {
		err := fmt.Errorf("%w: read results for job j1: %w", service.ErrResultsUnavailable, errors.New("permission denied"))
		h := &PipelineHandlers{Progress: &fakeProgress{err: err}}
		w := newPathRequest(http.MethodGet, "/task/{id}/results", "/task/j1/results", h.Results)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"results unavailable","status":"completed"}`, w.Body.String())
	})
}

func TestPipelineHandlers_Download(t *testing.T) {
	session := &domainauth.Session{ID: "s1", AccountID: "u1", Role: domainauth.RoleUser}

	serve := func(h *PipelineHandlers, s *domainauth.Session) *httptest.ResponseRecorder {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /job/{id}", h.Download)
		req := httptest.NewRequest(http.MethodGet, "/job/j1", nil)
		req = req.WithContext(WithSession(req.Context(), s))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	t.Run("owner gets attachment", func(t *testing.T) {
		progress := &fakeProgress{doc: []byte(`{"matches":[]}`)}
		w := serve(&PipelineHandlers{Progress: progress}, session)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="results_j1.json"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, model.RegisteredOwner("u1"), progress.owner)
	})

	t.Run("other owner is forbidden", func(t *testing.T) {
		w := serve(&PipelineHandlers{Progress: &fakeProgress{err: service.ErrOwnerMismatch}}, session)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		err := fmt.Errorf("%w: status running", service.ErrResultsNotReady)
		w := serve(&PipelineHandlers{Progress: &fakeProgress{err: err}}, session)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("document missing", func(t *testing.T) {
		err := fmt.Errorf("%w: %w", service.ErrResultsUnavailable, fs.ErrNotExist)
		w := serve(&PipelineHandlers{Progress: &fakeProgress{err: err}}, session)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "results unavailable", decodeBody(t, w)["error"])
	})

	t.Run("unknown job", func(t *testing.T) {
		w := serve(&PipelineHandlers{Progress: &fakeProgress{err: apperrors.NotFound("job not found")}}, session)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no session", func(t *testing.T) {
		w := serve(&PipelineHandlers{Progress: &fakeProgress{}}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
