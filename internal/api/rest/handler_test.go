package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	app "mammo-report/internal/application"
	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

type fakeReports struct {
	finding *entity.StructuredFinding
	err     error
	got     entity.ReportRequest
}

func (f *fakeReports) GenerateReport(ctx context.Context, req entity.ReportRequest) (*entity.StructuredFinding, error) {
	f.got = req
	return f.finding, f.err
}

type fakeQueue struct {
	items     []*entity.QueueItem
	submitted entity.ScanUpload
	limit     int
}

func (q *fakeQueue) Submit(ctx context.Context, scan entity.ScanUpload) (*entity.QueueItem, error) {
	q.submitted = scan
	return &entity.QueueItem{ID: "id-1", FileName: scan.FileName, Status: entity.StatusPending, UrgencyLevel: entity.UrgencyLow}, nil
}

func (q *fakeQueue) List(ctx context.Context, limit int) ([]*entity.QueueItem, error) {
	q.limit = limit
	return q.items, nil
}

func (q *fakeQueue) SetStatus(ctx context.Context, id string, status entity.QueueStatus) (*entity.QueueItem, error) {
	if !status.Valid() {
		return nil, app.ErrInvalidStatus
	}
	if id != "id-1" {
		return nil, port.ErrNotFound
	}
	return &entity.QueueItem{ID: id, Status: status}, nil
}

func newTestServer(reports *fakeReports, queue *fakeQueue) http.Handler {
	h := NewHandler(reports, queue, func() bool { return true }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h.Routes(CORS{})
}

func multipartBody(t *testing.T, withImage bool, notes string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withImage {
		fw, err := mw.CreateFormFile("image", "left-cc.jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte{0xff, 0xd8, 0xff})
		require.NoError(t, err)
	}
	if notes != "" {
		require.NoError(t, mw.WriteField("notes", notes))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestHandleReport_Success(t *testing.T) {
	reports := &fakeReports{finding: &entity.StructuredFinding{Report: strPtr("Mass noted."), UrgencyScore: intPtr(39)}}
	srv := newTestServer(reports, &fakeQueue{})

	body, ct := multipartBody(t, true, "palpable lump")
	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"report":"Mass noted.","urgency_score":39}`, rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "palpable lump", reports.got.Notes)
	require.Equal(t, []byte{0xff, 0xd8, 0xff}, reports.got.Image)
}

func TestHandleReport_NullFields(t *testing.T) {
	srv := newTestServer(&fakeReports{finding: &entity.StructuredFinding{}}, &fakeQueue{})

	body, ct := multipartBody(t, true, "")
	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"report":null,"urgency_score":null}`, rec.Body.String())
}

func TestHandleReport_FailureMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"timeout", &app.Failure{Kind: app.FailureTimeout}, http.StatusGatewayTimeout, "Report generation timed out"},
		{"unavailable", &app.Failure{Kind: app.FailureUnavailable, Err: app.ErrModelNotLoaded}, http.StatusServiceUnavailable, "model is not loaded"},
		{"internal", &app.Failure{Kind: app.FailureInternal, Err: errors.New("secret stack")}, http.StatusInternalServerError, "An unexpected error occurred"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeReports{err: tc.err}, &fakeQueue{})

			body, ct := multipartBody(t, true, "")
			req := httptest.NewRequest(http.MethodPost, "/api/report", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Contains(t, resp["detail"], tc.detail)
			require.NotContains(t, resp["detail"], "secret")
		})
	}
}

func TestHandleReport_MissingImage(t *testing.T) {
	srv := newTestServer(&fakeReports{}, &fakeQueue{})

	body, ct := multipartBody(t, false, "notes only")
	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeReports{}, &fakeQueue{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","model_loaded":true}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeReports{}, &fakeQueue{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/report", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORSOriginList(t *testing.T) {
	h := CORS{AllowOrigin: "https://queue.example, http://localhost:3000"}.Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	cases := map[string]string{
		"http://localhost:3000": "http://localhost:3000",
		"https://queue.example": "https://queue.example",
		"https://other.example": "",
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, origin)
		require.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		if want != "" {
			require.Equal(t, "Origin", rec.Header().Get("Vary"))
		}
	}
}

func TestQueueEndpoints(t *testing.T) {
	queue := &fakeQueue{items: []*entity.QueueItem{{ID: "id-1", Status: entity.StatusPending}}}
	srv := newTestServer(&fakeReports{}, queue)

	t.Run("submit", func(t *testing.T) {
		body, ct := multipartBody(t, true, "follow-up")
		req := httptest.NewRequest(http.MethodPost, "/api/scans", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, "left-cc.jpg", queue.submitted.FileName)
		require.Equal(t, "application/octet-stream", queue.submitted.FileType)
		require.Equal(t, "follow-up", queue.submitted.Notes)
	})

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue?limit=5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 5, queue.limit)
		require.Contains(t, rec.Body.String(), `"id":"id-1"`)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue?limit=x", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-positive limit is passed to the queue", func(t *testing.T) {
		for v, want := range map[string]int{"0": 0, "-1": -1} {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue?limit="+v, nil))

			require.Equal(t, http.StatusOK, rec.Code, v)
			require.Equal(t, want, queue.limit)
		}
	})

	t.Run("set status", func(t *testing.T) {
		cases := map[string]struct {
			id     string
			body   string
			status int
		}{
			"ok":        {"id-1", `{"status":"complete"}`, http.StatusOK},
			"invalid":   {"id-1", `{"status":"archived"}`, http.StatusBadRequest},
			"not found": {"id-2", `{"status":"complete"}`, http.StatusNotFound},
			"bad json":  {"id-1", `{`, http.StatusBadRequest},
		}
		for name, tc := range cases {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/api/queue/"+tc.id, strings.NewReader(tc.body))
			srv.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, name)
		}
	})
}
