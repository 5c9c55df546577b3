package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	app "mammo-report/internal/application"
	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

const maxUploadBytes = 32 << 20

type ReportGenerator interface {
	GenerateReport(ctx context.Context, req entity.ReportRequest) (*entity.StructuredFinding, error)
}

type TriageQueue interface {
	Submit(ctx context.Context, scan entity.ScanUpload) (*entity.QueueItem, error)
	List(ctx context.Context, limit int) ([]*entity.QueueItem, error)
	SetStatus(ctx context.Context, id string, status entity.QueueStatus) (*entity.QueueItem, error)
}

// Handler HTTP API отчётов и очереди.
type Handler struct {
	reports ReportGenerator
	queue   TriageQueue
	loaded  func() bool
	logger  *slog.Logger
}

func NewHandler(reports ReportGenerator, queue TriageQueue, loaded func() bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reports: reports, queue: queue, loaded: loaded, logger: logger}
}

// Routes возвращает маршруты, обёрнутые в CORS.
func (h *Handler) Routes(cors CORS) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /api/report", h.handleReport)
	mux.HandleFunc("POST /api/scans", h.handleSubmitScan)
	mux.HandleFunc("GET /api/queue", h.handleListQueue)
	mux.HandleFunc("PATCH /api/queue/{id}", h.handleSetStatus)
	return cors.Wrap(mux)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"model_loaded": h.loaded != nil && h.loaded(),
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	finding, err := h.reports.GenerateReport(r.Context(), entity.ReportRequest{Image: upload.Image, Notes: upload.Notes})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finding)
}

func (h *Handler) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	item, err := h.queue.Submit(r.Context(), upload)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	items, err := h.queue.List(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if items == nil {
		items = []*entity.QueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type statusRequest struct {
	Status entity.QueueStatus `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.queue.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	switch {
	case errors.Is(err, app.ErrInvalidStatus):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, port.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "queue item not found")
	case err != nil:
		h.writeFailure(w, err)
	default:
		writeJSON(w, http.StatusOK, item)
	}
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (entity.ScanUpload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "expected multipart form with an image file")
		return entity.ScanUpload{}, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "image is required")
		return entity.ScanUpload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "cannot read image")
		return entity.ScanUpload{}, false
	}

	return entity.ScanUpload{
		FileName: header.Filename,
		FileType: contentType(header),
		Notes:    r.FormValue("notes"),
		Image:    data,
	}, true
}

func contentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var f *app.Failure
	if !errors.As(err, &f) {
		h.logger.Error("request failed", "error", err)
		f = &app.Failure{Kind: app.FailureInternal, Err: err}
	}

	status := http.StatusInternalServerError
	switch f.Kind {
	case app.FailureTimeout:
		status = http.StatusGatewayTimeout
	case app.FailureUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeDetail(w, status, f.PublicMessage())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
