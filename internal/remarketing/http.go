package remarketing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jaupesca/remarketing-gateway/internal/storage"
)

// DefaultMaxUploadBytes is the largest accepted upload.
const DefaultMaxUploadBytes int64 = 50 << 20

// HTTPOptions configures the remarketing HTTP handler.
type HTTPOptions struct {
	// Uploader stores media for attachment blocks. When nil, POST /upload
	// answers 503.
	Uploader       storage.Uploader
	MaxUploadBytes int64
	// EventStream, when set, is served at GET /events.
	EventStream http.Handler
	Logger      *slog.Logger
}

type httpHandler struct {
	svc       *Service
	uploader  storage.Uploader
	maxUpload int64
	logger    *slog.Logger
}

// NewHTTPHandler returns the remarketing sub-application. Routes are
// relative to wherever the handler is mounted.
func NewHTTPHandler(svc *Service, opts HTTPOptions) http.Handler {
	h := &httpHandler{
		svc:       svc,
		uploader:  opts.Uploader,
		maxUpload: opts.MaxUploadBytes,
		logger:    opts.Logger,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}
	if h.logger == nil {
		h.logger = svc.logger
	}

	r := chi.NewRouter()
	r.Get("/", h.handleStatus)
	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.handleGetPage)
		r.Post("/", h.handleCreate)
		r.Get("/instances", h.handleListInstances)
		r.Post("/messages", h.handleBroadcast)
		r.Put("/{id}", h.handleReplace)
		r.Delete("/{id}", h.handleDelete)
	})
	r.Post("/upload", h.handleUpload)
	if opts.EventStream != nil {
		r.Method(http.MethodGet, "/events", opts.EventStream)
	}
	return r
}

// handleStatus handles GET /.
func (h *httpHandler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"project": ProjectName, "status": "ok"})
}

// handleGetPage handles GET /config?page=N.
func (h *httpHandler) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}

	res, err := h.svc.Get(r.Context(), page)
	if err != nil {
		h.writeServiceError(w, err, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreate handles POST /config.
func (h *httpHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in ConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "failed to create config")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleReplace handles PUT /config/{id}.
func (h *httpHandler) handleReplace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var in ConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	row, err := h.svc.Replace(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, err, "failed to update config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": row})
}

// handleDelete handles DELETE /config/{id}.
func (h *httpHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Remove(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleListInstances handles GET /config/instances.
func (h *httpHandler) handleListInstances(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListInstances(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list instances")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": list})
}

// handleBroadcast handles POST /config/messages.
func (h *httpHandler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var in BroadcastInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.svc.Broadcast(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "failed to broadcast messages")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pathID parses the {id} URL parameter, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// writeServiceError maps a service error to a status code. Storage failures
// are logged and answered with the generic message.
func (h *httpHandler) writeServiceError(w http.ResponseWriter, err error, generic string) {
	switch {
	case isInputError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, ErrNotFound.Error())
	default:
		h.logger.Error(generic, "err", err)
		writeError(w, http.StatusInternalServerError, generic)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
