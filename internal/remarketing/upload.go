package remarketing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/storage"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// uploadResponse is the body of a successful POST /upload.
type uploadResponse struct {
	OK           bool   `json:"ok"`
	URL          string `json:"url"`
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

// handleUpload handles POST /upload: a multipart form with a "file" part and
// a "type" field naming the attachment kind.
func (h *httpHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeUploadError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	if r.ContentLength > h.maxUpload {
		writeUploadError(w, http.StatusBadRequest, "file exceeds the upload size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeUploadError(w, http.StatusBadRequest, "file exceeds the upload size limit")
			return
		}
		writeUploadError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind := model.BlockKind(strings.ToLower(strings.TrimSpace(r.FormValue("type"))))
	if !kind.IsAttachment() {
		writeUploadError(w, http.StatusBadRequest, `type must be one of "image", "video", "audio", "document"`)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeUploadError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	obj, err := h.uploader.Store(r.Context(), storage.Object{
		Name:        header.Filename,
		Kind:        kind,
		ContentType: mimeType,
		Size:        header.Size,
		Body:        file,
	})
	if errors.Is(err, storage.ErrExtensionNotAllowed) {
		writeUploadError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("upload failed", "file", header.Filename, "kind", kind, "err", err)
		writeUploadError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		OK:           true,
		URL:          obj.URL,
		Bucket:       obj.Bucket,
		Key:          obj.Key,
		OriginalName: header.Filename,
		Size:         header.Size,
		MimeType:     mimeType,
	})
}

func writeUploadError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}
