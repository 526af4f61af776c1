package gallery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

const maxUploadBytes = 16 << 20

type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /api/gallery.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list gallery", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load gallery")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"images": images})
}

// Upload handles POST /admin/gallery with a multipart "image" file and an
// optional "caption" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, ErrMissingImage.Error())
		return
	}
	defer file.Close()

	img, err := h.svc.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file, r.FormValue("caption"))
	if err != nil {
		h.logger.Error("gallery upload failed", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to upload image")
		return
	}
	respond.JSON(w, http.StatusCreated, img)
}

// Delete handles DELETE /admin/gallery/{imageID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "image id must be a positive integer")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("gallery delete failed", "error", err, "image_id", id)
		respond.Error(w, http.StatusBadGateway, "failed to delete image")
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}
