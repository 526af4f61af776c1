package blog

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// maxUploadBytes bounds a multipart post including its images.
const maxUploadBytes = 64 << 20

// Handler serves public blog reads and admin authoring.
type Handler struct {
	repo   Repository
	author *Author
	logger *logging.Logger
}

func NewHandler(repo Repository, author *Author, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, author: author, logger: logger}
}

// ListPublished handles GET /api/blog.
func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.ListPublished(r.Context())
	if err != nil {
		h.logger.Error("failed to list blog posts", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load posts")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GetPublished handles GET /api/blog/{postID}. Drafts are not found.
func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	post, err := h.repo.Get(r.Context(), id)
	if err == nil && !post.Published {
		err = ErrNotFound
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

// ListAll handles GET /admin/blog.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list blog posts", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load posts")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// Create handles POST /admin/blog. Multipart bodies carry the draft as form
// fields and the images as repeated "images" file parts; JSON bodies carry a
// draft without images.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		draft   Draft
		uploads []Upload
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		defer r.MultipartForm.RemoveAll()
		draft = Draft{
			Title:    r.FormValue("title"),
			Category: r.FormValue("category"),
			Author:   r.FormValue("author"),
			Content:  r.FormValue("content"),
		}
		files := r.MultipartForm.File["images"]
		if len(files) > MaxImages {
			respond.Error(w, http.StatusBadRequest, ErrTooManyImages.Error())
			return
		}
		var err error
		uploads, err = openUploads(files)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid image upload")
			return
		}
		defer closeUploads(uploads)
	} else if err := respond.Decode(r, &draft); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.author.Publish(r.Context(), draft, uploads)
	if err != nil {
		if result != nil {
			// The post exists; report it alongside the error.
			h.logger.Error("blog post saved without images", "error", err, "post_id", result.Post.ID)
			respond.JSON(w, http.StatusCreated, result)
			return
		}
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, result)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h *Handler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	post, err := h.author.SetPublished(r.Context(), id, published)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	if err := h.author.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrTooManyImages):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("blog request failed", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to update blog")
	}
}

func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "post id must be a positive integer")
		return 0, false
	}
	return id, true
}

func openUploads(files []*multipart.FileHeader) ([]Upload, error) {
	uploads := make([]Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeUploads(uploads)
			return nil, err
		}
		uploads = append(uploads, Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}
	return uploads, nil
}

func closeUploads(uploads []Upload) {
	for _, u := range uploads {
		if c, ok := u.Body.(multipart.File); ok {
			_ = c.Close()
		}
	}
}
