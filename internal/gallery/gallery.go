// Package gallery stores the clinic photo gallery.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/internal/platform/pgdb"
	"github.com/dentacare/clinic-portal/internal/storage"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

var (
	ErrNotFound     = errors.New("gallery image not found")
	ErrMissingImage = errors.New("an image file is required")
)

// Image is one gallery photo.
type Image struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists gallery images. List is newest first.
type Repository interface {
	List(ctx context.Context) ([]Image, error)
	Create(ctx context.Context, url, caption string) (*Image, error)
	Delete(ctx context.Context, id int64) error
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Image
	now    func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[int64]Image), now: func() time.Time { return time.Now().UTC() }}
}

func (r *InMemoryRepository) List(_ context.Context) ([]Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Image, 0, len(r.items))
	for _, img := range r.items {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, url, caption string) (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	img := Image{ID: r.nextID, URL: url, Caption: caption, CreatedAt: r.now()}
	r.items[img.ID] = img
	return &img, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// PostgresRepository stores images in gallery_images.
type PostgresRepository struct {
	db pgdb.DB
}

func NewPostgresRepository(db pgdb.DB) *PostgresRepository {
	if db == nil {
		panic("gallery: db required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Image, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, url, COALESCE(caption, ''), created_at
		FROM gallery_images
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("gallery: list: %w", err)
	}
	defer rows.Close()

	out := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.URL, &img.Caption, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("gallery: scan: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, url, caption string) (*Image, error) {
	var img Image
	err := r.db.QueryRow(ctx, `
		INSERT INTO gallery_images (url, caption)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, url, COALESCE(caption, ''), created_at
	`, url, caption).Scan(&img.ID, &img.URL, &img.Caption, &img.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("gallery: insert: %w", err)
	}
	return &img, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gallery_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("gallery: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Service uploads and removes gallery images.
type Service struct {
	repo    Repository
	store   storage.ObjectStore
	changes changefeed.Publisher
	metrics *metrics.PortalMetrics
	logger  *logging.Logger
}

func NewService(repo Repository, store storage.ObjectStore, changes changefeed.Publisher, m *metrics.PortalMetrics, logger *logging.Logger) *Service {
	if changes == nil {
		changes = changefeed.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, store: store, changes: changes, metrics: m, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Image, error) {
	return s.repo.List(ctx)
}

// Upload stores the file under gallery/<uuid><ext> and then records it.
func (s *Service) Upload(ctx context.Context, filename, contentType string, body io.Reader, caption string) (*Image, error) {
	if body == nil {
		return nil, ErrMissingImage
	}
	key := "gallery/" + uuid.New().String() + storage.Ext(filename)
	url, err := s.store.Put(ctx, key, body, contentType)
	s.metrics.ObserveImageUpload("gallery", err == nil)
	if err != nil {
		return nil, fmt.Errorf("gallery: upload: %w", err)
	}
	img, err := s.repo.Create(ctx, url, strings.TrimSpace(caption))
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changefeed.ActionInsert, img.ID)
	s.logger.Info("gallery image added", "image_id", img.ID, "key", key)
	return img, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, changefeed.ActionDelete, id)
	return nil
}

func (s *Service) publish(ctx context.Context, action string, id int64) {
	evt := changefeed.NewEvent(changefeed.GalleryImages, action, strconv.FormatInt(id, 10))
	if err := s.changes.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish gallery change", "error", err, "image_id", id)
	}
}
