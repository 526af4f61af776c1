package blog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dentacare/clinic-portal/internal/platform/pgdb"
)

// Repository persists posts. Lists are newest first.
type Repository interface {
	Create(ctx context.Context, d Draft) (*Post, error)
	SetImages(ctx context.Context, id int64, images []string) (*Post, error)
	SetPublished(ctx context.Context, id int64, published bool) (*Post, error)
	Delete(ctx context.Context, id int64) error
	ListPublished(ctx context.Context) ([]Post, error)
	ListAll(ctx context.Context) ([]Post, error)
	Get(ctx context.Context, id int64) (*Post, error)
}

// InMemoryRepository stores posts in a map.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*Post
	now    func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[int64]*Post),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(_ context.Context, d Draft) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p := &Post{
		ID:        r.nextID,
		Title:     d.Title,
		Category:  d.Category,
		Author:    d.Author,
		Content:   d.Content,
		Images:    []string{},
		CreatedAt: r.now(),
	}
	r.items[p.ID] = p
	return r.copyOf(p), nil
}

func (r *InMemoryRepository) SetImages(_ context.Context, id int64, images []string) (*Post, error) {
	return r.modify(id, func(p *Post) { p.Images = append([]string{}, images...) })
}

func (r *InMemoryRepository) SetPublished(_ context.Context, id int64, published bool) (*Post, error) {
	return r.modify(id, func(p *Post) { p.Published = published })
}

func (r *InMemoryRepository) modify(id int64, fn func(*Post)) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(p)
	return r.copyOf(p), nil
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

func (r *InMemoryRepository) ListPublished(_ context.Context) ([]Post, error) {
	return r.list(true), nil
}

func (r *InMemoryRepository) ListAll(_ context.Context) ([]Post, error) {
	return r.list(false), nil
}

func (r *InMemoryRepository) list(publishedOnly bool) []Post {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Post, 0, len(r.items))
	for _, p := range r.items {
		if publishedOnly && !p.Published {
			continue
		}
		out = append(out, *r.copyOf(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *InMemoryRepository) Get(_ context.Context, id int64) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.copyOf(p), nil
}

func (r *InMemoryRepository) copyOf(p *Post) *Post {
	out := *p
	out.Images = append([]string{}, p.Images...)
	out.summarize()
	return &out
}

// PostgresRepository stores posts in blog_posts.
type PostgresRepository struct {
	db pgdb.DB
}

func NewPostgresRepository(db pgdb.DB) *PostgresRepository {
	if db == nil {
		panic("blog: db required")
	}
	return &PostgresRepository{db: db}
}

const postColumns = `id, title, category, author, content, published, images, created_at`

func (r *PostgresRepository) Create(ctx context.Context, d Draft) (*Post, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO blog_posts (title, category, author, content, published, images)
		VALUES ($1, $2, $3, $4, false, '{}')
		RETURNING `+postColumns,
		d.Title, d.Category, d.Author, d.Content)
	p, err := scanPost(row)
	if err != nil {
		return nil, fmt.Errorf("blog: insert: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) SetImages(ctx context.Context, id int64, images []string) (*Post, error) {
	if images == nil {
		images = []string{}
	}
	return r.updateReturning(ctx, "set images", `
		UPDATE blog_posts SET images = $2 WHERE id = $1
		RETURNING `+postColumns, id, images)
}

func (r *PostgresRepository) SetPublished(ctx context.Context, id int64, published bool) (*Post, error) {
	return r.updateReturning(ctx, "set published", `
		UPDATE blog_posts SET published = $2 WHERE id = $1
		RETURNING `+postColumns, id, published)
}

func (r *PostgresRepository) updateReturning(ctx context.Context, op, sql string, args ...any) (*Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if pgdb.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blog: %s: %w", op, err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("blog: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListPublished(ctx context.Context) ([]Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE published ORDER BY created_at DESC, id DESC`)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM blog_posts ORDER BY created_at DESC, id DESC`)
}

func (r *PostgresRepository) list(ctx context.Context, sql string) ([]Post, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("blog: list: %w", err)
	}
	defer rows.Close()

	out := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("blog: scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id))
	if err != nil {
		if pgdb.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blog: get: %w", err)
	}
	return p, nil
}

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.Title, &p.Category, &p.Author, &p.Content, &p.Published, &p.Images, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.summarize()
	return &p, nil
}
