package blog

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/internal/storage"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

var tracer = otel.Tracer("dentacare.blog")

// Upload is one image attached to a new post.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadFailure records an image that was skipped.
type UploadFailure struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// AuthorResult is the stored post plus any images that did not make it.
type AuthorResult struct {
	Post   *Post           `json:"post"`
	Failed []UploadFailure `json:"failed_uploads,omitempty"`
}

// Author writes posts and their images.
type Author struct {
	repo    Repository
	store   storage.ObjectStore
	changes changefeed.Publisher
	metrics *metrics.PortalMetrics
	logger  *logging.Logger
}

func NewAuthor(repo Repository, store storage.ObjectStore, changes changefeed.Publisher, m *metrics.PortalMetrics, logger *logging.Logger) *Author {
	if changes == nil {
		changes = changefeed.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Author{repo: repo, store: store, changes: changes, metrics: m, logger: logger}
}

// Publish stores the draft unpublished, uploads the images one at a time
// under blog/<postID>/, then records the URLs of the uploads that succeeded
// in input order. Failed uploads are skipped and nothing is rolled back, so a
// post with fewer images than requested, or none, is a normal outcome.
func (a *Author) Publish(ctx context.Context, d Draft, uploads []Upload) (*AuthorResult, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if len(uploads) > MaxImages {
		return nil, ErrTooManyImages
	}

	ctx, span := tracer.Start(ctx, "blog.publish")
	defer span.End()
	span.SetAttributes(attribute.Int("blog.images", len(uploads)))

	post, err := a.repo.Create(ctx, d)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("blog.post_id", post.ID))
	a.publishChange(ctx, changefeed.ActionInsert, post.ID)

	result := &AuthorResult{Post: post}
	if len(uploads) == 0 {
		return result, nil
	}

	urls := make([]string, 0, len(uploads))
	for i, up := range uploads {
		key := fmt.Sprintf("blog/%d/%s%s", post.ID, uuid.New().String(), storage.Ext(up.Filename))
		url, err := a.store.Put(ctx, key, up.Body, up.ContentType)
		a.metrics.ObserveImageUpload("blog", err == nil)
		if err != nil {
			a.logger.Warn("blog image upload failed", "error", err, "post_id", post.ID, "index", i, "filename", up.Filename)
			result.Failed = append(result.Failed, UploadFailure{Index: i, Filename: up.Filename, Error: err.Error()})
			continue
		}
		urls = append(urls, url)
	}

	updated, err := a.repo.SetImages(ctx, post.ID, urls)
	if err != nil {
		// The post row exists without images; keep it.
		span.RecordError(err)
		a.logger.Error("failed to attach blog images", "error", err, "post_id", post.ID)
		return result, fmt.Errorf("blog: attach images to post %d: %w", post.ID, err)
	}
	result.Post = updated
	a.publishChange(ctx, changefeed.ActionUpdate, post.ID)
	a.logger.Info("blog post created", "post_id", post.ID, "images", len(urls), "failed_images", len(result.Failed))
	return result, nil
}

// SetPublished shows or hides a post on the public site.
func (a *Author) SetPublished(ctx context.Context, id int64, published bool) (*Post, error) {
	post, err := a.repo.SetPublished(ctx, id, published)
	if err != nil {
		return nil, err
	}
	a.publishChange(ctx, changefeed.ActionUpdate, id)
	return post, nil
}

func (a *Author) Delete(ctx context.Context, id int64) error {
	if err := a.repo.Delete(ctx, id); err != nil {
		return err
	}
	a.publishChange(ctx, changefeed.ActionDelete, id)
	return nil
}

func (a *Author) publishChange(ctx context.Context, action string, id int64) {
	evt := changefeed.NewEvent(changefeed.BlogPosts, action, strconv.FormatInt(id, 10))
	if err := a.changes.Publish(ctx, evt); err != nil {
		a.logger.Warn("failed to publish blog change", "error", err, "post_id", id)
	}
}
