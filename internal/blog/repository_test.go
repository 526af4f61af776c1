package blog

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postColumnNames = []string{"id", "title", "category", "author", "content", "published", "images", "created_at"}

func postRow(id int64, published bool, images []string) *pgxmock.Rows {
	return pgxmock.NewRows(postColumnNames).AddRow(
		id, "Whitening myths", "Cosmetic Dentistry", "Dr. Aisha Patel", "Short read.", published, images,
		time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	)
}

func TestPostgresCreateAndSetImages(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO blog_posts").
		WithArgs("Whitening myths", "Cosmetic Dentistry", "Dr. Aisha Patel", "Short read.").
		WillReturnRows(postRow(7, false, []string{}))
	post, err := repo.Create(ctx, Draft{Title: "Whitening myths", Category: "Cosmetic Dentistry", Author: "Dr. Aisha Patel", Content: "Short read."})
	require.NoError(t, err)
	assert.Equal(t, int64(7), post.ID)
	assert.False(t, post.Published)
	assert.Equal(t, "1 min read", post.ReadTime)

	urls := []string{"https://cdn/a.jpg", "https://cdn/c.jpg"}
	mock.ExpectQuery("UPDATE blog_posts SET images").WithArgs(int64(7), urls).
		WillReturnRows(postRow(7, false, urls))
	post, err = repo.SetImages(ctx, 7, urls)
	require.NoError(t, err)
	assert.Equal(t, urls, post.Images)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE blog_posts SET published").WithArgs(int64(9), true).
		WillReturnRows(pgxmock.NewRows(postColumnNames))
	_, err = repo.SetPublished(ctx, 9, true)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("DELETE FROM blog_posts").WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(ctx, 9), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListPublished(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM blog_posts WHERE published ORDER BY created_at DESC").
		WillReturnRows(postRow(3, true, []string{"https://cdn/x.png"}))
	posts, err := NewPostgresRepository(mock).ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].Published)
	assert.Equal(t, []string{"https://cdn/x.png"}, posts[0].Images)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryListsNewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Hour) }
	ctx := context.Background()

	first, err := repo.Create(ctx, Draft{Title: "first"})
	require.NoError(t, err)
	second, err := repo.Create(ctx, Draft{Title: "second"})
	require.NoError(t, err)
	_, err = repo.SetPublished(ctx, first.ID, true)
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	published, err := repo.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, first.ID, published[0].ID)
}
