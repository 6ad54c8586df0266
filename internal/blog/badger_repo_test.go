package blog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/blogapi/internal/store"
)

func TestBadgerRepo_StoresBareUserRefs(t *testing.T) {
	db, err := store.OpenBadger("")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()
	repo := NewBadgerRepo(db)
	ctx := context.Background()

	b := &Blog{
		Title:   "t",
		Content: "c",
		Author:  UserRef{ID: u1, Name: "Alice", Email: "alice@blog.com"},
	}
	require.NoError(t, repo.Add(ctx, b))
	require.NoError(t, repo.AddComment(ctx, b.ID, &Comment{
		User: UserRef{ID: u2, Name: "Bob"},
		Text: "hi",
	}))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, UserRef{ID: u1}, got.Author)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, UserRef{ID: u2}, got.Comments[0].User)
	assert.NotEmpty(t, got.Comments[0].ID)
}

func TestBadgerRepo_Errors(t *testing.T) {
	db, err := store.OpenBadger("")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()
	repo := NewBadgerRepo(db)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Add(ctx, &Blog{Title: "", Content: "c"}), ErrBlogTitleOrContentEmpty)
	assert.ErrorIs(t, repo.Update(ctx, "missing", "t", "c", time.Now()), ErrBlogNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), ErrBlogNotFound)
	assert.ErrorIs(t, repo.AddLike(ctx, "missing", u1), ErrBlogNotFound)
	assert.ErrorIs(t, repo.RemoveLike(ctx, "missing", u1), ErrBlogNotFound)
	assert.ErrorIs(t, repo.AddComment(ctx, "missing", &Comment{Text: "x"}), ErrBlogNotFound)

	b := &Blog{Title: "t", Content: "c", Author: UserRef{ID: u1}}
	require.NoError(t, repo.Add(ctx, b))
	assert.ErrorIs(t, repo.Update(ctx, b.ID, "", "c", time.Now()), ErrBlogTitleOrContentEmpty)

	// removing a like that is not there is a no-op
	require.NoError(t, repo.RemoveLike(ctx, b.ID, u2))
	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Likes)
}

func TestBadgerRepo_ConcurrentWrites(t *testing.T) {
	db, err := store.OpenBadger("")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()
	repo := NewBadgerRepo(db)
	ctx := context.Background()

	b := &Blog{Title: "t", Content: "c", Author: UserRef{ID: u1}}
	require.NoError(t, repo.Add(ctx, b))

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, 2*writers)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.AddComment(ctx, b.ID, &Comment{
				User: UserRef{ID: u2},
				Text: fmt.Sprintf("comment %d", i),
			})
		}(i)
		go func(i int) {
			defer wg.Done()
			errs[writers+i] = repo.AddLike(ctx, b.ID, fmt.Sprintf("liker-%d", i))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, writers)
	assert.Len(t, got.Likes, writers)
}
