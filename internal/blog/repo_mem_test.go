package blog

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2beens/blogapi/internal/user"
)

var _ blogRepo = (*memRepo)(nil)

// memRepo is an in-memory blogRepo; it hands out copies so tests can't
// mutate stored state by accident.
type memRepo struct {
	mutex sync.Mutex
	blogs map[string]*Blog
}

func newMemRepo() *memRepo {
	return &memRepo{blogs: map[string]*Blog{}}
}

func copyBlog(b *Blog) *Blog {
	c := *b
	c.Likes = slices.Clone(b.Likes)
	c.Comments = slices.Clone(b.Comments)
	c.normalize()
	return &c
}

func (r *memRepo) Add(_ context.Context, blog *Blog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if blog.ID == "" {
		blog.ID = uuid.NewString()
	}
	blog.normalize()
	r.blogs[blog.ID] = copyBlog(blog)
	return nil
}

func (r *memRepo) All(_ context.Context) ([]*Blog, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	blogs := make([]*Blog, 0, len(r.blogs))
	for _, b := range r.blogs {
		blogs = append(blogs, copyBlog(b))
	}
	sort.SliceStable(blogs, func(i, j int) bool {
		return blogs[i].CreatedAt.After(blogs[j].CreatedAt)
	})
	return blogs, nil
}

func (r *memRepo) Get(_ context.Context, id string) (*Blog, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return nil, ErrBlogNotFound
	}
	return copyBlog(b), nil
}

func (r *memRepo) Update(_ context.Context, id, title, content string, updatedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return ErrBlogNotFound
	}
	b.Title, b.Content, b.UpdatedAt = title, content, updatedAt
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.blogs[id]; !ok {
		return ErrBlogNotFound
	}
	delete(r.blogs, id)
	return nil
}

func (r *memRepo) AddLike(_ context.Context, id, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return ErrBlogNotFound
	}
	if !b.LikedBy(userID) {
		b.Likes = append(b.Likes, userID)
	}
	return nil
}

func (r *memRepo) RemoveLike(_ context.Context, id, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return ErrBlogNotFound
	}
	b.Likes = slices.DeleteFunc(b.Likes, func(l string) bool { return l == userID })
	return nil
}

func (r *memRepo) AddComment(_ context.Context, id string, comment *Comment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return ErrBlogNotFound
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	b.Comments = append(b.Comments, *comment)
	return nil
}

type memUsers map[string]*user.User

func (m memUsers) GetByIDs(_ context.Context, ids []string) (map[string]*user.User, error) {
	found := make(map[string]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := m[id]; ok {
			found[id] = u
		}
	}
	return found, nil
}
