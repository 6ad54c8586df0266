package blog

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/blogapi/internal/store"
	"github.com/2beens/blogapi/internal/telemetry/tracing"
)

const blogKeyPrefix = "blog:"

var _ blogRepo = (*BadgerRepo)(nil)

// BadgerRepo stores each blog as a single JSON document with its likes and
// comments embedded. Every mutation is one read-write transaction on that
// document.
type BadgerRepo struct {
	db *badger.DB
}

func NewBadgerRepo(db *badger.DB) *BadgerRepo {
	return &BadgerRepo{db: db}
}

func blogKey(id string) []byte {
	return []byte(blogKeyPrefix + id)
}

func (r *BadgerRepo) Add(ctx context.Context, blog *Blog) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.Add")
	defer span.End()

	if blog.Content == "" || blog.Title == "" {
		return ErrBlogTitleOrContentEmpty
	}
	if blog.ID == "" {
		blog.ID = uuid.NewString()
	}
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now()
	}
	if blog.UpdatedAt.IsZero() {
		blog.UpdatedAt = blog.CreatedAt
	}
	blog.normalize()

	return store.Update(ctx, r.db, func(txn *badger.Txn) error {
		return putBlog(txn, blog)
	})
}

func (r *BadgerRepo) All(ctx context.Context) ([]*Blog, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.All")
	defer span.End()

	blogs := []*Blog{}
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(blogKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var blog Blog
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &blog)
			}); err != nil {
				return err
			}
			blog.normalize()
			blogs = append(blogs, &blog)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(blogs, func(i, j int) bool {
		return blogs[i].CreatedAt.After(blogs[j].CreatedAt)
	})
	return blogs, nil
}

func (r *BadgerRepo) Get(ctx context.Context, id string) (*Blog, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.Get")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	var blog *Blog
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		blog, err = getBlog(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blog, nil
}

func (r *BadgerRepo) Update(ctx context.Context, id, title, content string, updatedAt time.Time) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.Update")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	if content == "" || title == "" {
		return ErrBlogTitleOrContentEmpty
	}

	return r.mutate(ctx, id, func(blog *Blog) bool {
		blog.Title = title
		blog.Content = content
		blog.UpdatedAt = updatedAt
		return true
	})
}

func (r *BadgerRepo) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.Delete")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	return store.Update(ctx, r.db, func(txn *badger.Txn) error {
		_, err := txn.Get(blogKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrBlogNotFound
		}
		if err != nil {
			return err
		}
		return txn.Delete(blogKey(id))
	})
}

func (r *BadgerRepo) AddLike(ctx context.Context, id, userID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.AddLike")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	return r.mutate(ctx, id, func(blog *Blog) bool {
		if blog.LikedBy(userID) {
			return false
		}
		blog.Likes = append(blog.Likes, userID)
		return true
	})
}

func (r *BadgerRepo) RemoveLike(ctx context.Context, id, userID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.RemoveLike")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	return r.mutate(ctx, id, func(blog *Blog) bool {
		before := len(blog.Likes)
		blog.Likes = slices.DeleteFunc(blog.Likes, func(l string) bool {
			return l == userID
		})
		return len(blog.Likes) != before
	})
}

func (r *BadgerRepo) AddComment(ctx context.Context, id string, comment *Comment) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogBadgerRepo.AddComment")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	return r.mutate(ctx, id, func(blog *Blog) bool {
		blog.Comments = append(blog.Comments, *comment)
		return true
	})
}

// mutate applies fn to the stored blog inside a single transaction and
// writes it back when fn reports a change. On a conflict fn runs again on a
// fresh copy of the blog.
func (r *BadgerRepo) mutate(ctx context.Context, id string, fn func(blog *Blog) bool) error {
	return store.Update(ctx, r.db, func(txn *badger.Txn) error {
		blog, err := getBlog(txn, id)
		if err != nil {
			return err
		}
		if !fn(blog) {
			return nil
		}
		return putBlog(txn, blog)
	})
}

func getBlog(txn *badger.Txn, id string) (*Blog, error) {
	item, err := txn.Get(blogKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBlogNotFound
	}
	if err != nil {
		return nil, err
	}

	var blog Blog
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &blog)
	}); err != nil {
		return nil, err
	}
	blog.normalize()
	return &blog, nil
}

// putBlog stores user references as bare ids; names and emails are
// resolved on read.
func putBlog(txn *badger.Txn, blog *Blog) error {
	doc := *blog
	doc.Author = UserRef{ID: blog.Author.ID}
	doc.Comments = make([]Comment, len(blog.Comments))
	for i, c := range blog.Comments {
		c.User = UserRef{ID: c.User.ID}
		doc.Comments[i] = c
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return txn.Set(blogKey(blog.ID), data)
}
