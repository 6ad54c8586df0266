package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/blogapi/internal/telemetry/tracing"
	"github.com/2beens/blogapi/pkg"
)

// manual caching of blog posts not needed (at least for this use case):
// https://github.com/jackc/pgx/wiki/Automatic-Prepared-Statement-Caching

var _ blogRepo = (*Repo)(nil)

// Repo stores blogs in postgres. Likes live in a UUID[] column on the blog
// row, comments in blog_comment ordered by seq.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, blog *Blog) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.Add")
	defer span.End()

	if blog.Content == "" || blog.Title == "" {
		return ErrBlogTitleOrContentEmpty
	}
	authorID, err := uuid.Parse(blog.Author.ID)
	if err != nil {
		return fmt.Errorf("invalid author id %s: %w", blog.Author.ID, err)
	}

	if blog.ID == "" {
		blog.ID = uuid.NewString()
	}
	blogID, err := uuid.Parse(blog.ID)
	if err != nil {
		return fmt.Errorf("invalid blog id %s: %w", blog.ID, err)
	}
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now()
	}
	if blog.UpdatedAt.IsZero() {
		blog.UpdatedAt = blog.CreatedAt
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO blog (id, title, content, author_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6);`,
		blogID, blog.Title, blog.Content, authorID, blog.CreatedAt, blog.UpdatedAt,
	)
	if err != nil {
		return err
	}

	blog.normalize()
	return nil
}

func (r *Repo) All(ctx context.Context) ([]*Blog, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.All")
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, title, content, author_id, likes, created_at, updated_at FROM blog ORDER BY created_at DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs []*Blog
	byID := make(map[uuid.UUID]*Blog)
	var ids []uuid.UUID
	for rows.Next() {
		blog, id, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
		byID[id] = blog
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []*Blog{}, nil
	}

	commentRows, err := r.db.Query(
		ctx,
		`SELECT blog_id, id, user_id, text, created_at FROM blog_comment WHERE blog_id = ANY($1) ORDER BY seq;`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer commentRows.Close()

	for commentRows.Next() {
		var blogID uuid.UUID
		comment, err := scanComment(commentRows, &blogID)
		if err != nil {
			return nil, err
		}
		if blog, ok := byID[blogID]; ok {
			blog.Comments = append(blog.Comments, comment)
		}
	}

	return blogs, commentRows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (*Blog, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.Get")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	blogID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrBlogNotFound
	}

	row := r.db.QueryRow(
		ctx,
		`SELECT id, title, content, author_id, likes, created_at, updated_at FROM blog WHERE id = $1;`,
		blogID,
	)
	blog, _, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT blog_id, id, user_id, text, created_at FROM blog_comment WHERE blog_id = $1 ORDER BY seq;`,
		blogID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var commentBlogID uuid.UUID
		comment, err := scanComment(rows, &commentBlogID)
		if err != nil {
			return nil, err
		}
		blog.Comments = append(blog.Comments, comment)
	}

	return blog, rows.Err()
}

// Update sets title and content; author, likes and comments are not touched.
func (r *Repo) Update(ctx context.Context, id, title, content string, updatedAt time.Time) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.Update")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	if content == "" || title == "" {
		return ErrBlogTitleOrContentEmpty
	}
	blogID, err := uuid.Parse(id)
	if err != nil {
		return ErrBlogNotFound
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE blog SET title = $1, content = $2, updated_at = $3 WHERE id = $4;`,
		title, content, updatedAt, blogID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlogNotFound
	}
	return nil
}

// Delete removes the blog; its comments go with it (ON DELETE CASCADE).
func (r *Repo) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.Delete")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	blogID, err := uuid.Parse(id)
	if err != nil {
		return ErrBlogNotFound
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM blog WHERE id = $1;`, blogID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlogNotFound
	}
	return nil
}

// AddLike appends userID to likes unless it is already there. Adding an
// existing like is a no-op.
func (r *Repo) AddLike(ctx context.Context, id, userID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.AddLike")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	blogID, likerID, err := parseIDs(id, userID)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE blog SET likes = array_append(likes, $2::uuid) WHERE id = $1 AND NOT ($2::uuid = ANY(likes));`,
		blogID, likerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.ensureExists(ctx, blogID)
	}
	return nil
}

func (r *Repo) RemoveLike(ctx context.Context, id, userID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.RemoveLike")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	blogID, likerID, err := parseIDs(id, userID)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE blog SET likes = array_remove(likes, $2::uuid) WHERE id = $1;`,
		blogID, likerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlogNotFound
	}
	return nil
}

func (r *Repo) AddComment(ctx context.Context, id string, comment *Comment) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.AddComment")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	blogID, userID, err := parseIDs(id, comment.User.ID)
	if err != nil {
		return err
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	commentID, err := uuid.Parse(comment.ID)
	if err != nil {
		return fmt.Errorf("invalid comment id %s: %w", comment.ID, err)
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	tag, err := r.db.Exec(
		ctx,
		`INSERT INTO blog_comment (id, blog_id, user_id, text, created_at)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text, $5::timestamptz
		WHERE EXISTS (SELECT 1 FROM blog WHERE id = $2::uuid);`,
		commentID, blogID, userID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		// the blog was deleted between the check and the insert
		if pkg.IsForeignKeyViolationError(err) {
			return ErrBlogNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlogNotFound
	}
	return nil
}

func (r *Repo) ensureExists(ctx context.Context, blogID uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM blog WHERE id = $1);`,
		blogID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrBlogNotFound
	}
	log.Tracef("blog %s already liked, nothing to add", blogID)
	return nil
}

func parseIDs(blogID, userID string) (uuid.UUID, uuid.UUID, error) {
	bID, err := uuid.Parse(blogID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrBlogNotFound
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user id %s: %w", userID, err)
	}
	return bID, uID, nil
}

func scanBlog(row pgx.Row) (*Blog, uuid.UUID, error) {
	var (
		id       uuid.UUID
		authorID uuid.UUID
		likes    []uuid.UUID
	)
	blog := &Blog{}
	if err := row.Scan(&id, &blog.Title, &blog.Content, &authorID, &likes, &blog.CreatedAt, &blog.UpdatedAt); err != nil {
		return nil, uuid.Nil, err
	}

	blog.ID = id.String()
	blog.Author = UserRef{ID: authorID.String()}
	blog.Likes = make([]string, 0, len(likes))
	for _, l := range likes {
		blog.Likes = append(blog.Likes, l.String())
	}
	blog.Comments = []Comment{}

	return blog, id, nil
}

func scanComment(row pgx.Row, blogID *uuid.UUID) (Comment, error) {
	var (
		id     uuid.UUID
		userID uuid.UUID
		c      Comment
	)
	if err := row.Scan(blogID, &id, &userID, &c.Text, &c.CreatedAt); err != nil {
		return Comment{}, err
	}
	c.ID = id.String()
	c.User = UserRef{ID: userID.String()}
	return c, nil
}
