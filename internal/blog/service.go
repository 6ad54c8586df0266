package blog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2beens/blogapi/internal/telemetry/metrics"
	"github.com/2beens/blogapi/internal/telemetry/tracing"
	"github.com/2beens/blogapi/internal/user"
)

type blogRepo interface {
	Add(ctx context.Context, blog *Blog) error
	All(ctx context.Context) ([]*Blog, error)
	Get(ctx context.Context, id string) (*Blog, error)
	Update(ctx context.Context, id, title, content string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	AddLike(ctx context.Context, id, userID string) error
	RemoveLike(ctx context.Context, id, userID string) error
	AddComment(ctx context.Context, id string, comment *Comment) error
}

type userLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*user.User, error)
}

type Service struct {
	repo           blogRepo
	users          userLookup
	metricsManager *metrics.Manager
}

func NewService(repo blogRepo, users userLookup, metricsManager *metrics.Manager) *Service {
	return &Service{
		repo:           repo,
		users:          users,
		metricsManager: metricsManager,
	}
}

func (s *Service) Create(ctx context.Context, title, content, authorID string) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.create")
	defer endSpan(span, &err)

	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, ErrBlogTitleOrContentEmpty
	}

	now := time.Now()
	blog := &Blog{
		Title:     title,
		Content:   content,
		Author:    UserRef{ID: authorID},
		Likes:     []string{},
		Comments:  []Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Add(ctx, blog); err != nil {
		return nil, fmt.Errorf("add blog: %w", err)
	}
	s.metricsManager.CounterBlogsCreated.Inc()

	return blog, nil
}

// ListAll returns every blog, newest first, with authors resolved.
func (s *Service) ListAll(ctx context.Context) (_ []*Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.list")
	defer endSpan(span, &err)

	blogs, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	span.SetAttributes(attribute.Int("count", len(blogs)))

	if err := s.resolve(ctx, blogs, false); err != nil {
		return nil, err
	}
	return blogs, nil
}

// GetByID returns the blog with its author and comment authors resolved.
func (s *Service) GetByID(ctx context.Context, id string) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.get")
	span.SetAttributes(attribute.String("id", id))
	defer endSpan(span, &err)

	return s.getResolved(ctx, id)
}

func (s *Service) Update(ctx context.Context, id, requesterID string, fields UpdateFields) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.update")
	span.SetAttributes(attribute.String("id", id))
	defer endSpan(span, &err)

	blog, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog %s: %w", id, err)
	}
	if blog.Author.ID != requesterID {
		return nil, ErrUpdateForbidden
	}
	if fields.Empty() {
		return s.getResolved(ctx, id)
	}

	title, content := fields.apply(blog.Title, blog.Content)
	if err := s.repo.Update(ctx, id, title, content, time.Now()); err != nil {
		return nil, fmt.Errorf("update blog %s: %w", id, err)
	}

	return s.getResolved(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id, requesterID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.delete")
	span.SetAttributes(attribute.String("id", id))
	defer endSpan(span, &err)

	blog, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get blog %s: %w", id, err)
	}
	if blog.Author.ID != requesterID {
		return ErrDeleteForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete blog %s: %w", id, err)
	}
	s.metricsManager.CounterBlogsDeleted.Inc()

	return nil
}

// ToggleLike removes userID from the blog likes if present, otherwise adds it.
// The membership check and the mutation are two separate store calls; only the
// add/remove itself is atomic.
func (s *Service) ToggleLike(ctx context.Context, id, userID string) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.togglelike")
	span.SetAttributes(attribute.String("id", id))
	defer endSpan(span, &err)

	blog, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog %s: %w", id, err)
	}

	if blog.LikedBy(userID) {
		if err := s.repo.RemoveLike(ctx, id, userID); err != nil {
			return nil, fmt.Errorf("unlike blog %s: %w", id, err)
		}
		s.metricsManager.CounterLikeToggles.WithLabelValues("unlike").Inc()
	} else {
		if err := s.repo.AddLike(ctx, id, userID); err != nil {
			return nil, fmt.Errorf("like blog %s: %w", id, err)
		}
		s.metricsManager.CounterLikeToggles.WithLabelValues("like").Inc()
	}

	return s.getResolved(ctx, id)
}

func (s *Service) AddComment(ctx context.Context, id, userID, text string) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.addcomment")
	span.SetAttributes(attribute.String("id", id))
	defer endSpan(span, &err)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrCommentEmpty
	}

	comment := &Comment{
		User:      UserRef{ID: userID},
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.repo.AddComment(ctx, id, comment); err != nil {
		return nil, fmt.Errorf("add comment to blog %s: %w", id, err)
	}
	s.metricsManager.CounterComments.Inc()

	return s.getResolved(ctx, id)
}

func (s *Service) getResolved(ctx context.Context, id string) (*Blog, error) {
	blog, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog %s: %w", id, err)
	}
	if err := s.resolve(ctx, []*Blog{blog}, true); err != nil {
		return nil, err
	}
	return blog, nil
}

// resolve fills in name and email of blog authors, and of comment authors
// when withComments is set. References to unknown users stay bare ids.
func (s *Service) resolve(ctx context.Context, blogs []*Blog, withComments bool) error {
	var ids []string
	for _, b := range blogs {
		b.normalize()
		ids = append(ids, b.Author.ID)
		if withComments {
			for _, c := range b.Comments {
				ids = append(ids, c.User.ID)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve users: %w", err)
	}

	for _, b := range blogs {
		b.Author = refFor(b.Author.ID, users)
		if withComments {
			for i := range b.Comments {
				b.Comments[i].User = refFor(b.Comments[i].User.ID, users)
			}
		}
	}
	return nil
}

func refFor(id string, users map[string]*user.User) UserRef {
	u, ok := users[id]
	if !ok {
		return UserRef{ID: id}
	}
	return UserRef{ID: id, Name: u.Name, Email: u.Email}
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
