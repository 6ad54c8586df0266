package blog

import (
	"slices"
	"strings"
	"time"

	"github.com/2beens/blogapi/pkg"
)

var (
	ErrBlogNotFound            = pkg.NewError(pkg.ErrNotFound, "Blog not found")
	ErrBlogTitleOrContentEmpty = pkg.NewError(pkg.ErrValidation, "Title and content are required")
	ErrCommentEmpty            = pkg.NewError(pkg.ErrValidation, "Comment cannot be empty")
	ErrUpdateForbidden         = pkg.NewError(pkg.ErrForbidden, "You can only edit your own blogs.")
	ErrDeleteForbidden         = pkg.NewError(pkg.ErrForbidden, "You can only delete your own blogs.")
)

// UserRef points at a user. Name and email are only set once the reference
// has been resolved against the users store.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    UserRef   `json:"author"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateFields holds a partial update; a nil or blank field is left unchanged.
type UpdateFields struct {
	Title   *string
	Content *string
}

func (f UpdateFields) Empty() bool {
	return blank(f.Title) && blank(f.Content)
}

// apply returns title and content with the supplied non-blank fields replaced.
func (f UpdateFields) apply(title, content string) (string, string) {
	if !blank(f.Title) {
		title = *f.Title
	}
	if !blank(f.Content) {
		content = *f.Content
	}
	return title, content
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func (b *Blog) LikedBy(userID string) bool {
	return slices.Contains(b.Likes, userID)
}

// normalize makes sure likes and comments encode as [] rather than null.
func (b *Blog) normalize() {
	if b.Likes == nil {
		b.Likes = []string{}
	}
	if b.Comments == nil {
		b.Comments = []Comment{}
	}
}
