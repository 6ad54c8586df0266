package user

import (
	"strings"
	"time"

	"github.com/2beens/blogapi/pkg"
)

var (
	ErrUserNotFound = pkg.NewError(pkg.ErrNotFound, "User not found")
	ErrUserExists   = pkg.NewError(pkg.ErrConflict, "User already exists")
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail is applied before every store and lookup by email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
