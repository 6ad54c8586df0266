package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/blogapi/internal/telemetry/tracing"
	"github.com/2beens/blogapi/pkg"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, u *User) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "userRepo.Add")
	defer span.End()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return fmt.Errorf("invalid user id %s: %w", u.ID, err)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5);`,
		id, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrUserExists
		}
		return err
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "userRepo.Get")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()

	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	row := r.db.QueryRow(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1;`,
		userID,
	)
	return scanUser(row)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "userRepo.GetByEmail")
	defer span.End()

	row := r.db.QueryRow(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1;`,
		email,
	)
	return scanUser(row)
}

// GetByIDs returns the found users keyed by id; unknown ids are skipped.
func (r *Repo) GetByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "userRepo.GetByIDs")
	span.SetAttributes(attribute.Int("count", len(ids)))
	defer span.End()

	users := make(map[string]*User, len(ids))
	userIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if userID, err := uuid.Parse(id); err == nil {
			userIDs = append(userIDs, userID)
		}
	}
	if len(userIDs) == 0 {
		return users, nil
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ANY($1);`,
		userIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[u.ID] = u
	}

	return users, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var id uuid.UUID
	u := &User{}
	if err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.ID = id.String()
	return u, nil
}
