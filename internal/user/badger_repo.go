package user

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/2beens/blogapi/internal/store"
	"github.com/2beens/blogapi/internal/telemetry/tracing"
)

const (
	userKeyPrefix  = "user:"
	emailKeyPrefix = "user_email:"
)

// BadgerRepo keeps users as JSON documents, with a secondary
// email -> id key to enforce unique emails.
type BadgerRepo struct {
	db *badger.DB
}

func NewBadgerRepo(db *badger.DB) *BadgerRepo {
	return &BadgerRepo{db: db}
}

// badgerUser is the stored document; User hides the password hash from JSON.
type badgerUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *BadgerRepo) Add(ctx context.Context, u *User) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "userBadgerRepo.Add")
	defer span.End()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	data, err := json.Marshal(badgerUser(*u))
	if err != nil {
		return err
	}

	// a registration racing on the same email conflicts, and the retry
	// finds the email taken
	return store.Update(ctx, r.db, func(txn *badger.Txn) error {
		emailKey := []byte(emailKeyPrefix + u.Email)
		_, err := txn.Get(emailKey)
		if err == nil {
			return ErrUserExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set([]byte(userKeyPrefix+u.ID), data); err != nil {
			return err
		}
		return txn.Set(emailKey, []byte(u.ID))
	})
}

func (r *BadgerRepo) Get(ctx context.Context, id string) (*User, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "userBadgerRepo.Get")
	defer span.End()

	var u *User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = getUser(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *BadgerRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "userBadgerRepo.GetByEmail")
	defer span.End()

	var u *User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailKeyPrefix + email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		u, err = getUser(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *BadgerRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "userBadgerRepo.GetByIDs")
	defer span.End()

	users := make(map[string]*User, len(ids))
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, ok := users[id]; ok {
				continue
			}
			u, err := getUser(txn, id)
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			users[id] = u
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func getUser(txn *badger.Txn, id string) (*User, error) {
	item, err := txn.Get([]byte(userKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var stored badgerUser
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stored)
	}); err != nil {
		return nil, err
	}

	u := User(stored)
	return &u, nil
}
