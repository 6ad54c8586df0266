package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogapi/pkg"
)

// ErrWriteConflict is returned when a transaction keeps losing to concurrent
// writers of the same keys.
var ErrWriteConflict = pkg.NewError(pkg.ErrConflict, "The resource was modified concurrently, please try again")

const maxConflictRetries = 20

// Update runs fn in a read-write transaction and reruns it, with a short
// backoff, while badger reports a conflict with a concurrent transaction.
// fn must be safe to run more than once.
func Update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := db.Update(fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}
		log.Tracef("badger: txn conflict, attempt %d", attempt)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxConflictRetries), ctx))

	if errors.Is(err, badger.ErrConflict) {
		return ErrWriteConflict
	}
	return err
}
