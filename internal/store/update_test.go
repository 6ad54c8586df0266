package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/blogapi/pkg"
)

func TestUpdate_RetriesConflicts(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	key := []byte("counter")
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte("0"))
	}))

	increment := func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(string(val))
		if err != nil {
			return err
		}
		return txn.Set(key, []byte(strconv.Itoa(n+1)))
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = Update(ctx, db, increment)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	require.NoError(t, db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		assert.Equal(t, strconv.Itoa(writers), string(val))
		return err
	}))
}

func TestUpdate_Errors(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	boom := errors.New("boom")
	calls := 0
	err = Update(ctx, db, func(txn *badger.Txn) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Update(ctx, db, func(txn *badger.Txn) error {
		calls++
		return badger.ErrConflict
	})
	assert.ErrorIs(t, err, ErrWriteConflict)
	assert.ErrorIs(t, err, pkg.ErrConflict)
	assert.Equal(t, 409, pkg.StatusFromError(err))
	assert.Equal(t, maxConflictRetries+1, calls)
}
