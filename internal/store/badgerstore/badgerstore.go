// Package badgerstore is an embedded backend for solo use: documents and
// identity-provider accounts share one Badger database on local disk.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/ids"
)

var (
	_ docstore.Store = (*Store)(nil)
	_ auth.Accounts  = (*Store)(nil)
)

// Store wraps a Badger database.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the database in dir. An empty dir keeps
// everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func docPrefix(collection string) []byte { return []byte("doc/" + collection + "/") }
func docKey(collection, id string) []byte { return append(docPrefix(collection), id...) }
func uidKey(uid string) []byte { return []byte("acct/uid/" + uid) }
func emailKey(email string) []byte { return []byte("acct/email/" + email) }

func (s *Store) ListAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, docstore.Wrap("list", collection, err)
	}
	prefix := docPrefix(collection)
	var docs []docstore.Document
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id := string(item.Key()[len(prefix):])
			docs = append(docs, docstore.Document{ID: id, Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, docstore.Wrap("list", collection, err)
	}
	return docs, nil
}

func (s *Store) WriteNew(ctx context.Context, collection string, record any) (string, error) {
	id := ids.New()
	if err := s.WriteAt(ctx, collection, id, record); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) WriteAt(ctx context.Context, collection, key string, record any) error {
	if err := ctx.Err(); err != nil {
		return docstore.Wrap("write", collection, err)
	}
	if key == "" {
		return docstore.Wrap("write", collection, errors.New("empty key"))
	}
	data, err := docstore.Encode(record, s.now())
	if err != nil {
		return docstore.Wrap("write", collection, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, key), data)
	})
	return docstore.Wrap("write", collection, err)
}

func (s *Store) Create(ctx context.Context, a *auth.Account) error {
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(a.Email)); err == nil {
			return auth.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(emailKey(a.Email), []byte(a.UID)); err != nil {
			return err
		}
		return txn.Set(uidKey(a.UID), data)
	})
}

func (s *Store) Find(ctx context.Context, uid string) (*auth.Account, error) {
	var acct *auth.Account
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		acct, err = getAccount(txn, uid)
		return err
	})
	return acct, err
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	var acct *auth.Account
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return auth.ErrNotFound
		}
		if err != nil {
			return err
		}
		uid, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		acct, err = getAccount(txn, string(uid))
		return err
	})
	return acct, err
}

func (s *Store) UpdateDisplayName(ctx context.Context, uid, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		acct, err := getAccount(txn, uid)
		if err != nil {
			return err
		}
		acct.DisplayName = name
		acct.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(acct)
		if err != nil {
			return err
		}
		return txn.Set(uidKey(uid), data)
	})
}

func getAccount(txn *badger.Txn, uid string) (*auth.Account, error) {
	item, err := txn.Get(uidKey(uid))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var acct auth.Account
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &acct)
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
