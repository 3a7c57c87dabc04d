// Package bolt implements the store backend on top of a bbolt file.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/teenjuna/tvl/store"
)

// Bucket names
var (
	hashBucketName = []byte("hash") // Contains one bucket per key with <field>=<value>
	setBucketName  = []byte("set")  // Contains one bucket per key with <member>=""
)

// Storage is a [store.Backend] backed by bbolt. Read-only calls run in a view transaction,
// everything else in one update transaction.
type Storage struct {
	db *bolt.DB
}

var _ store.Backend = (*Storage)(nil)

// New opens or creates the database file. A file must be configured.
func New(configFuncs ...ConfigFunc) (*Storage, error) {
	cfg := &Config{}
	cfg.Timeout(time.Second)
	for _, cf := range configFuncs {
		cf(cfg)
	}
	if cfg.file == "" {
		return nil, errors.New("file is not configured")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.file), 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(cfg.file, 0600, &bolt.Options{Timeout: cfg.timeout})
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(hashBucketName); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(setBucketName); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Exec(ctx context.Context, cmds ...store.Command) ([]store.Reply, error) {
	readOnly := true
	for _, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
		readOnly = readOnly && cmd.Op.ReadOnly()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	replies := make([]store.Reply, len(cmds))
	fn := func(tx *bolt.Tx) error {
		for i, cmd := range cmds {
			reply, err := exec(tx, cmd)
			if err != nil {
				return fmt.Errorf("%s: %w", cmd, err)
			}
			replies[i] = reply
		}
		return nil
	}

	var err error
	if readOnly {
		err = s.db.View(fn)
	} else {
		err = s.db.Update(fn)
	}
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return nil, store.ErrClosed
	} else if err != nil {
		return nil, err
	}

	return replies, nil
}

func exec(tx *bolt.Tx, cmd store.Command) (store.Reply, error) {
	var (
		reply store.Reply
		key   = []byte(cmd.Key)
		hash  = tx.Bucket(hashBucketName)
		set   = tx.Bucket(setBucketName)
	)

	switch cmd.Op {
	case store.OpHGet, store.OpHExists:
		bkt := hash.Bucket(key)
		if bkt == nil {
			return reply, nil
		}
		value, ok := get(bkt, []byte(cmd.Names[0]))
		if !ok {
			return reply, nil
		}
		reply.Exists = true
		if cmd.Op == store.OpHGet {
			reply.Value = append([]byte{}, value...)
		}

	case store.OpHGetAll:
		bkt := hash.Bucket(key)
		if bkt == nil {
			return reply, nil
		}
		err := bkt.ForEach(func(k, v []byte) error {
			reply.Fields = append(reply.Fields, store.Field{Name: string(k), Value: append([]byte{}, v...)})
			return nil
		})
		if err != nil {
			return store.Reply{}, err
		}

	case store.OpSMembers:
		bkt := set.Bucket(key)
		if bkt == nil {
			return reply, nil
		}
		err := bkt.ForEach(func(k, _ []byte) error {
			reply.Members = append(reply.Members, string(k))
			return nil
		})
		if err != nil {
			return store.Reply{}, err
		}

	case store.OpHSet:
		bkt, err := hash.CreateBucketIfNotExists(key)
		if err != nil {
			return store.Reply{}, err
		}
		for _, f := range cmd.Fields {
			value := f.Value
			if value == nil {
				value = []byte{}
			}
			if err := bkt.Put([]byte(f.Name), value); err != nil {
				return store.Reply{}, fmt.Errorf("put %q: %w", f.Name, err)
			}
		}
		reply.N = len(cmd.Fields)

	case store.OpHDel:
		n, err := remove(hash, key, cmd.Names)
		if err != nil {
			return store.Reply{}, err
		}
		reply.N = n

	case store.OpSAdd:
		bkt, err := set.CreateBucketIfNotExists(key)
		if err != nil {
			return store.Reply{}, err
		}
		for _, m := range cmd.Members {
			if _, ok := get(bkt, []byte(m)); ok {
				continue
			}
			if err := bkt.Put([]byte(m), []byte{}); err != nil {
				return store.Reply{}, fmt.Errorf("put %q: %w", m, err)
			}
			reply.N++
		}

	case store.OpSRem:
		n, err := remove(set, key, cmd.Members)
		if err != nil {
			return store.Reply{}, err
		}
		reply.N = n

	case store.OpDel:
		for _, parent := range []*bolt.Bucket{hash, set} {
			err := parent.DeleteBucket(key)
			if errors.Is(err, bolt.ErrBucketNotFound) {
				continue
			} else if err != nil {
				return store.Reply{}, err
			}
			reply.N = 1
		}
	}

	return reply, nil
}

// remove deletes names from the key bucket and drops the bucket once it is empty.
func remove(parent *bolt.Bucket, key []byte, names []string) (int, error) {
	bkt := parent.Bucket(key)
	if bkt == nil {
		return 0, nil
	}

	n := 0
	for _, name := range names {
		if _, ok := get(bkt, []byte(name)); !ok {
			continue
		}
		if err := bkt.Delete([]byte(name)); err != nil {
			return 0, fmt.Errorf("delete %q: %w", name, err)
		}
		n++
	}

	if k, _ := bkt.Cursor().First(); k == nil {
		if err := parent.DeleteBucket(key); err != nil {
			return 0, err
		}
	}

	return n, nil
}

// get tells an empty value apart from a missing key.
func get(bkt *bolt.Bucket, key []byte) ([]byte, bool) {
	k, v := bkt.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false
	}
	return v, true
}

func (s *Storage) Close() error {
	return s.db.Close()
}
