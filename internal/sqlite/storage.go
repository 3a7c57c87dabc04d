// Package sqlite implements the store backend on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teenjuna/tvl/internal"
	"github.com/teenjuna/tvl/store"
)

const (
	memory = ":memory:"
)

// Storage is a [store.Backend] backed by SQLite. Hashes and sets live in two tables keyed by the
// store key. Every Exec call runs in one transaction.
type Storage struct {
	cfg   *Config
	db    *sql.DB
	stmts *statements
}

var _ store.Backend = (*Storage)(nil)

// New creates a new Storage with the provided configuration functions.
//
// Default configuration:
//   - File: ":memory:" (in-memory database)
//   - Conns: 4
//
// Returns an error if the SQLite database cannot be opened or initialized.
func New(configFuncs ...ConfigFunc) (*Storage, error) {
	cfg := &Config{}
	cfg.File(memory)
	cfg.Conns(4)
	for _, cf := range configFuncs {
		cf(cfg)
	}

	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if err := setup(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setup: %w", err)
	}

	stmts, err := prepare(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare: %w", err)
	}

	storage := Storage{
		cfg:   cfg,
		db:    db,
		stmts: stmts,
	}

	return &storage, nil
}

// Exec runs cmds in order inside one transaction.
//
// Returns [store.ErrClosed] if the storage has been closed.
func (s *Storage) Exec(ctx context.Context, cmds ...store.Command) ([]store.Reply, error) {
	for _, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, closed(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	replies := make([]store.Reply, len(cmds))
	for i, cmd := range cmds {
		reply, err := s.exec(ctx, tx, cmd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd, closed(err))
		}
		replies[i] = reply
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", closed(err))
	}

	return replies, nil
}

func (s *Storage) exec(ctx context.Context, tx *sql.Tx, cmd store.Command) (store.Reply, error) {
	var reply store.Reply
	key := sql.Named("key", cmd.Key)

	switch cmd.Op {
	case store.OpHGet, store.OpHExists:
		err := tx.StmtContext(ctx, s.stmts.hget).
			QueryRowContext(ctx, key, sql.Named("field", cmd.Names[0])).
			Scan(&reply.Value)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Reply{}, nil
		} else if err != nil {
			return store.Reply{}, err
		}
		reply.Exists = true
		if cmd.Op == store.OpHExists {
			reply.Value = nil
		}

	case store.OpHGetAll:
		rows, err := tx.StmtContext(ctx, s.stmts.hgetAll).QueryContext(ctx, key)
		if err != nil {
			return store.Reply{}, err
		}
		defer rows.Close()
		for rows.Next() {
			var f store.Field
			if err := rows.Scan(&f.Name, &f.Value); err != nil {
				return store.Reply{}, fmt.Errorf("scan: %w", err)
			}
			reply.Fields = append(reply.Fields, f)
		}
		if err := rows.Err(); err != nil {
			return store.Reply{}, fmt.Errorf("scan: %w", err)
		}

	case store.OpSMembers:
		rows, err := tx.StmtContext(ctx, s.stmts.smembers).QueryContext(ctx, key)
		if err != nil {
			return store.Reply{}, err
		}
		defer rows.Close()
		for rows.Next() {
			var member string
			if err := rows.Scan(&member); err != nil {
				return store.Reply{}, fmt.Errorf("scan: %w", err)
			}
			reply.Members = append(reply.Members, member)
		}
		if err := rows.Err(); err != nil {
			return store.Reply{}, fmt.Errorf("scan: %w", err)
		}

	case store.OpHSet:
		stmt := tx.StmtContext(ctx, s.stmts.hset)
		for _, f := range cmd.Fields {
			value := f.Value
			if value == nil {
				value = []byte{}
			}
			if _, err := stmt.ExecContext(
				ctx, key, sql.Named("field", f.Name), sql.Named("value", value),
			); err != nil {
				return store.Reply{}, err
			}
		}
		reply.N = len(cmd.Fields)

	case store.OpHDel:
		n, err := each(ctx, tx.StmtContext(ctx, s.stmts.hdel), key, "field", cmd.Names)
		if err != nil {
			return store.Reply{}, err
		}
		reply.N = n

	case store.OpSAdd:
		n, err := each(ctx, tx.StmtContext(ctx, s.stmts.sadd), key, "member", cmd.Members)
		if err != nil {
			return store.Reply{}, err
		}
		reply.N = n

	case store.OpSRem:
		n, err := each(ctx, tx.StmtContext(ctx, s.stmts.srem), key, "member", cmd.Members)
		if err != nil {
			return store.Reply{}, err
		}
		reply.N = n

	case store.OpDel:
		for _, stmt := range []*sql.Stmt{s.stmts.delHash, s.stmts.delSet} {
			res, err := tx.StmtContext(ctx, stmt).ExecContext(ctx, key)
			if err != nil {
				return store.Reply{}, err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				reply.N = 1
			}
		}
	}

	return reply, nil
}

func each(
	ctx context.Context,
	stmt *sql.Stmt,
	key sql.NamedArg,
	name string,
	values []string,
) (int, error) {
	total := 0
	for _, v := range values {
		res, err := stmt.ExecContext(ctx, key, sql.Named(name, v))
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	return total, nil
}

// Close closes the underlying SQLite database.
//
// After closing, Exec returns [store.ErrClosed].
func (s *Storage) Close() error {
	return errors.Join(s.stmts.close(), s.db.Close())
}

func closed(err error) error {
	if err != nil && err.Error() == "sql: database is closed" {
		return store.ErrClosed
	}
	return err
}

func open(cfg *Config) (*sql.DB, error) {
	uri := url.URL{Scheme: "file", Opaque: escapePath(cfg.file)}

	params := url.Values{}
	params.Add("_txlock", "immediate")
	params.Add("_timeout", "5000") // 5s
	if cfg.file == memory {
		uri.Opaque = internal.GenerateID()
		params.Add("mode", "memory")
		params.Add("cache", "shared")
	} else {
		params.Add("_journal", "wal")
		params.Add("_sync", "normal")
		params.Add("_cache_size", "-20000") // 20mb
	}
	uri.RawQuery = params.Encode()

	db, err := sql.Open("sqlite3", uri.String())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	if cfg.file == memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.conns)
		db.SetMaxIdleConns(cfg.conns)
	}

	return db, nil
}

// escapePath percent-encodes every segment of file. SQLite decodes the URI path, so a raw '#'
// or '%' would otherwise cut or alter the file name.
func escapePath(file string) string {
	segments := strings.Split(filepath.ToSlash(file), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func setup(db *sql.DB) error {
	// Create table for hash fields.
	if _, err := db.Exec(
		`
		create table if not exists hash (
			key   text not null,
			field text not null,
			value blob not null,
			primary key (key, field)
		) strict, without rowid
		`,
	); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	// Create table for set members.
	if _, err := db.Exec(
		`
		create table if not exists member (
			key    text not null,
			member text not null,
			primary key (key, member)
		) strict, without rowid
		`,
	); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	return nil
}

type statements struct {
	hget     *sql.Stmt
	hgetAll  *sql.Stmt
	hset     *sql.Stmt
	hdel     *sql.Stmt
	sadd     *sql.Stmt
	srem     *sql.Stmt
	smembers *sql.Stmt
	delHash  *sql.Stmt
	delSet   *sql.Stmt
}

func prepare(db *sql.DB) (*statements, error) {
	var (
		s    statements
		errs []error
	)
	stmt := func(query string) *sql.Stmt {
		st, err := db.Prepare(query)
		if err != nil {
			errs = append(errs, err)
		}
		return st
	}

	s.hget = stmt(`select value from hash where key = :key and field = :field`)
	s.hgetAll = stmt(`select field, value from hash where key = :key order by field`)
	s.hset = stmt(
		`
		insert into hash (key, field, value) values (:key, :field, :value)
		on conflict (key, field) do update set value = excluded.value
		`,
	)
	s.hdel = stmt(`delete from hash where key = :key and field = :field`)
	s.sadd = stmt(`insert into member (key, member) values (:key, :member) on conflict do nothing`)
	s.srem = stmt(`delete from member where key = :key and member = :member`)
	s.smembers = stmt(`select member from member where key = :key order by member`)
	s.delHash = stmt(`delete from hash where key = :key`)
	s.delSet = stmt(`delete from member where key = :key`)

	if err := errors.Join(errs...); err != nil {
		_ = s.close()
		return nil, err
	}

	return &s, nil
}

func (s *statements) close() error {
	var errs []error
	for _, st := range []*sql.Stmt{
		s.hget, s.hgetAll, s.hset, s.hdel, s.sadd, s.srem, s.smembers, s.delHash, s.delSet,
	} {
		if st == nil {
			continue
		}
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
