// Package store is the persistence contract of the pipeline: hashes of named byte fields and sets
// of string members addressed by key, with ordered pipelines of commands.
//
// A key names at most one hash and one set. Commands are atomic on their own; a pipeline is
// executed in submission order and gives no guarantee across its commands beyond that.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by backends that have been closed.
	ErrClosed = errors.New("store is closed")
)

type Op uint8

const (
	OpHGet Op = iota + 1
	OpHGetAll
	OpHExists
	OpHSet
	OpHDel
	OpSAdd
	OpSRem
	OpSMembers
	OpDel
)

func (op Op) String() string {
	switch op {
	case OpHGet:
		return "HGET"
	case OpHGetAll:
		return "HGETALL"
	case OpHExists:
		return "HEXISTS"
	case OpHSet:
		return "HSET"
	case OpHDel:
		return "HDEL"
	case OpSAdd:
		return "SADD"
	case OpSRem:
		return "SREM"
	case OpSMembers:
		return "SMEMBERS"
	case OpDel:
		return "DEL"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// ReadOnly reports whether op never modifies data.
func (op Op) ReadOnly() bool {
	return op == OpHGet || op == OpHGetAll || op == OpHExists || op == OpSMembers
}

// Field is a named hash value.
type Field struct {
	Name  string
	Value []byte
}

// Command is one operation on a key. Which of the other fields are used depends on Op:
// Names for HGET, HEXISTS and HDEL, Fields for HSET, Members for SADD and SREM.
type Command struct {
	Op      Op
	Key     string
	Names   []string
	Fields  []Field
	Members []string
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s", c.Op, c.Key)
}

// Reply is the result of a [Command].
//
// HGET sets Value and Exists. HEXISTS sets Exists. HGETALL sets Fields ordered by name. SMEMBERS
// sets Members in ascending order. Writes set N to the number of fields, members or keys that
// were added or removed.
type Reply struct {
	Value   []byte
	Exists  bool
	Fields  []Field
	Members []string
	N       int
}

// Backend executes commands.
type Backend interface {
	// Exec runs cmds in order and returns one reply per command. A failed command fails the whole
	// call.
	Exec(ctx context.Context, cmds ...Command) ([]Reply, error)
	Close() error
}

// Validate checks that c carries what its Op needs.
func (c Command) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("%s: blank key", c.Op)
	}
	switch c.Op {
	case OpHGet, OpHExists:
		if len(c.Names) != 1 {
			return fmt.Errorf("%s %s: need exactly one field name", c.Op, c.Key)
		}
	case OpHDel:
		if len(c.Names) == 0 {
			return fmt.Errorf("%s %s: no field names", c.Op, c.Key)
		}
	case OpHSet:
		if len(c.Fields) == 0 {
			return fmt.Errorf("%s %s: no fields", c.Op, c.Key)
		}
	case OpSAdd, OpSRem:
		if len(c.Members) == 0 {
			return fmt.Errorf("%s %s: no members", c.Op, c.Key)
		}
	case OpHGetAll, OpSMembers, OpDel:
	default:
		return fmt.Errorf("unknown %s", c.Op)
	}
	return nil
}
