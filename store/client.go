package store

import (
	"context"
	"fmt"
)

// Client is a typed front of a [Backend].
type Client struct {
	backend Backend
}

func New(backend Backend) *Client {
	return &Client{backend: backend}
}

func (c *Client) Close() error {
	return c.backend.Close()
}

func (c *Client) do(ctx context.Context, cmd Command) (Reply, error) {
	replies, err := c.backend.Exec(ctx, cmd)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", cmd, err)
	}
	return replies[0], nil
}

// HGet returns the value of a hash field and whether it exists.
func (c *Client) HGet(ctx context.Context, key, name string) ([]byte, bool, error) {
	r, err := c.do(ctx, Command{Op: OpHGet, Key: key, Names: []string{name}})
	return r.Value, r.Exists, err
}

func (c *Client) HExists(ctx context.Context, key, name string) (bool, error) {
	r, err := c.do(ctx, Command{Op: OpHExists, Key: key, Names: []string{name}})
	return r.Exists, err
}

// HGetAll returns every field of a hash. A missing hash has no fields.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	r, err := c.do(ctx, Command{Op: OpHGetAll, Key: key})
	if err != nil {
		return nil, err
	}
	fields := make(map[string][]byte, len(r.Fields))
	for _, f := range r.Fields {
		fields[f.Name] = f.Value
	}
	return fields, nil
}

func (c *Client) HSet(ctx context.Context, key string, fields ...Field) error {
	_, err := c.do(ctx, Command{Op: OpHSet, Key: key, Fields: fields})
	return err
}

func (c *Client) HDel(ctx context.Context, key string, names ...string) error {
	_, err := c.do(ctx, Command{Op: OpHDel, Key: key, Names: names})
	return err
}

func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	_, err := c.do(ctx, Command{Op: OpSAdd, Key: key, Members: members})
	return err
}

func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	_, err := c.do(ctx, Command{Op: OpSRem, Key: key, Members: members})
	return err
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	r, err := c.do(ctx, Command{Op: OpSMembers, Key: key})
	return r.Members, err
}

// Del removes the hash and the set stored under key.
func (c *Client) Del(ctx context.Context, key string) error {
	_, err := c.do(ctx, Command{Op: OpDel, Key: key})
	return err
}

// Pipeline starts an empty pipeline.
func (c *Client) Pipeline() *Pipeline {
	return &Pipeline{backend: c.backend}
}

// Pipeline queues commands and sends them to the backend in one round trip.
type Pipeline struct {
	backend Backend
	cmds    []Command
}

func (p *Pipeline) HGet(key, name string) *Pipeline {
	return p.queue(Command{Op: OpHGet, Key: key, Names: []string{name}})
}

func (p *Pipeline) HGetAll(key string) *Pipeline {
	return p.queue(Command{Op: OpHGetAll, Key: key})
}

func (p *Pipeline) HSet(key string, fields ...Field) *Pipeline {
	return p.queue(Command{Op: OpHSet, Key: key, Fields: fields})
}

func (p *Pipeline) HDel(key string, names ...string) *Pipeline {
	return p.queue(Command{Op: OpHDel, Key: key, Names: names})
}

func (p *Pipeline) SAdd(key string, members ...string) *Pipeline {
	return p.queue(Command{Op: OpSAdd, Key: key, Members: members})
}

func (p *Pipeline) SRem(key string, members ...string) *Pipeline {
	return p.queue(Command{Op: OpSRem, Key: key, Members: members})
}

func (p *Pipeline) Del(key string) *Pipeline {
	return p.queue(Command{Op: OpDel, Key: key})
}

func (p *Pipeline) queue(cmd Command) *Pipeline {
	p.cmds = append(p.cmds, cmd)
	return p
}

// Len returns the number of queued commands.
func (p *Pipeline) Len() int {
	return len(p.cmds)
}

// Exec sends the queued commands and resets the pipeline. An empty pipeline is a no-op.
func (p *Pipeline) Exec(ctx context.Context) ([]Reply, error) {
	if len(p.cmds) == 0 {
		return nil, nil
	}
	cmds := p.cmds
	p.cmds = nil

	replies, err := p.backend.Exec(ctx, cmds...)
	if err != nil {
		return nil, fmt.Errorf("pipeline of %d commands: %w", len(cmds), err)
	}
	return replies, nil
}

// S is a shorthand for a string hash field.
func S(name, value string) Field {
	return Field{Name: name, Value: []byte(value)}
}

// B is a shorthand for a byte hash field.
func B(name string, value []byte) Field {
	return Field{Name: name, Value: value}
}
