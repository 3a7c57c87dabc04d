package sqlite

import (
	"strings"
)

type Config struct {
	file  string
	conns int
}

type ConfigFunc = func(c *Config)

func (c *Config) File(file string) {
	file = strings.TrimSpace(file)
	if file == "" {
		panic("file can't be blank")
	}
	if strings.Contains(file, "?") {
		panic("file can't contain ?")
	}
	c.file = file
}

// Conns sets the size of the connection pool of a file database. In-memory databases always use
// one connection.
func (c *Config) Conns(conns int) {
	if conns < 1 {
		panic("conns can't be < 1")
	}
	c.conns = conns
}

func WithFile(file string) ConfigFunc {
	return func(c *Config) {
		c.File(file)
	}
}

func WithConns(conns int) ConfigFunc {
	return func(c *Config) {
		c.Conns(conns)
	}
}
