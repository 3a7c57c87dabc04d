package bolt

import (
	"strings"
	"time"
)

type Config struct {
	file    string
	timeout time.Duration
}

type ConfigFunc = func(c *Config)

func (c *Config) File(file string) {
	file = strings.TrimSpace(file)
	if file == "" {
		panic("file can't be blank")
	}
	c.file = file
}

// Timeout sets how long to wait for the file lock held by another process.
func (c *Config) Timeout(timeout time.Duration) {
	if timeout < 0 {
		panic("timeout can't be < 0")
	}
	c.timeout = timeout
}

func WithFile(file string) ConfigFunc {
	return func(c *Config) {
		c.File(file)
	}
}
