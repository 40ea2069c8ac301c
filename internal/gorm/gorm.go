// Package gorm contains general logic for interacting with the embedded
// SQLite datastore with GORM (https://gorm.io/).
package gorm

import (
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	// ErrAlreadyExists indicates that an attempt was made to create an entity
	// that already exists.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrNotFound indicates the entity was not found.
	ErrNotFound = gorm.ErrRecordNotFound
)

// Open opens a connection with the SQLite database file at path. The store
// is single-writer (§1); SQLite's own file lock enforces this without any
// additional coordination.
func Open(path string, options ...Option) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				Colorful:                  false,
				IgnoreRecordNotFoundError: true,
				LogLevel:                  logger.Error,
			},
		),
	}

	for _, option := range options {
		option(cfg)
	}

	return gorm.Open(sqlite.Open(path), cfg)
}

// Option is a function that mutates the passed *gorm.Config instance.
type Option func(*gorm.Config)

// WithTablePrefix creates an Option that configures *gorm.Config to use the
// specified table prefix.
func WithTablePrefix(prefix string) Option {
	return func(c *gorm.Config) {
		c.NamingStrategy = schema.NamingStrategy{TablePrefix: prefix}
	}
}
