package db

import "errors"

var (
	ErrEmptyConnectionURL  = errors.New("db: empty connection URL")
	ErrFailedToParseConfig = errors.New("db: failed to parse connection config")
	ErrConnectionFailed    = errors.New("db: failed to open connection")
	ErrHealthcheckFailed   = errors.New("db: healthcheck failed")
	ErrNotConnected        = errors.New("db: pool not connected")
	ErrSetDialect          = errors.New("db: failed to set migration dialect")
	ErrApplyMigrations     = errors.New("db: failed to apply migrations")
)
