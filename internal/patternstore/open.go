package patternstore

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open builds the configured backend. db is only used by the postgres backend.
func Open(backend, sqlitePath string, db *gorm.DB) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return NewSQLiteStore(sqlitePath)
	case BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres pattern store requires DATABASE_URL")
		}
		return NewGormStore(db)
	default:
		return nil, fmt.Errorf("unknown pattern store backend: %s (allowed: memory, sqlite, postgres)", backend)
	}
}
