// Package repository handles all interactions with the database.
//
// Its core is Store, a generic record store that gives any entity type the
// same find/insert/update/delete contract with per-call transactions. Each
// concrete entity only declares its Table; the Repositories container holds
// one Store per entity for the rest of the application.
package repository

import (
	"github.com/deppfellow/recordstore/internal/database"
	"github.com/rs/zerolog"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Users *UserStore
}

// NewRepositories constructs every store on the given session provider.
func NewRepositories(provider database.Provider, logger *zerolog.Logger) *Repositories {
	return &Repositories{
		Users: NewStore[User, int64](provider, UsersTable, logger),
	}
}
