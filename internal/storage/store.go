package storage

import (
	"fmt"

	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/interfaces"
)

// NewStore opens the store selected by the database driver. The returned
// close function releases it.
func NewStore(cfg config.DatabaseConfig) (interfaces.Store, func() error, error) {
	switch cfg.Driver {
	case "", "json":
		return game.NewFileStorage(cfg.DSN), func() error { return nil }, nil
	case "sqlite":
		db, err := Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
