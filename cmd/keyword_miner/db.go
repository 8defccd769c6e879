package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/db"
)

// openDB loads config and connects to the database for operator commands.
func openDB(ctx context.Context) (*config.Config, *db.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, eris.New("database.url is required")
	}
	database, err := db.Connect(ctx, cfg.Database.URL, db.Options{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return cfg, database, nil
}

func parseAccount(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "invalid account id %q", s)
	}
	return id, nil
}
