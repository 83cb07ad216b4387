package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"leadsdash/config"
	"leadsdash/storage"
	"leadsdash/utils"
)

// OpenStorage opens the session store selected by the config, encrypted when
// a session key is configured
func OpenStorage(cfg *config.Config) (fiber.Storage, error) {
	var store fiber.Storage

	switch cfg.Session.Driver {
	case "redis":
		rs, err := storage.NewRedisStorage(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("opening redis session store: %w", err)
		}
		store = rs
		utils.Log.Info("Using redis session store at %s", cfg.Redis.Addr)
	default:
		db, err := storage.InitDB(cfg.Session.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening bolt session store: %w", err)
		}
		store = storage.NewBoltStorage(db, 10*time.Minute)
		utils.Log.Info("Using bolt session store in %s", cfg.Session.DataDir)
	}

	key, err := cfg.Session.Key()
	if err != nil {
		store.Close()
		return nil, err
	}
	if key != nil {
		store = storage.NewEncryptedStorage(store, key)
	} else {
		utils.Log.Warn("session encryption key not set; tokens are stored in plain text")
	}

	return store, nil
}
