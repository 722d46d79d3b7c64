package root

import (
	"time"

	"questlock/config"
	"questlock/database"
	"questlock/services"

	"gorm.io/gorm"
)

func openDB() (*gorm.DB, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := database.Open(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return conn, cfg, cleanup, nil
}

// openService wires a quest service without an event hub; CLI changes are
// picked up by clients through polling.
func openService() (*services.QuestService, *database.Store, *config.Config, func(), error) {
	conn, cfg, cleanup, err := openDB()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store := database.NewStore(conn)
	clock := func() time.Time { return time.Now().UTC() }
	return services.NewQuestService(store, nil, clock), store, cfg, cleanup, nil
}
