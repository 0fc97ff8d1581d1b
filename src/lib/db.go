package lib

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the SQLite database at dbPath.
//
// Transactions are started with BEGIN IMMEDIATE so two writers never both
// read a pair record and then race on the write lock; the busy timeout makes
// the loser wait instead of failing with SQLITE_BUSY.
func ConnectDB(dbPath string, log *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	log.Info("connected to SQLite", zap.String("path", dbPath))
	return db, nil
}
