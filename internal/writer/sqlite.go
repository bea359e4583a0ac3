package writer

import (
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MatchRow is the database shape of a match record.
type MatchRow struct {
	ID             uint `gorm:"primaryKey"`
	MessageTime    string
	SenderID       int64
	Text           string
	MessageID      int   `gorm:"index:idx_chat_message"`
	ChatID         int64 `gorm:"index:idx_chat_message"`
	MessageLink    string
	LocalImagePath string
	Accuracy       string
	CreatedAt      time.Time
}

func (MatchRow) TableName() string {
	return "match_records"
}

type sqliteEncoder struct {
	path string
	db   *gorm.DB
}

func openSQLite(path string) (*sqliteEncoder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&MatchRow{}); err != nil {
		return nil, err
	}
	return &sqliteEncoder{path: path, db: db}, nil
}

func (e *sqliteEncoder) append(rec data.MatchRecord) error {
	row := MatchRow{
		MessageTime:    rec.MessageTime,
		SenderID:       rec.SenderID,
		Text:           rec.Text,
		MessageID:      rec.MessageID,
		ChatID:         rec.ChatID,
		MessageLink:    rec.MessageLink,
		LocalImagePath: rec.LocalImagePath,
		Accuracy:       rec.Accuracy,
	}
	if err := e.db.Create(&row).Error; err != nil {
		return &SinkWriteError{Op: "insert", Path: e.path, Err: err}
	}
	return nil
}

func (e *sqliteEncoder) close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
