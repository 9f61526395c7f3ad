package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type postgresBackend struct {
	db *gorm.DB
}

func openPostgres(dsn string) (*postgresBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&GameRecord{}, &EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &postgresBackend{db: db}, nil
}

func (b *postgresBackend) createGame(ctx context.Context, g *GameRecord) error {
	return b.db.WithContext(ctx).Create(g).Error
}

func (b *postgresBackend) insertEvent(ctx context.Context, e EventRecord) error {
	return b.db.WithContext(ctx).Create(&e).Error
}

func (b *postgresBackend) endGame(ctx context.Context, id int64, winner int, at time.Time) error {
	res := b.db.WithContext(ctx).Model(&GameRecord{}).Where("id = ?", id).
		Updates(map[string]any{"winner": winner, "ended_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("game %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (b *postgresBackend) recentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	var out []GameRecord
	err := b.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (b *postgresBackend) events(ctx context.Context, gameID int64) ([]EventRecord, error) {
	var out []EventRecord
	err := b.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id").Find(&out).Error
	return out, err
}

func (b *postgresBackend) close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
