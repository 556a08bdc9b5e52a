package gamelog

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type SeedRating struct {
	PlayerID  string `gorm:"primaryKey"`
	Mean      float64
	UpdatedAt time.Time
}

func (SeedRating) TableName() string { return "seed_ratings" }

// Seeds persists seed ratings through gorm.
type Seeds struct {
	db *gorm.DB
}

func OpenSeeds(dsn string) (*Seeds, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return &Seeds{db: db}, nil
}

func NewSeeds(db *gorm.DB) *Seeds {
	return &Seeds{db: db}
}

func (s *Seeds) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&SeedRating{})
}

func (s *Seeds) SetSeed(ctx context.Context, playerID string, mean float64) error {
	row := SeedRating{PlayerID: playerID, Mean: mean, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"mean", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *Seeds) Seeds(ctx context.Context) (map[string]float64, error) {
	var rows []SeedRating
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.PlayerID] = r.Mean
	}
	return out, nil
}

func (s *Seeds) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
