package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"token_scanner/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "data/scanner.db"

// Storage persists settings and favorites. Token state is never stored.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.AppConfig{}, &domain.Favorite{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a setting
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&config).Error
}

// GetConfig loads one setting. A missing key is not an error.
func (s *Storage) GetConfig(key string) (string, bool, error) {
	var config domain.AppConfig
	err := s.db.First(&config, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return config.Value, true, nil
}

// LoadConfigMap loads all settings as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}

// ======================================================================================
// Favorite Operations
// ======================================================================================

// SetFavorite pins or unpins a pair
func (s *Storage) SetFavorite(pairAddress string, chainID int, isFavorite bool) error {
	id := domain.TokenID(pairAddress)
	if !isFavorite {
		return s.db.Where("pair_address = ?", id).Delete(&domain.Favorite{}).Error
	}
	fav := domain.Favorite{PairAddress: id, ChainID: chainID, CreatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
}

// ListFavorites returns every pinned pair, oldest first
func (s *Storage) ListFavorites() ([]domain.Favorite, error) {
	var favs []domain.Favorite
	err := s.db.Order("created_at, pair_address").Find(&favs).Error
	return favs, err
}
