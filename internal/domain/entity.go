package domain

import (
	"time"
)

// AppConfig is a persisted key-value setting (e.g. the base seed).
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Favorite marks a pair the user pinned to the top of the scanner.
type Favorite struct {
	PairAddress string    `gorm:"primaryKey" json:"pair_address"` // canonical id
	ChainID     int       `json:"chain_id"`
	CreatedAt   time.Time `json:"created_at"`
}
