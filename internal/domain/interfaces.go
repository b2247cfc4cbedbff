package domain

import (
	"context"
)

// StreamWorker defines the interface for websocket stream consumers
type StreamWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// SettingsRepository persists key-value settings such as the base seed
type SettingsRepository interface {
	SaveConfig(key, value string) error
	GetConfig(key string) (string, bool, error)
}

// FavoriteRepository persists the user's pinned pairs
type FavoriteRepository interface {
	SetFavorite(pairAddress string, chainID int, isFavorite bool) error
	ListFavorites() ([]Favorite, error)
}
