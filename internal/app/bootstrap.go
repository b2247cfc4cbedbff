package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/generator"
	"token_scanner/internal/infra"
	"token_scanner/internal/infra/storage"
	"token_scanner/internal/seed"
	"token_scanner/internal/service"

	"github.com/alitto/pond/v2"
)

// SeedKey is the settings key of the persisted base seed.
const SeedKey = "base_seed"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Icons     *infra.IconRenderer
	Metrics   *infra.Metrics
	Generator *generator.Generator
	View      *service.ScannerService
	Seed      uint32
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (DB, Dir, etc.)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping token scanner...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Resolve the base seed
	b.Seed, err = ResolveSeed(cfg.Scanner.Seed, store, time.Now)
	if err != nil {
		return err
	}
	slog.Info("✅ Seed resolved", slog.Uint64("seed", uint64(b.Seed)))

	// 5. Icon renderer
	icons, err := infra.NewIconRenderer(cfg.Icons.Dir)
	if err != nil {
		return err
	}
	b.Icons = icons

	// 6. Core components
	b.Metrics = infra.NewMetrics()
	b.Generator = generator.New(b.Seed, generator.Config{
		PageSize: cfg.Scanner.PageSize,
		CacheTTL: cfg.Scanner.CacheTTL,
	}, time.Now)
	b.View = service.NewScannerService()

	if err := LoadFavorites(store, b.View); err != nil {
		slog.Warn("Failed to load favorites", slog.Any("error", err))
	}
	return nil
}

// ResolveSeed picks the configured seed, else the persisted one, else a
// fresh seed which is persisted so restarts reproduce the same data.
func ResolveSeed(configured uint32, repo domain.SettingsRepository, now func() time.Time) (uint32, error) {
	if configured != 0 {
		return configured, nil
	}

	stored, ok, err := repo.GetConfig(SeedKey)
	if err != nil {
		return 0, fmt.Errorf("load seed: %w", err)
	}
	if ok {
		v, err := strconv.ParseUint(stored, 10, 32)
		if err == nil && v != 0 {
			return uint32(v), nil
		}
		slog.Warn("Ignoring corrupt persisted seed", slog.String("value", stored))
	}

	ns := now().UnixNano()
	s := seed.Mix(uint32(ns), uint32(ns>>32))
	if s == 0 {
		s = 1
	}
	if err := repo.SaveConfig(SeedKey, strconv.FormatUint(uint64(s), 10)); err != nil {
		return 0, fmt.Errorf("persist seed: %w", err)
	}
	return s, nil
}

// LoadFavorites marks every persisted favorite in the view.
func LoadFavorites(repo domain.FavoriteRepository, view *service.ScannerService) error {
	favs, err := repo.ListFavorites()
	if err != nil {
		return err
	}
	for _, f := range favs {
		view.SetFavorite(f.PairAddress, true)
	}
	return nil
}

// WarmIcons renders the icons of the configured snapshot pages in the
// background, using the same filter the client will request them with.
func (b *Bootstrap) WarmIcons(ctx context.Context, f domain.ScannerFilter, pages []int) error {
	var addresses []string
	for _, page := range pages {
		f.Page = page
		for _, item := range b.Generator.Generate(f, 0).Items {
			addresses = append(addresses, item.Token1Address)
		}
	}
	return RenderIcons(ctx, b.Icons, addresses, b.Config.Icons.Workers)
}

// RenderIcons renders addresses on a bounded worker pool.
func RenderIcons(ctx context.Context, icons *infra.IconRenderer, addresses []string, workers int) error {
	slog.Info("🔄 Rendering icons...", slog.Int("count", len(addresses)))

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, addr := range addresses {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			_, err := icons.RenderIcon(addr)
			return err
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	slog.Info("✨ Icon rendering completed")
	return nil
}

// Close releases bootstrap resources.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Error("Failed to close storage", slog.Any("error", err))
		}
	}
}
