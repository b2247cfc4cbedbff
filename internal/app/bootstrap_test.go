package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/engine"
	"token_scanner/internal/generator"
	"token_scanner/internal/infra"
	"token_scanner/internal/infra/storage"
	"token_scanner/internal/service"
	"token_scanner/internal/wire"
)

func newStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveSeed(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	t.Run("configured wins", func(t *testing.T) {
		s := newStore(t)
		got, err := ResolveSeed(42, s, now)
		if err != nil || got != 42 {
			t.Fatalf("Expected 42, got %d (%v)", got, err)
		}
		if _, ok, _ := s.GetConfig(SeedKey); ok {
			t.Error("Configured seed should not be persisted")
		}
	})

	t.Run("first run persists", func(t *testing.T) {
		s := newStore(t)
		first, err := ResolveSeed(0, s, now)
		if err != nil || first == 0 {
			t.Fatalf("Expected a generated seed, got %d (%v)", first, err)
		}
		later := func() time.Time { return now().Add(time.Hour) }
		second, err := ResolveSeed(0, s, later)
		if err != nil {
			t.Fatal(err)
		}
		if second != first {
			t.Errorf("Expected persisted seed %d, got %d", first, second)
		}
	})

	t.Run("corrupt value replaced", func(t *testing.T) {
		s := newStore(t)
		s.SaveConfig(SeedKey, "garbage")
		got, err := ResolveSeed(0, s, now)
		if err != nil || got == 0 {
			t.Fatalf("Expected a fresh seed, got %d (%v)", got, err)
		}
		stored, _, _ := s.GetConfig(SeedKey)
		if stored == "garbage" {
			t.Error("Corrupt seed should be overwritten")
		}
	})
}

func TestLoadFavorites(t *testing.T) {
	s := newStore(t)
	s.SetFavorite("0xPAIR1", 1, true)

	view := service.NewScannerService()
	st := engine.NewReducer(engine.ReducerConfig{}, nil).Reduce(engine.NewState(), wire.SnapshotCommand{
		Page: 1,
		Entries: []wire.SnapshotEntry{{Token: domain.Token{
			ID: "0xpair1", PairAddress: "0xPAIR1", TokenAddress: "0xt", Name: "One", Symbol: "ONE",
		}}},
	})
	view.Apply(st)

	if err := LoadFavorites(s, view); err != nil {
		t.Fatalf("LoadFavorites failed: %v", err)
	}
	v, ok := view.GetData("0xpair1")
	if !ok || !v.IsFavorite {
		t.Error("Expected persisted favorite to be marked")
	}
}

func TestRenderIcons(t *testing.T) {
	dir := t.TempDir()
	icons, err := infra.NewIconRenderer(dir)
	if err != nil {
		t.Fatal(err)
	}

	addrs := []string{"0xaaa", "0xbbb", "0xccc", "0xaaa"}
	if err := RenderIcons(context.Background(), icons, addrs, 2); err != nil {
		t.Fatalf("RenderIcons failed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("Expected 3 icons, got %d", len(entries))
	}

	if err := RenderIcons(context.Background(), icons, []string{"///"}, 1); err == nil {
		t.Error("Expected error for an invalid address")
	}
}

func TestWarmIcons(t *testing.T) {
	dir := t.TempDir()
	icons, err := infra.NewIconRenderer(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &infra.Config{}
	cfg.Icons.Workers = 2
	b := &Bootstrap{
		Config:    cfg,
		Icons:     icons,
		Generator: generator.New(42, generator.Config{PageSize: 5}, nil),
	}

	f := domain.ScannerFilter{Chain: domain.ChainSOL}
	if err := b.WarmIcons(context.Background(), f, []int{3}); err != nil {
		t.Fatalf("WarmIcons failed: %v", err)
	}

	f.Page = 3
	items := b.Generator.Generate(f, 0).Items
	for _, item := range items {
		if _, err := os.Stat(icons.GetIconPath(item.Token1Address)); err != nil {
			t.Errorf("Expected icon for %s: %v", item.Token1Address, err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != len(items) {
		t.Errorf("Expected %d icons for page 3 only, got %d", len(items), len(entries))
	}
}
