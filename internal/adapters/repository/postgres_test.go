package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
)

func TestProgressSQL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := model.PlayerProgress{PlayerID: "p1", XP: 520, ClickCount: 40, RankIndex: 1, Version: 3}

	query, args, err := updateProgressSQL(p, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"UPDATE player_progress SET", "version = version + 1", "player_id = $", "version = $", "RETURNING version"} {
		if !strings.Contains(query, want) {
			t.Errorf("update query %q missing %q", query, want)
		}
	}
	if len(args) != 6 {
		t.Errorf("expected 6 args, got %d: %v", len(args), args)
	}

	query, args, err = insertProgressSQL(p, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "ON CONFLICT (player_id) DO NOTHING RETURNING version") {
		t.Errorf("insert query %q should skip existing rows", query)
	}
	if len(args) != 6 {
		t.Errorf("expected 6 args, got %d", len(args))
	}

	query, _, err = selectProgressSQL("p1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(query, "FOR UPDATE") {
		t.Errorf("select query %q should lock", query)
	}
}

func TestInventorySQL(t *testing.T) {
	query, args, err := listInventorySQL("p1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "ORDER BY collected_at DESC, id DESC LIMIT 50") {
		t.Errorf("list query %q should order newest first", query)
	}
	if len(args) != 1 || args[0] != "p1" {
		t.Errorf("unexpected args %v", args)
	}

	query, args, err = selectEntriesForUpdateSQL("p1", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "id IN ($1,$2,$3)") || !strings.HasSuffix(query, "FOR UPDATE") {
		t.Errorf("unexpected craft lock query %q", query)
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %d", len(args))
	}

	query, _, err = deleteEntriesSQL("p1", []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(query, "DELETE FROM inventory_entries") {
		t.Errorf("unexpected delete query %q", query)
	}

	query, _, err = topProgressSQL(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "ORDER BY xp DESC, player_id ASC LIMIT 10") {
		t.Errorf("unexpected leaderboard query %q", query)
	}
}

func TestSchemaStatements(t *testing.T) {
	var n int
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) != "" {
			n++
		}
	}
	if n != 4 {
		t.Errorf("expected 4 schema statements, got %d", n)
	}
}

// TestPostgresStoreIntegration runs against a real database when
// TAPFORGE_TEST_POSTGRES_DSN is set.
func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TAPFORGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TAPFORGE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	table := rank.Default()
	s, err := NewPostgresStore(ctx, dsn, table, crafting.NewBook(table.Catalog()))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer s.Close()

	player := "it-" + uuid.NewString()

	if _, err := s.GetProgress(ctx, player); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	v, err := s.UpsertProgress(ctx, model.PlayerProgress{PlayerID: player, XP: 450, ClickCount: 35})
	if err != nil || v != 1 {
		t.Fatalf("first upsert: v=%d err=%v", v, err)
	}
	if _, err := s.UpsertProgress(ctx, model.PlayerProgress{PlayerID: player, XP: 1}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := s.InsertDrop(ctx, model.Drop{
			PlayerID: player, LootName: "Tiny Shell", IconRef: "loot/tiny-shell.png",
			Rarity: loot.Common, SourceRank: "Shrimp", CollectedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("insert drop: %v", err)
		}
		ids = append(ids, e.ID)
	}

	res, err := s.CraftItems(ctx, player, ids)
	if err != nil {
		t.Fatalf("craft: %v", err)
	}
	if res.Result.Rarity != loot.Uncommon || res.Progress.XP != 550 || res.Progress.RankIndex != 1 {
		t.Errorf("unexpected craft result %+v", res)
	}

	list, err := s.ListInventory(ctx, player, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != res.Result.ID {
		t.Errorf("unexpected inventory after craft: %+v", list)
	}

	if _, err := s.CraftItems(ctx, player, ids); !errors.Is(err, crafting.ErrNotOwned) {
		t.Errorf("expected ErrNotOwned on replay, got %v", err)
	}

	p, err := s.IncrementXP(ctx, player, 1000)
	if err != nil || p.XP != 1550 || p.RankIndex != 2 {
		t.Errorf("increment: %+v err=%v", p, err)
	}
}
