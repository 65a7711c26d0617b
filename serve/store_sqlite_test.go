package serve

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	botmaster "github.com/everydev1618/botmaster"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestStoreAddServerDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddServer(ctx, "127.0.0.1", 7777)
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.AddServer(ctx, "127.0.0.1", 7777)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("duplicate address created a second row: %d vs %d", first.ID, second.ID)
	}

	other, err := store.AddServer(ctx, "127.0.0.1", 7778)
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Error("different port collapsed into the same row")
	}

	servers, err := store.ListServers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 2 {
		t.Errorf("ListServers = %d rows, want 2", len(servers))
	}
}

func TestStoreUpdateServerStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv, err := store.AddServer(ctx, "127.0.0.1", 7777)
	if err != nil {
		t.Fatal(err)
	}

	info := botmaster.ServerInfo{
		Players: 8, MaxPlayers: 100,
		Hostname: "My Server", Gamemode: "freeroam", Language: "English",
	}
	if err := store.UpdateServerStatus(ctx, srv.ID, info, "weather=10", 42*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetServer(ctx, srv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "My Server" || got.Players != 8 || got.Ping != 42 || got.Rule != "weather=10" {
		t.Errorf("updated record = %+v", got)
	}
	if got.LastUpdate.IsZero() {
		t.Error("last_update not stamped")
	}
}

func TestStoreDeleteServerCascadesBots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv, err := store.AddServer(ctx, "127.0.0.1", 7777)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBot(ctx, BotRecord{UUID: "u1", Name: "Bot", ServerID: srv.ID}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteServer(ctx, srv.ID); err != nil {
		t.Fatal(err)
	}
	bots, err := store.ListBots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bots) != 0 {
		t.Errorf("bots survived server deletion: %+v", bots)
	}

	if err := store.DeleteServer(ctx, srv.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete err = %v, want ErrNoRows", err)
	}
}

func TestStoreBotCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv, err := store.AddServer(ctx, "127.0.0.1", 7777)
	if err != nil {
		t.Fatal(err)
	}

	rec := BotRecord{UUID: "u1", Name: "Bot", ServerID: srv.ID, Invulnerable: true, SystemPrompt: "p"}
	if err := store.InsertBot(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// A bot row needs an existing server.
	if err := store.InsertBot(ctx, BotRecord{UUID: "u2", Name: "Orphan", ServerID: 999}); err == nil {
		t.Error("bot inserted with a missing server")
	}

	if err := store.UpdateBotPrompt(ctx, "u1", "new prompt"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateBotInvulnerable(ctx, "u1", false); err != nil {
		t.Fatal(err)
	}

	bots, err := store.ListBots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bots) != 1 {
		t.Fatalf("ListBots = %d rows", len(bots))
	}
	if bots[0].SystemPrompt != "new prompt" || bots[0].Invulnerable {
		t.Errorf("bot row = %+v", bots[0])
	}

	if err := store.DeleteBot(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteBot(ctx, "u1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete err = %v, want ErrNoRows", err)
	}
	if err := store.UpdateBotPrompt(ctx, "u1", "x"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("update of missing bot err = %v, want ErrNoRows", err)
	}
}

func TestStoreProviderCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertProvider(ctx, ProviderRecord{Name: "openai", APIKey: "sk-1", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}

	// Provider names are unique.
	if _, err := store.InsertProvider(ctx, ProviderRecord{Name: "openai"}); err == nil {
		t.Error("duplicate provider name inserted")
	}

	cfg, err := store.ProviderConfig(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "gpt-4o" || cfg.APIKey != "sk-1" {
		t.Errorf("config = %+v", cfg)
	}

	p, err := store.GetProvider(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	p.Model = "gpt-4o-mini"
	if err := store.UpdateProvider(ctx, p); err != nil {
		t.Fatal(err)
	}
	updated, _ := store.GetProvider(ctx, id)
	if updated.Model != "gpt-4o-mini" {
		t.Errorf("model = %q after update", updated.Model)
	}

	if err := store.DeleteProvider(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProvider(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete err = %v, want ErrNoRows", err)
	}
}

func TestStoreProviderDeleteRestrictedBySession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv, _ := store.AddServer(ctx, "127.0.0.1", 7777)
	if err := store.InsertBot(ctx, BotRecord{UUID: "u1", Name: "Bot", ServerID: srv.ID}); err != nil {
		t.Fatal(err)
	}
	pid, err := store.InsertProvider(ctx, ProviderRecord{Name: "p", Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSession(ctx, "s1", "u1", pid); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteProvider(ctx, pid); !errors.Is(err, ErrProviderInUse) {
		t.Errorf("delete with an active session err = %v, want ErrProviderInUse", err)
	}

	// Inactive session history does not pin the provider.
	if err := store.DeactivateSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProvider(ctx, pid); err != nil {
		t.Errorf("delete after deactivation err = %v", err)
	}
}

func TestStoreSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv, _ := store.AddServer(ctx, "127.0.0.1", 7777)
	if err := store.InsertBot(ctx, BotRecord{UUID: "u1", Name: "Bot", ServerID: srv.ID}); err != nil {
		t.Fatal(err)
	}
	pid, err := store.InsertProvider(ctx, ProviderRecord{Name: "p", Model: "m"})
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SaveSession(ctx, "s1", "u1", pid); err != nil {
		t.Fatal(err)
	}
	// A new session for the same bot deactivates the old one.
	if err := store.SaveSession(ctx, "s2", "u1", pid); err != nil {
		t.Fatal(err)
	}

	active, err := store.ActiveSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].SessionID != "s2" {
		t.Fatalf("active sessions = %+v", active)
	}

	stamp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := store.TouchSession(ctx, "s2", stamp); err != nil {
		t.Fatal(err)
	}
	active, _ = store.ActiveSessions(ctx)
	if !active[0].LastActivity.Equal(stamp) {
		t.Errorf("last_activity = %v, want %v", active[0].LastActivity, stamp)
	}

	if err := store.DeactivateSession(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	active, _ = store.ActiveSessions(ctx)
	if len(active) != 0 {
		t.Errorf("active sessions after deactivate = %+v", active)
	}
}

func TestStorePruneSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv, _ := store.AddServer(ctx, "127.0.0.1", 7777)
	if err := store.InsertBot(ctx, BotRecord{UUID: "u1", Name: "Bot", ServerID: srv.ID}); err != nil {
		t.Fatal(err)
	}
	pid, err := store.InsertProvider(ctx, ProviderRecord{Name: "p", Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSession(ctx, "old", "u1", pid); err != nil {
		t.Fatal(err)
	}
	if err := store.DeactivateSession(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	if err := store.TouchSession(ctx, "old", time.Now().Add(-30*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSession(ctx, "live", "u1", pid); err != nil {
		t.Fatal(err)
	}

	pruned, err := store.PruneSessions(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d rows, want 1", pruned)
	}
	active, _ := store.ActiveSessions(ctx)
	if len(active) != 1 || active[0].SessionID != "live" {
		t.Errorf("active sessions after prune = %+v", active)
	}
}
