package serve

import (
	"context"
	"errors"
	"time"

	botmaster "github.com/everydev1618/botmaster"
	"github.com/everydev1618/botmaster/llm"
)

// ErrProviderInUse blocks deleting a provider that still drives active
// sessions.
var ErrProviderInUse = errors.New("provider is in use by active sessions")

// BotRecord is a persisted bot row.
type BotRecord struct {
	UUID         string
	Name         string
	ServerID     int64
	Invulnerable bool
	SystemPrompt string
	CreatedAt    time.Time
}

// ProviderRecord is a persisted LLM provider row.
type ProviderRecord struct {
	ID        int64
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	CreatedAt time.Time
}

// Store is the persistence surface of the control plane. SQLiteStore is
// the only implementation; the interface exists so handlers and the
// querier can be tested against fakes.
type Store interface {
	botmaster.ServerStore
	botmaster.SessionStore

	AddServer(ctx context.Context, host string, port int) (botmaster.ServerRecord, error)
	GetServer(ctx context.Context, id int64) (botmaster.ServerRecord, error)
	DeleteServer(ctx context.Context, id int64) error

	InsertBot(ctx context.Context, b BotRecord) error
	DeleteBot(ctx context.Context, uuid string) error
	ListBots(ctx context.Context) ([]BotRecord, error)
	UpdateBotPrompt(ctx context.Context, uuid, prompt string) error
	UpdateBotInvulnerable(ctx context.Context, uuid string, invulnerable bool) error

	InsertProvider(ctx context.Context, p ProviderRecord) (int64, error)
	UpdateProvider(ctx context.Context, p ProviderRecord) error
	DeleteProvider(ctx context.Context, id int64) error
	GetProvider(ctx context.Context, id int64) (ProviderRecord, error)
	ListProviders(ctx context.Context) ([]ProviderRecord, error)
	ProviderConfig(ctx context.Context, id int64) (llm.ProviderConfig, error)

	PruneSessions(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}
