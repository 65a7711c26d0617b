package botmaster

import (
	"context"
	"log/slog"
	"time"
)

// ServerRecord is a stored game server row.
type ServerRecord struct {
	ID         int64
	Host       string
	Port       int
	Name       string
	Gamemode   string
	Rule       string
	Language   string
	Players    int
	MaxPlayers int
	Ping       int
	LastUpdate time.Time
	CreatedAt  time.Time
}

// ServerStore is the persistence surface the querier refreshes.
type ServerStore interface {
	ListServers(ctx context.Context) ([]ServerRecord, error)
	UpdateServerStatus(ctx context.Context, id int64, info ServerInfo, rule string, ping time.Duration) error
}

// Querier periodically polls every stored server and writes the fresh
// status back.
type Querier struct {
	store    ServerStore
	client   *QueryClient
	interval time.Duration
}

// NewQuerier builds a querier refreshing on the given interval.
func NewQuerier(store ServerStore, client *QueryClient, interval time.Duration) *Querier {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if client == nil {
		client = NewQueryClient(5*time.Second, nil)
	}
	return &Querier{store: store, client: client, interval: interval}
}

// Run refreshes all servers until ctx is canceled. The first pass runs
// immediately.
func (q *Querier) Run(ctx context.Context) {
	q.RefreshAll(ctx)
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.RefreshAll(ctx)
		}
	}
}

// RefreshAll queries every stored server once. Unreachable servers are
// logged and skipped; the pass continues.
func (q *Querier) RefreshAll(ctx context.Context) {
	servers, err := q.store.ListServers(ctx)
	if err != nil {
		slog.Error("list servers for query", "error", err)
		return
	}
	for _, srv := range servers {
		if ctx.Err() != nil {
			return
		}
		q.refresh(ctx, srv)
	}
}

func (q *Querier) refresh(ctx context.Context, srv ServerRecord) {
	info, ping, err := q.client.Info(srv.Host, srv.Port)
	if err != nil {
		slog.Warn("server query failed", "host", srv.Host, "port", srv.Port, "error", err)
		return
	}
	rule := srv.Rule
	if rules, err := q.client.Rules(srv.Host, srv.Port); err == nil {
		rule = FormatRules(rules)
	}
	if err := q.store.UpdateServerStatus(ctx, srv.ID, info, rule, ping); err != nil {
		slog.Error("persist server status", "host", srv.Host, "port", srv.Port, "error", err)
	}
}
