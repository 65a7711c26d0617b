package serve

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	botmaster "github.com/everydev1618/botmaster"
	"github.com/everydev1618/botmaster/llm"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent reads; foreign keys are off by default.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema tables.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS servers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		host        TEXT NOT NULL,
		port        INTEGER NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		gamemode    TEXT NOT NULL DEFAULT '',
		rule        TEXT NOT NULL DEFAULT '',
		language    TEXT NOT NULL DEFAULT '',
		players     INTEGER NOT NULL DEFAULT 0,
		max_players INTEGER NOT NULL DEFAULT 0,
		ping        INTEGER NOT NULL DEFAULT 0,
		last_update DATETIME,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(host, port)
	);

	CREATE TABLE IF NOT EXISTS bots (
		uuid          TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		server_id     INTEGER NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		invulnerable  INTEGER NOT NULL DEFAULT 0,
		system_prompt TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS llm_providers (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		api_key    TEXT NOT NULL DEFAULT '',
		base_url   TEXT NOT NULL DEFAULT '',
		model      TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS llm_sessions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL UNIQUE,
		bot_uuid      TEXT NOT NULL REFERENCES bots(uuid) ON DELETE CASCADE,
		provider_id   INTEGER NOT NULL REFERENCES llm_providers(id) ON DELETE RESTRICT,
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_activity DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bots_server ON bots(server_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_bot ON llm_sessions(bot_uuid);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON llm_sessions(is_active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Servers ---

// AddServer inserts a server, returning the existing row when the
// address is already stored.
func (s *SQLiteStore) AddServer(ctx context.Context, host string, port int) (botmaster.ServerRecord, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO servers (host, port) VALUES (?, ?)
		 ON CONFLICT(host, port) DO NOTHING`,
		host, port,
	)
	if err != nil {
		return botmaster.ServerRecord{}, err
	}
	return s.getServerWhere(ctx, "host = ? AND port = ?", host, port)
}

// GetServer returns one server row by id.
func (s *SQLiteStore) GetServer(ctx context.Context, id int64) (botmaster.ServerRecord, error) {
	return s.getServerWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) getServerWhere(ctx context.Context, where string, args ...any) (botmaster.ServerRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, host, port, name, gamemode, rule, language,
		        players, max_players, ping, last_update, created_at
		 FROM servers WHERE `+where, args...,
	)
	return scanServer(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (botmaster.ServerRecord, error) {
	var rec botmaster.ServerRecord
	var lastUpdate sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.Host, &rec.Port, &rec.Name, &rec.Gamemode, &rec.Rule,
		&rec.Language, &rec.Players, &rec.MaxPlayers, &rec.Ping,
		&lastUpdate, &rec.CreatedAt,
	)
	if err != nil {
		return botmaster.ServerRecord{}, err
	}
	if lastUpdate.Valid {
		rec.LastUpdate = lastUpdate.Time
	}
	return rec, nil
}

// ListServers returns every stored server.
func (s *SQLiteStore) ListServers(ctx context.Context) ([]botmaster.ServerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host, port, name, gamemode, rule, language,
		        players, max_players, ping, last_update, created_at
		 FROM servers ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []botmaster.ServerRecord
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, rec)
	}
	return servers, rows.Err()
}

// DeleteServer removes a server; bots on it cascade away.
func (s *SQLiteStore) DeleteServer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateServerStatus writes back the result of one query pass.
func (s *SQLiteStore) UpdateServerStatus(ctx context.Context, id int64, info botmaster.ServerInfo, rule string, ping time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE servers
		 SET name = ?, gamemode = ?, rule = ?, language = ?,
		     players = ?, max_players = ?, ping = ?, last_update = ?
		 WHERE id = ?`,
		info.Hostname, info.Gamemode, rule, info.Language,
		info.Players, info.MaxPlayers, ping.Milliseconds(), time.Now(),
		id,
	)
	return err
}

// --- Bots ---

// InsertBot persists a bot row.
func (s *SQLiteStore) InsertBot(ctx context.Context, b BotRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bots (uuid, name, server_id, invulnerable, system_prompt)
		 VALUES (?, ?, ?, ?, ?)`,
		b.UUID, b.Name, b.ServerID, b.Invulnerable, b.SystemPrompt,
	)
	return err
}

// DeleteBot removes a bot row; its sessions cascade away.
func (s *SQLiteStore) DeleteBot(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE uuid = ?`, uuid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListBots returns every stored bot.
func (s *SQLiteStore) ListBots(ctx context.Context) ([]BotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, name, server_id, invulnerable, system_prompt, created_at
		 FROM bots ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []BotRecord
	for rows.Next() {
		var b BotRecord
		if err := rows.Scan(&b.UUID, &b.Name, &b.ServerID, &b.Invulnerable, &b.SystemPrompt, &b.CreatedAt); err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

// UpdateBotPrompt replaces a bot's system prompt.
func (s *SQLiteStore) UpdateBotPrompt(ctx context.Context, uuid, prompt string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bots SET system_prompt = ? WHERE uuid = ?`, prompt, uuid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateBotInvulnerable toggles a bot's damage immunity.
func (s *SQLiteStore) UpdateBotInvulnerable(ctx context.Context, uuid string, invulnerable bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bots SET invulnerable = ? WHERE uuid = ?`, invulnerable, uuid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Providers ---

// InsertProvider persists a provider and returns its id.
func (s *SQLiteStore) InsertProvider(ctx context.Context, p ProviderRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_providers (name, api_key, base_url, model)
		 VALUES (?, ?, ?, ?)`,
		p.Name, p.APIKey, p.BaseURL, p.Model,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateProvider replaces a provider's fields.
func (s *SQLiteStore) UpdateProvider(ctx context.Context, p ProviderRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE llm_providers SET name = ?, api_key = ?, base_url = ?, model = ? WHERE id = ?`,
		p.Name, p.APIKey, p.BaseURL, p.Model, p.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteProvider removes a provider. Active sessions block the delete
// with ErrProviderInUse; inactive session history goes with the
// provider.
func (s *SQLiteStore) DeleteProvider(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM llm_sessions WHERE provider_id = ? AND is_active = 1`, id,
	).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrProviderInUse
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM llm_sessions WHERE provider_id = ?`, id,
	); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM llm_providers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// GetProvider returns one provider row.
func (s *SQLiteStore) GetProvider(ctx context.Context, id int64) (ProviderRecord, error) {
	var p ProviderRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key, base_url, model, created_at
		 FROM llm_providers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.APIKey, &p.BaseURL, &p.Model, &p.CreatedAt)
	return p, err
}

// ListProviders returns every provider.
func (s *SQLiteStore) ListProviders(ctx context.Context) ([]ProviderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, api_key, base_url, model, created_at
		 FROM llm_providers ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []ProviderRecord
	for rows.Next() {
		var p ProviderRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.APIKey, &p.BaseURL, &p.Model, &p.CreatedAt); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// ProviderConfig resolves a provider row to request config.
func (s *SQLiteStore) ProviderConfig(ctx context.Context, id int64) (llm.ProviderConfig, error) {
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return llm.ProviderConfig{}, fmt.Errorf("load provider %d: %w", id, err)
	}
	return llm.ProviderConfig{BaseURL: p.BaseURL, APIKey: p.APIKey, Model: p.Model}, nil
}

// --- Sessions ---

// SaveSession persists a new session and deactivates older ones for the
// same bot.
func (s *SQLiteStore) SaveSession(ctx context.Context, sessionID, botUUID string, providerID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE llm_sessions SET is_active = 0 WHERE bot_uuid = ? AND is_active = 1`, botUUID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO llm_sessions (session_id, bot_uuid, provider_id) VALUES (?, ?, ?)`,
		sessionID, botUUID, providerID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// DeactivateSession marks a session inactive.
func (s *SQLiteStore) DeactivateSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE llm_sessions SET is_active = 0 WHERE session_id = ?`, sessionID,
	)
	return err
}

// TouchSession refreshes a session's activity stamp.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE llm_sessions SET last_activity = ? WHERE session_id = ?`, at, sessionID,
	)
	return err
}

// ActiveSessions returns every session still marked active.
func (s *SQLiteStore) ActiveSessions(ctx context.Context) ([]botmaster.StoredSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, bot_uuid, provider_id, last_activity
		 FROM llm_sessions WHERE is_active = 1 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []botmaster.StoredSession
	for rows.Next() {
		var rec botmaster.StoredSession
		if err := rows.Scan(&rec.SessionID, &rec.BotUUID, &rec.ProviderID, &rec.LastActivity); err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// PruneSessions deletes inactive session rows older than the cutoff.
func (s *SQLiteStore) PruneSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM llm_sessions WHERE is_active = 0 AND last_activity < ?`,
		time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
