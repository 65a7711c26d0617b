package botmaster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/everydev1618/botmaster/llm"
)

const (
	// sessionTimeout deactivates sessions with no model activity.
	sessionTimeout = 30 * time.Minute
	// sessionWorkerInterval paces the background session sweep.
	sessionWorkerInterval = 5 * time.Second
	// updateCooldown is the minimum gap between state updates pushed to
	// the model for one session.
	updateCooldown = 10 * time.Second
)

// Turn result types reported by a completed conversation turn.
const (
	ResultFunctionCalls = "function_calls_executed"
	ResultMessage       = "message"
)

// TurnResult summarizes one completed conversation turn.
type TurnResult struct {
	Response        string
	ResultType      string
	FunctionResults []string
}

// ChatCompleter is the slice of the llm client the session manager
// needs.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, cfg llm.ProviderConfig, messages []llm.Message, tools []llm.ToolSchema) (*llm.Response, error)
}

// ProviderLookup resolves a stored provider row to request config.
type ProviderLookup interface {
	ProviderConfig(ctx context.Context, id int64) (llm.ProviderConfig, error)
}

// StoredSession is a persisted session row used for restore.
type StoredSession struct {
	SessionID    string
	BotUUID      string
	ProviderID   int64
	LastActivity time.Time
}

// SessionStore persists session lifecycle so sessions survive restarts.
type SessionStore interface {
	SaveSession(ctx context.Context, sessionID, botUUID string, providerID int64) error
	DeactivateSession(ctx context.Context, sessionID string) error
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	ActiveSessions(ctx context.Context) ([]StoredSession, error)
}

// SessionManagerDeps are the session manager collaborators.
type SessionManagerDeps struct {
	Fleet      *Fleet
	Client     ChatCompleter
	Providers  ProviderLookup
	Dispatcher *Dispatcher
	Store      SessionStore
	BasePrompt string
	Clock      func() time.Time
}

// SessionManager owns every live LLM session: creation, the periodic
// state-update worker, the tool-call loop, and expiry.
type SessionManager struct {
	fleet      *Fleet
	client     ChatCompleter
	providers  ProviderLookup
	dispatcher *Dispatcher
	store      SessionStore
	basePrompt string
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	byBot    map[string]string
}

// NewSessionManager builds a manager over the given fleet.
func NewSessionManager(deps SessionManagerDeps) *SessionManager {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &SessionManager{
		fleet:      deps.Fleet,
		client:     deps.Client,
		providers:  deps.Providers,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		basePrompt: deps.BasePrompt,
		now:        deps.Clock,
		sessions:   make(map[string]*Session),
		byBot:      make(map[string]string),
	}
}

// EnableLLM opens a session driving the given bot with the given
// provider. An existing session for the bot is closed first.
func (m *SessionManager) EnableLLM(ctx context.Context, botUUID string, providerID int64) (string, error) {
	if _, ok := m.fleet.Get(botUUID); !ok {
		return "", fmt.Errorf("unknown bot %s", botUUID)
	}
	if _, err := m.providers.ProviderConfig(ctx, providerID); err != nil {
		return "", fmt.Errorf("provider %d: %w", providerID, err)
	}

	m.DisableLLM(ctx, botUUID)

	s := newSession(botUUID, providerID, m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.byBot[botUUID] = s.ID
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveSession(ctx, s.ID, botUUID, providerID); err != nil {
			slog.Error("persist session", "session", s.ID, "error", err)
		}
	}
	slog.Info("llm session opened", "session", s.ID, "bot", botUUID, "provider", providerID)
	return s.ID, nil
}

// DisableLLM closes the bot's session, if any.
func (m *SessionManager) DisableLLM(ctx context.Context, botUUID string) bool {
	m.mu.Lock()
	sid, ok := m.byBot[botUUID]
	if ok {
		m.sessions[sid].active = false
		delete(m.sessions, sid)
		delete(m.byBot, botUUID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if m.store != nil {
		if err := m.store.DeactivateSession(ctx, sid); err != nil {
			slog.Error("deactivate session", "session", sid, "error", err)
		}
	}
	slog.Info("llm session closed", "session", sid, "bot", botUUID)
	return true
}

// SessionForBot returns the bot's live session id.
func (m *SessionManager) SessionForBot(botUUID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sid, ok := m.byBot[botUUID]
	return sid, ok
}

// Get returns the session with the given id.
func (m *SessionManager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Restore rebuilds sessions persisted by a previous run. Sessions whose
// bot no longer exists are deactivated.
func (m *SessionManager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	stored, err := m.store.ActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, rec := range stored {
		if _, ok := m.fleet.Get(rec.BotUUID); !ok {
			if err := m.store.DeactivateSession(ctx, rec.SessionID); err != nil {
				slog.Error("deactivate orphan session", "session", rec.SessionID, "error", err)
			}
			continue
		}
		s := &Session{
			ID:           rec.SessionID,
			BotUUID:      rec.BotUUID,
			ProviderID:   rec.ProviderID,
			CreatedAt:    rec.LastActivity,
			lastActivity: rec.LastActivity,
			active:       true,
		}
		m.mu.Lock()
		m.sessions[s.ID] = s
		m.byBot[s.BotUUID] = s.ID
		m.mu.Unlock()
		slog.Info("llm session restored", "session", s.ID, "bot", s.BotUUID)
	}
	return nil
}

// Run sweeps sessions until ctx is canceled.
func (m *SessionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(sessionWorkerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: expire idle sessions and push fresh state to
// every session whose update cooldown has elapsed.
func (m *SessionManager) Sweep(ctx context.Context) {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()

	now := m.now()
	for _, s := range snapshot {
		bot, ok := m.fleet.Get(s.BotUUID)
		if !ok {
			m.DisableLLM(ctx, s.BotUUID)
			continue
		}
		m.mu.Lock()
		expired := now.Sub(s.lastActivity) > sessionTimeout
		busy := s.waitingLLM || now.Sub(s.lastUpdate) < updateCooldown
		if !expired && !busy {
			s.waitingLLM = true
			s.lastUpdate = now
		}
		m.mu.Unlock()

		if expired {
			slog.Info("llm session timed out", "session", s.ID, "bot", s.BotUUID)
			m.DisableLLM(ctx, s.BotUUID)
			continue
		}
		if busy {
			continue
		}

		go func(s *Session, bot *Bot) {
			defer func() {
				m.mu.Lock()
				s.waitingLLM = false
				m.mu.Unlock()
			}()
			if _, err := m.RunTurn(ctx, s, bot); err != nil {
				slog.Error("llm turn failed", "session", s.ID, "bot", bot.Name, "error", err)
			}
		}(s, bot)
	}
}

// RunTurn pushes the bot's current state to the model and resolves the
// resulting tool-call loop.
func (m *SessionManager) RunTurn(ctx context.Context, s *Session, bot *Bot) (TurnResult, error) {
	cfg, err := m.providers.ProviderConfig(ctx, s.ProviderID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("provider %d: %w", s.ProviderID, err)
	}

	state, err := json.Marshal(map[string]any{
		"type":  "llm_update",
		"state": bot.GenerateState(),
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("marshal state: %w", err)
	}
	update := llm.Message{Role: llm.RoleUser, Content: string(state)}

	system := llm.Message{Role: llm.RoleSystem, Content: m.systemPrompt(s, bot)}
	s.append(update)

	messages := append([]llm.Message{system}, s.History()...)
	resp, err := m.client.ChatCompletion(ctx, cfg, messages, m.dispatcher.Schemas())
	if err != nil {
		return TurnResult{}, err
	}

	// One model round per turn. Tool outcomes land in history as tool
	// messages; the model sees them on the next state push.
	result := TurnResult{Response: resp.Content, ResultType: ResultMessage}
	if resp.HasToolCalls() {
		s.append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		result.ResultType = ResultFunctionCalls
		for _, r := range m.dispatcher.Execute(bot, resp.ToolCalls) {
			result.FunctionResults = append(result.FunctionResults, r.Content)
			s.append(llm.Message{
				Role:       llm.RoleTool,
				Content:    r.Content,
				ToolCallID: r.CallID,
				Name:       r.Name,
			})
		}
	} else if resp.Content != "" {
		s.append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
	}

	now := m.now()
	m.mu.Lock()
	s.lastActivity = now
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.TouchSession(ctx, s.ID, now); err != nil {
			slog.Error("touch session", "session", s.ID, "error", err)
		}
	}
	return result, nil
}

// systemPrompt assembles the base prompt and the bot's own prompt,
// expanding the placeholder variables.
func (m *SessionManager) systemPrompt(s *Session, bot *Bot) string {
	prompt := m.basePrompt
	if botPrompt := bot.SystemPrompt(); botPrompt != "" {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += botPrompt
	}
	r := strings.NewReplacer(
		"[NAME]", bot.Name,
		"[SESSION_ID]", s.ID,
		"[PASSWORD]", bot.Password(),
	)
	return r.Replace(prompt)
}
