package botmaster

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/everydev1618/botmaster/llm"
)

// maxSessionHistory bounds the retained conversation, system prompt
// excluded.
const maxSessionHistory = 20

// Session is one live LLM conversation bound to a bot.
type Session struct {
	ID         string
	BotUUID    string
	ProviderID int64
	CreatedAt  time.Time

	history      []llm.Message
	lastActivity time.Time
	lastUpdate   time.Time
	waitingLLM   bool
	active       bool
}

// newSessionID generates a 16-hex-character session identifier.
func newSessionID() string {
	var buf [8]byte
	rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func newSession(botUUID string, providerID int64, now time.Time) *Session {
	return &Session{
		ID:           newSessionID(),
		BotUUID:      botUUID,
		ProviderID:   providerID,
		CreatedAt:    now,
		lastActivity: now,
		active:       true,
	}
}

// append records messages and trims the history to the retention bound.
func (s *Session) append(msgs ...llm.Message) {
	s.history = append(s.history, msgs...)
	if n := len(s.history); n > maxSessionHistory {
		s.history = append(s.history[:0], s.history[n-maxSessionHistory:]...)
	}
}

// History returns a copy of the retained conversation.
func (s *Session) History() []llm.Message {
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Active reports whether the session still drives its bot.
func (s *Session) Active() bool {
	return s.active
}
