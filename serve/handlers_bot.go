package serve

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	botmaster "github.com/everydev1618/botmaster"
)

func (s *Server) botToResponse(rec BotRecord) BotResponse {
	resp := BotResponse{
		UUID:         rec.UUID,
		Name:         rec.Name,
		ServerID:     rec.ServerID,
		Invulnerable: rec.Invulnerable,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
	if b, ok := s.deps.Fleet.Get(rec.UUID); ok {
		resp.Status = b.Status().String()
		resp.Health = b.Health()
		resp.Server = b.Addr().String()
	}
	if sid, ok := s.deps.Sessions.SessionForBot(rec.UUID); ok {
		resp.LLMEnabled = true
		resp.SessionID = sid
	}
	return resp
}

func (s *Server) handleBotList(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.ListBots(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	resp := make([]BotResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, s.botToResponse(rec))
	}
	writeSuccess(w, "ok", resp)
}

// spawnBot builds the runtime bot for a stored record and registers it
// with the fleet.
func (s *Server) spawnBot(rec BotRecord, srv botmaster.ServerRecord) *botmaster.Bot {
	b := botmaster.NewBot(rec.Name, botmaster.BotDeps{
		UUID:      rec.UUID,
		Transport: s.deps.NewTransport(),
		World:     s.deps.World,
		Raycast:   s.deps.Raycast,
		Decoder:   s.deps.Decoder,
		Names:     s.deps.Names,
	})
	b.SetServer(srv.Host, srv.Port)
	b.SetInvulnerable(rec.Invulnerable)
	b.SetSystemPrompt(rec.SystemPrompt)
	s.deps.Fleet.Add(b)
	return b
}

func (s *Server) handleBotCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		ServerID      int64  `json:"server_id"`
		Count         int    `json:"count"`
		Invulnerable  bool   `json:"invulnerable"`
		SystemPrompt  string `json:"system_prompt"`
		Password      string `json:"password"`
		LLMProviderID int64  `json:"llm_provider_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	srv, err := s.deps.Store.GetServer(r.Context(), req.ServerID)
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, fmt.Sprintf("server %d not found", req.ServerID))
		return
	} else if err != nil {
		internalError(w, err)
		return
	}
	if req.LLMProviderID != 0 {
		if _, err := s.deps.Store.GetProvider(r.Context(), req.LLMProviderID); errors.Is(err, sql.ErrNoRows) {
			notFound(w, fmt.Sprintf("llm provider %d not found", req.LLMProviderID))
			return
		} else if err != nil {
			internalError(w, err)
			return
		}
	}

	created := make([]BotResponse, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		name := req.Name
		if req.Count > 1 {
			name = fmt.Sprintf("%s_%d", req.Name, i+1)
		}
		rec := BotRecord{
			Name:         name,
			ServerID:     srv.ID,
			Invulnerable: req.Invulnerable,
			SystemPrompt: req.SystemPrompt,
			CreatedAt:    time.Now(),
		}
		b := s.spawnBot(rec, srv)
		if req.Password != "" {
			b.SetPassword(req.Password)
		}
		rec.UUID = b.UUID
		if err := s.deps.Store.InsertBot(r.Context(), rec); err != nil {
			s.deps.Fleet.Remove(b.UUID)
			internalError(w, err)
			return
		}
		if req.LLMProviderID != 0 {
			if _, err := s.deps.Sessions.EnableLLM(r.Context(), b.UUID, req.LLMProviderID); err != nil {
				slog.Warn("enable llm for new bot", "bot", b.UUID, "error", err)
			}
		}
		created = append(created, s.botToResponse(rec))
	}
	writeSuccess(w, fmt.Sprintf("created %d bot(s)", len(created)), created)
}

func (s *Server) handleBotDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if err := decodeBody(r, &req); err != nil || req.UUID == "" {
		badRequest(w, "uuid is required")
		return
	}

	s.deps.Sessions.DisableLLM(r.Context(), req.UUID)
	if b, ok := s.deps.Fleet.Remove(req.UUID); ok {
		b.Disconnect()
	}
	if err := s.deps.Store.DeleteBot(r.Context(), req.UUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			notFound(w, "bot not found")
			return
		}
		internalError(w, err)
		return
	}
	writeSuccess(w, "bot deleted", nil)
}

func (s *Server) handleBotSetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID     string `json:"uuid"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil || req.UUID == "" {
		badRequest(w, "uuid is required")
		return
	}
	b, ok := s.deps.Fleet.Get(req.UUID)
	if !ok {
		notFound(w, "bot not found")
		return
	}
	b.SetPassword(req.Password)
	writeSuccess(w, "password updated", nil)
}

func (s *Server) handleBotReconnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if err := decodeBody(r, &req); err != nil || req.UUID == "" {
		badRequest(w, "uuid is required")
		return
	}
	b, ok := s.deps.Fleet.Get(req.UUID)
	if !ok {
		notFound(w, "bot not found")
		return
	}
	// Dropping the connection puts the bot back into the admission queue.
	b.Disconnect()
	writeSuccess(w, "bot queued for reconnect", nil)
}

func (s *Server) handleBotEnableLLM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID       string `json:"uuid"`
		ProviderID int64  `json:"provider_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.UUID == "" {
		badRequest(w, "uuid and provider_id are required")
		return
	}
	sessionID, err := s.deps.Sessions.EnableLLM(r.Context(), req.UUID, req.ProviderID)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeSuccess(w, "llm enabled", map[string]string{"session_id": sessionID})
}

func (s *Server) handleBotDisableLLM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if err := decodeBody(r, &req); err != nil || req.UUID == "" {
		badRequest(w, "uuid is required")
		return
	}
	if !s.deps.Sessions.DisableLLM(r.Context(), req.UUID) {
		notFound(w, "no active session for bot")
		return
	}
	writeSuccess(w, "llm disabled", nil)
}

func (s *Server) handleBotUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID         string `json:"uuid"`
		SystemPrompt string `json:"system_prompt"`
	}
	if err := decodeBody(r, &req); err != nil || req.UUID == "" {
		badRequest(w, "uuid is required")
		return
	}
	if err := s.deps.Store.UpdateBotPrompt(r.Context(), req.UUID, req.SystemPrompt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			notFound(w, "bot not found")
			return
		}
		internalError(w, err)
		return
	}
	if b, ok := s.deps.Fleet.Get(req.UUID); ok {
		b.SetSystemPrompt(req.SystemPrompt)
	}
	writeSuccess(w, "prompt updated", nil)
}
