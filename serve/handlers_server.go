package serve

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	botmaster "github.com/everydev1618/botmaster"
)

func serverToResponse(rec botmaster.ServerRecord) ServerResponse {
	resp := ServerResponse{
		ID:         rec.ID,
		Host:       rec.Host,
		Port:       rec.Port,
		Name:       rec.Name,
		Gamemode:   rec.Gamemode,
		Rule:       rec.Rule,
		Language:   rec.Language,
		Players:    rec.Players,
		MaxPlayers: rec.MaxPlayers,
		Ping:       rec.Ping,
	}
	if !rec.LastUpdate.IsZero() {
		resp.LastUpdate = rec.LastUpdate.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleServerList(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.ListServers(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	resp := make([]ServerResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, serverToResponse(rec))
	}
	writeSuccess(w, "ok", resp)
}

func (s *Server) handleServerAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Host == "" || req.Port <= 0 || req.Port > 65535 {
		badRequest(w, "host and a valid port are required")
		return
	}

	rec, err := s.deps.Store.AddServer(r.Context(), req.Host, req.Port)
	if err != nil {
		internalError(w, err)
		return
	}
	writeSuccess(w, "server added", serverToResponse(rec))
}

func (s *Server) handleServerDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"dbid"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == 0 {
		badRequest(w, "dbid is required")
		return
	}

	// Bots on the server cascade out of the database; drop their runtime
	// counterparts too.
	srv, err := s.deps.Store.GetServer(r.Context(), req.ID)
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "server not found")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}
	addr := botmaster.Addr{Host: srv.Host, Port: srv.Port}
	for _, b := range s.deps.Fleet.All() {
		if b.Addr() == addr {
			s.deps.Sessions.DisableLLM(r.Context(), b.UUID)
			if removed, ok := s.deps.Fleet.Remove(b.UUID); ok {
				removed.Disconnect()
			}
		}
	}

	if err := s.deps.Store.DeleteServer(r.Context(), req.ID); err != nil {
		internalError(w, err)
		return
	}
	writeSuccess(w, "server deleted", nil)
}

// handleServerQuery runs an on-demand query against a stored server and
// persists the result.
func (s *Server) handleServerQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"server_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == 0 {
		badRequest(w, "server_id is required")
		return
	}

	srv, err := s.deps.Store.GetServer(r.Context(), req.ID)
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "server not found")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}

	info, ping, err := s.deps.Query.Info(srv.Host, srv.Port)
	if err != nil {
		writeError(w, http.StatusBadGateway, "server unreachable: "+err.Error())
		return
	}
	rule := srv.Rule
	if rules, err := s.deps.Query.Rules(srv.Host, srv.Port); err == nil {
		rule = botmaster.FormatRules(rules)
	}
	if err := s.deps.Store.UpdateServerStatus(r.Context(), srv.ID, info, rule, ping); err != nil {
		internalError(w, err)
		return
	}

	rec, err := s.deps.Store.GetServer(r.Context(), srv.ID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeSuccess(w, "server queried", serverToResponse(rec))
}
