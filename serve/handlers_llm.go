package serve

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maskKey hides all but the tail of an API key for display.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func providerToResponse(p ProviderRecord) ProviderResponse {
	return ProviderResponse{
		ID:        p.ID,
		Name:      p.Name,
		APIKey:    maskKey(p.APIKey),
		BaseURL:   p.BaseURL,
		Model:     p.Model,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleProviderList(w http.ResponseWriter, r *http.Request) {
	providers, err := s.deps.Store.ListProviders(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	resp := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		resp = append(resp, providerToResponse(p))
	}
	writeSuccess(w, "ok", resp)
}

func (s *Server) handleProviderCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		APIKey  string `json:"api_key"`
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
	}
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Model == "" {
		badRequest(w, "name and model are required")
		return
	}

	id, err := s.deps.Store.InsertProvider(r.Context(), ProviderRecord{
		Name:    req.Name,
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
		Model:   req.Model,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			badRequest(w, "a provider with that name already exists")
			return
		}
		internalError(w, err)
		return
	}

	p, err := s.deps.Store.GetProvider(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	writeSuccess(w, "provider created", providerToResponse(p))
}

func (s *Server) handleProviderUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		APIKey  string `json:"api_key"`
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == 0 {
		badRequest(w, "id is required")
		return
	}

	current, err := s.deps.Store.GetProvider(r.Context(), req.ID)
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "provider not found")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}

	if req.Name != "" {
		current.Name = req.Name
	}
	if req.APIKey != "" {
		current.APIKey = req.APIKey
	}
	if req.BaseURL != "" {
		current.BaseURL = req.BaseURL
	}
	if req.Model != "" {
		current.Model = req.Model
	}

	if err := s.deps.Store.UpdateProvider(r.Context(), current); err != nil {
		internalError(w, err)
		return
	}
	writeSuccess(w, "provider updated", providerToResponse(current))
}

func (s *Server) handleProviderDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == 0 {
		badRequest(w, "id is required")
		return
	}
	if err := s.deps.Store.DeleteProvider(r.Context(), req.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			notFound(w, "provider not found")
			return
		}
		if errors.Is(err, ErrProviderInUse) {
			forbidden(w, err.Error())
			return
		}
		internalError(w, err)
		return
	}
	writeSuccess(w, "provider deleted", nil)
}

func (s *Server) handleProviderGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(w, "id query parameter is required")
		return
	}
	p, err := s.deps.Store.GetProvider(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "provider not found")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}
	writeSuccess(w, "ok", providerToResponse(p))
}
