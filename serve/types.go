package serve

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// apiResponse is the envelope every endpoint answers with.
type apiResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success:   true,
		Message:   message,
		Code:      http.StatusOK,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{
		Success:   false,
		Message:   message,
		Code:      status,
		Timestamp: time.Now().Unix(),
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

func forbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, message)
}

func internalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// BotResponse is the wire form of one managed bot.
type BotResponse struct {
	UUID         string  `json:"uuid"`
	Name         string  `json:"name"`
	ServerID     int64   `json:"server_id"`
	Server       string  `json:"server"`
	Status       string  `json:"status"`
	Health       float64 `json:"health"`
	Invulnerable bool    `json:"invulnerable"`
	LLMEnabled   bool    `json:"llm_enabled"`
	SessionID    string  `json:"session_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// ServerResponse is the wire form of one stored game server.
type ServerResponse struct {
	ID         int64  `json:"id"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Name       string `json:"name"`
	Gamemode   string `json:"gamemode"`
	Rule       string `json:"rule"`
	Language   string `json:"language"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Ping       int    `json:"ping"`
	LastUpdate string `json:"last_update"`
}

// ProviderResponse is the wire form of one LLM provider. The API key is
// masked on output.
type ProviderResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
}

// RuntimeStats is the dashboard runtime block.
type RuntimeStats struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Goroutines    int    `json:"goroutines"`
	HeapAllocMB   uint64 `json:"heap_alloc_mb"`
	NumCPU        int    `json:"num_cpu"`
	GoVersion     string `json:"go_version"`
}

// BotStats is the dashboard bot block.
type BotStats struct {
	Total        int `json:"total"`
	Connected    int `json:"connected"`
	Spawned      int `json:"spawned"`
	LLMSessions  int `json:"llm_sessions"`
	Disconnected int `json:"disconnected"`
}

// ServerStats is the dashboard server block.
type ServerStats struct {
	Total        int `json:"total"`
	Online       int `json:"online"`
	TotalPlayers int `json:"total_players"`
}
