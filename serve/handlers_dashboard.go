package serve

import (
	"net/http"
	"runtime"
	"time"

	botmaster "github.com/everydev1618/botmaster"
)

func (s *Server) handleDashboardRuntime(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeSuccess(w, "ok", RuntimeStats{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   mem.HeapAlloc / 1024 / 1024,
		NumCPU:        runtime.NumCPU(),
		GoVersion:     runtime.Version(),
	})
}

func (s *Server) handleDashboardBotStats(w http.ResponseWriter, r *http.Request) {
	stats := BotStats{
		LLMSessions: s.deps.Sessions.Count(),
	}
	for _, b := range s.deps.Fleet.All() {
		stats.Total++
		switch b.Status() {
		case botmaster.StatusSpawned:
			stats.Spawned++
			stats.Connected++
		case botmaster.StatusConnected:
			stats.Connected++
		case botmaster.StatusDisconnected:
			stats.Disconnected++
		}
	}
	writeSuccess(w, "ok", stats)
}

func (s *Server) handleDashboardServerStats(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.ListServers(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	stats := ServerStats{Total: len(records)}
	for _, rec := range records {
		// A server that answered a query in the last five minutes counts
		// as online.
		if !rec.LastUpdate.IsZero() && time.Since(rec.LastUpdate) < 5*time.Minute {
			stats.Online++
			stats.TotalPlayers += rec.Players
		}
	}
	writeSuccess(w, "ok", stats)
}
