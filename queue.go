package botmaster

import "log/slog"

// ConnectionQueue admits disconnected bots back onto their servers.
// Queued lets one bot at a time join each server, Aggressive connects
// everything at once.
type ConnectionQueue struct {
	policy ConnectionPolicy
}

// NewConnectionQueue builds a queue with the given admission policy.
func NewConnectionQueue(policy ConnectionPolicy) *ConnectionQueue {
	return &ConnectionQueue{policy: policy}
}

// Policy returns the admission policy.
func (q *ConnectionQueue) Policy() ConnectionPolicy {
	return q.policy
}

// Process walks the fleet and starts connection attempts. It returns the
// number of bots admitted this pass.
func (q *ConnectionQueue) Process(bots []*Bot) int {
	groups := make(map[Addr][]*Bot)
	joining := make(map[Addr]bool)
	for _, b := range bots {
		addr := b.Addr()
		groups[addr] = append(groups[addr], b)
		// A bot mid-handshake blocks its server's queue until the
		// server finishes InitGame for it.
		if !b.GameInited() && b.Status() != StatusDisconnected {
			joining[addr] = true
		}
	}

	admitted := 0
	for addr, group := range groups {
		for _, b := range group {
			if b.Status() != StatusDisconnected || !b.CheckConnectionDelay() {
				continue
			}
			if q.policy == PolicyQueued && joining[addr] {
				continue
			}
			if err := b.Connect(); err != nil {
				slog.Warn("connection attempt failed", "bot", b.Name, "server", addr.String(), "error", err)
				continue
			}
			admitted++
			if q.policy == PolicyQueued {
				joining[addr] = true
			}
		}
	}
	return admitted
}
