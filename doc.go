// Package botmaster maintains a fleet of autonomous game-client bots
// against SA-MP style servers and drives their behavior through an
// OpenAI-compatible LLM tool-calling API.
//
// The core pieces are the per-bot connection state machine (Bot), the
// shared per-server world cache (WorldPool), the per-bot streamable
// cache (StreamPool), the connection admission queue (ConnectionQueue),
// the background server querier (Querier), and the LLM session layer
// (SessionManager + Dispatcher). The game wire protocol itself is
// abstracted behind the Transport interface.
package botmaster
