package botmaster

import "sync"

// Reliability selects the delivery guarantee for an outgoing packet.
type Reliability int

const (
	Unreliable Reliability = iota
	UnreliableSequenced
	Reliable
	ReliableOrdered
)

// SyncKind identifies the flavor of a periodic kinematic sync packet.
type SyncKind int

const (
	SyncPlayer SyncKind = iota
	SyncVehicle
	SyncPassenger
	SyncTrailer
	SyncUnoccupied
	SyncBullet
	SyncAim
)

// EventKind identifies an inbound transport event.
type EventKind int

const (
	// EventAccepted carries the server-assigned player id and the join
	// challenge.
	EventAccepted EventKind = iota
	// EventAuthChallenge carries the auth salt the client must answer.
	EventAuthChallenge
	// EventRPC carries a reliable typed message.
	EventRPC
	// EventSync carries an unreliable kinematic update.
	EventSync
	EventConnectionLost
	EventBanned
	EventAttemptFailed
	EventServerFull
	EventInvalidPassword
	EventDisconnected
)

// Event is a single inbound transport notification.
type Event struct {
	Kind      EventKind
	PlayerID  uint16 // EventAccepted
	Challenge uint32 // EventAccepted
	Salt      string // EventAuthChallenge
	RPC       RPCID  // EventRPC
	Sync      SyncKind
	Payload   []byte
}

// Transport abstracts the reliable-UDP game client. Implementations own
// the socket, the handshake framing, and per-channel reliability; the
// state machine drives them through this contract and drains delivered
// events on every tick.
type Transport interface {
	Connect(host string, port int) error
	Disconnect()
	Connected() bool
	SendRPC(id RPCID, payload []byte, rel Reliability) error
	SendSync(kind SyncKind, payload []byte) error

	// SendAuth answers the auth salt challenge during the handshake.
	SendAuth(key string) error

	// Poll returns all events delivered since the previous call.
	// It never blocks.
	Poll() []Event
}

// TransportFactory builds a fresh transport for each bot.
type TransportFactory func() Transport

// RPCID is the integer opcode of a reliable typed message.
type RPCID uint8

// Well-known RPC opcodes.
const (
	RPCSetPlayerPos       RPCID = 12
	RPCSetPlayerHealth    RPCID = 14
	RPCClientJoin         RPCID = 25
	RPCEnterVehicle       RPCID = 26
	RPCWorldPlayerAdd     RPCID = 32
	RPCCreate3DTextLabel  RPCID = 36
	RPCCreateObject       RPCID = 44
	RPCServerCommand      RPCID = 50
	RPCSpawn              RPCID = 52
	RPCDeath              RPCID = 53
	RPCUpdate3DTextLabel  RPCID = 58
	RPCShowDialog         RPCID = 61
	RPCDialogResponse     RPCID = 62
	RPCDestroyPickup      RPCID = 63
	RPCSetPlayerArmour    RPCID = 66
	RPCSetSpawnInfo       RPCID = 68
	RPCCreateExplosion    RPCID = 79
	RPCClientMessage      RPCID = 93
	RPCCreatePickup       RPCID = 95
	RPCChat               RPCID = 101
	RPCRequestClass       RPCID = 128
	RPCRequestSpawn       RPCID = 129
	RPCPickedUpPickup     RPCID = 131
	RPCServerJoin         RPCID = 137
	RPCServerQuit         RPCID = 138
	RPCInitGame           RPCID = 139
	RPCWorldPlayerRemove  RPCID = 163
	RPCWorldVehicleAdd    RPCID = 164
	RPCWorldVehicleRemove RPCID = 165
)

// LoopbackTransport is an in-process transport for local development and
// tests. Connect succeeds immediately; inbound events are injected with
// Deliver and outbound traffic is retained for inspection.
type LoopbackTransport struct {
	mu        sync.Mutex
	connected bool
	inbox     []Event
	sentRPCs  []SentRPC
	sentSyncs []SentSync
	sentAuth  []string
}

// SentRPC is one outbound RPC captured by the loopback transport.
type SentRPC struct {
	ID          RPCID
	Payload     []byte
	Reliability Reliability
}

// SentSync is one outbound sync packet captured by the loopback transport.
type SentSync struct {
	Kind    SyncKind
	Payload []byte
}

// NewLoopbackTransport returns a disconnected loopback transport.
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{}
}

func (t *LoopbackTransport) Connect(host string, port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *LoopbackTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
}

func (t *LoopbackTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *LoopbackTransport) SendRPC(id RPCID, payload []byte, rel Reliability) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := make([]byte, len(payload))
	copy(p, payload)
	t.sentRPCs = append(t.sentRPCs, SentRPC{ID: id, Payload: p, Reliability: rel})
	return nil
}

func (t *LoopbackTransport) SendSync(kind SyncKind, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := make([]byte, len(payload))
	copy(p, payload)
	t.sentSyncs = append(t.sentSyncs, SentSync{Kind: kind, Payload: p})
	return nil
}

func (t *LoopbackTransport) SendAuth(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentAuth = append(t.sentAuth, key)
	return nil
}

func (t *LoopbackTransport) Poll() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	evs := t.inbox
	t.inbox = nil
	return evs
}

// Deliver queues an inbound event for the next Poll.
func (t *LoopbackTransport) Deliver(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = append(t.inbox, ev)
}

// SentRPCs returns a copy of all captured outbound RPCs.
func (t *LoopbackTransport) SentRPCs() []SentRPC {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentRPC, len(t.sentRPCs))
	copy(out, t.sentRPCs)
	return out
}

// SentAuth returns a copy of all captured auth responses.
func (t *LoopbackTransport) SentAuth() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sentAuth))
	copy(out, t.sentAuth)
	return out
}

// SentSyncs returns a copy of all captured outbound sync packets.
func (t *LoopbackTransport) SentSyncs() []SentSync {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentSync, len(t.sentSyncs))
	copy(out, t.sentSyncs)
	return out
}
