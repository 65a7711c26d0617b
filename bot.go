package botmaster

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the connection lifecycle state of a bot.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusWaitForJoin
	StatusConnected
	StatusSpawned
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusWaitForJoin:
		return "wait_for_join"
	case StatusConnected:
		return "connected"
	case StatusSpawned:
		return "spawned"
	default:
		return "disconnected"
	}
}

// Flags are the bot's runtime state bits.
type Flags uint32

const (
	FlagMoving Flags = 1 << iota
	FlagDead
	FlagDriving
	FlagAiming
	FlagReloading
	FlagShooting
	FlagJacking
	FlagExiting
	FlagPlaying
	FlagMeleeAttack
	FlagUnmoving
)

// DialogStyle mirrors the server-side dialog style codes.
type DialogStyle int

const (
	DialogMsgBox DialogStyle = iota
	DialogInput
	DialogPassword
	DialogList
	DialogTabList
	DialogTabListHeaders
)

func (s DialogStyle) String() string {
	switch s {
	case DialogInput:
		return "input_box"
	case DialogPassword:
		return "input_password_box"
	case DialogList:
		return "list_box"
	case DialogTabList:
		return "tablist_box"
	case DialogTabListHeaders:
		return "tablist_headers_box"
	default:
		return "message_box"
	}
}

// Dialog is the currently displayed server dialog, if any.
type Dialog struct {
	ID          int
	Style       DialogStyle
	Title       string
	Body        string
	LeftButton  string
	RightButton string
}

const (
	// connectionDelay throttles reconnect attempts after a disconnect.
	connectionDelay = 4000 * time.Millisecond
	// respawnDelay is how long a dead bot stays down before respawning.
	respawnDelay = 4000 * time.Millisecond
	// syncInterval paces outgoing onfoot sync packets.
	syncInterval = 40 * time.Millisecond

	clientVersion       = 4057
	clientVersionString = "0.3.7"

	maxChatboxSize = 64

	invalidPlayerID = 0xFFFF
)

// BotDeps are the collaborators injected into a bot. Zero fields get
// working defaults.
type BotDeps struct {
	UUID      string
	Transport Transport
	World     *WorldPool
	Raycast   Raycaster
	Decoder   *TextDecoder
	Names     *Names
	Clock     func() time.Time
}

// Bot is one synthetic game client: connection state machine, movement
// kinematics, chat and event buffers, and the LLM-facing state snapshot.
type Bot struct {
	UUID string
	Name string

	transport Transport
	world     *WorldPool
	stream    *StreamPool
	raycast   Raycaster
	decoder   *TextDecoder
	names     *Names
	now       func() time.Time

	mu           sync.Mutex
	host         string
	port         int
	password     string
	systemPrompt string
	invulnerable bool

	status      Status
	playerID    uint16
	gameInited  bool
	reconnectAt time.Time
	spawnPos    Vec3

	position Vec3
	velocity Vec3
	angle    float64
	health   float64
	armor    float64
	skin     int
	weapon   int
	flags    Flags

	keys     uint16
	udAnalog uint16
	lrAnalog uint16

	// movement bookkeeping, see movement.go
	destination   Vec3
	moveType      int
	moveSpeed     float64
	moveStopDelay time.Duration
	moveDuration  time.Duration
	moveStart     time.Time
	lastMoveTick  time.Time
	movepath      *Movepath
	movepathType  int
	movepathSpeed float64

	deathAt    time.Time
	lastSyncAt time.Time

	chatbox         []string
	unreadChat      []string
	importantEvents []string
	dialog          *Dialog
}

// NewBot builds a bot with the given display name.
func NewBot(name string, deps BotDeps) *Bot {
	if deps.UUID == "" {
		deps.UUID = uuid.NewString()
	}
	if deps.Transport == nil {
		deps.Transport = NewLoopbackTransport()
	}
	if deps.World == nil {
		deps.World = NewWorldPool()
	}
	if deps.Raycast == nil {
		deps.Raycast = FlatWorld{}
	}
	if deps.Decoder == nil {
		deps.Decoder = NewTextDecoder("GBK")
	}
	if deps.Names == nil {
		deps.Names = NewNames()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	b := &Bot{
		UUID:      deps.UUID,
		Name:      name,
		transport: deps.Transport,
		world:     deps.World,
		stream:    NewStreamPool(),
		raycast:   deps.Raycast,
		decoder:   deps.Decoder,
		names:     deps.Names,
		now:       deps.Clock,
		playerID:  invalidPlayerID,
		health:    100,
	}
	// A fresh bot is immediately eligible for admission.
	b.reconnectAt = b.now().Add(-connectionDelay)
	return b
}

// SetServer points the bot at a game server.
func (b *Bot) SetServer(host string, port int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.host = host
	b.port = port
}

// Addr returns the bot's target server address.
func (b *Bot) Addr() Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Addr{Host: b.host, Port: b.port}
}

func (b *Bot) Password() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.password
}

func (b *Bot) SetPassword(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.password = p
}

func (b *Bot) SystemPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.systemPrompt
}

func (b *Bot) SetSystemPrompt(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemPrompt = p
}

func (b *Bot) Invulnerable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invulnerable
}

func (b *Bot) SetInvulnerable(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invulnerable = v
}

// Status returns the connection lifecycle state.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Connected reports whether the bot completed the join handshake.
func (b *Bot) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status == StatusConnected || b.status == StatusSpawned
}

// GameInited reports whether the server finished the InitGame exchange.
func (b *Bot) GameInited() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gameInited
}

// Position returns the bot's current world position.
func (b *Bot) Position() Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// SetPosition teleports the bot.
func (b *Bot) SetPosition(p Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = p
}

// Velocity returns the bot's current velocity in units per millisecond.
func (b *Bot) Velocity() Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.velocity
}

// Health returns the bot's health.
func (b *Bot) Health() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.health
}

// Armor returns the bot's armor.
func (b *Bot) Armor() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armor
}

// Angle returns the facing angle in degrees.
func (b *Bot) Angle() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.angle
}

// HasFlag reports whether all given flag bits are set.
func (b *Bot) HasFlag(f Flags) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags&f == f
}

// Stream exposes the per-bot streamable pool.
func (b *Bot) Stream() *StreamPool {
	return b.stream
}

// World exposes the shared world pool.
func (b *Bot) World() *WorldPool {
	return b.world
}

// Raycast exposes the collision oracle.
func (b *Bot) Raycast() Raycaster {
	return b.raycast
}

// Connect begins a connection attempt. Already-connecting bots are left
// alone.
func (b *Bot) Connect() error {
	b.mu.Lock()
	if b.status != StatusDisconnected {
		b.mu.Unlock()
		return fmt.Errorf("bot %s: already %s", b.Name, b.status)
	}
	host, port := b.host, b.port
	b.status = StatusConnecting
	b.reconnectAt = b.now()
	b.mu.Unlock()

	if err := b.transport.Connect(host, port); err != nil {
		b.mu.Lock()
		b.resetConnection()
		b.mu.Unlock()
		return fmt.Errorf("bot %s: connect %s:%d: %w", b.Name, host, port, err)
	}
	slog.Debug("bot connecting", "name", b.Name, "host", host, "port", port)
	return nil
}

// Disconnect drops the connection and resets the state machine.
func (b *Bot) Disconnect() {
	b.transport.Disconnect()
	b.mu.Lock()
	b.resetConnection()
	b.mu.Unlock()
}

// resetConnection returns the state machine to Disconnected. Callers hold
// the lock.
func (b *Bot) resetConnection() {
	b.status = StatusDisconnected
	b.playerID = invalidPlayerID
	b.gameInited = false
	b.reconnectAt = b.now()
	b.dialog = nil
	b.stopLocked()
	b.movepath = nil
	b.stream.Clear()
}

// CheckConnectionDelay reports whether the reconnect throttle has
// elapsed since the last disconnect.
func (b *Bot) CheckConnectionDelay() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Sub(b.reconnectAt) > connectionDelay
}

// Process drains inbound transport events and advances the tick logic.
// It is called from the orchestrator tick loop.
func (b *Bot) Process() {
	for _, ev := range b.transport.Poll() {
		b.handleEvent(ev)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusSpawned {
		return
	}

	now := b.now()
	if b.flags&FlagDead != 0 {
		if now.Sub(b.deathAt) > respawnDelay {
			b.health = 100
			b.flags &^= FlagDead
			b.sendSpawn()
		}
	} else if b.flags&FlagMoving != 0 {
		b.advanceMovement(now)
	}

	if now.Sub(b.lastSyncAt) >= syncInterval {
		b.sendOnFoot()
		b.lastSyncAt = now
	}
}

func (b *Bot) handleEvent(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case EventAccepted:
		b.playerID = ev.PlayerID
		b.sendClientJoin(ev.Challenge)
		b.status = StatusConnected
	case EventAuthChallenge:
		b.sendAuthResponse(ev.Salt)
		b.status = StatusWaitForJoin
	case EventRPC:
		b.handleRPC(ev.RPC, NewReader(ev.Payload))
	case EventSync:
		b.handleSync(ev.Sync, NewReader(ev.Payload))
	case EventConnectionLost:
		b.appendEvent("Connection to the server was lost")
		b.resetConnection()
	case EventBanned:
		b.appendEvent("You are banned from this server")
		b.resetConnection()
	case EventAttemptFailed:
		b.resetConnection()
	case EventServerFull:
		b.appendEvent("The server is full")
		b.resetConnection()
	case EventInvalidPassword:
		b.appendEvent("The server rejected the password")
		b.resetConnection()
	case EventDisconnected:
		b.resetConnection()
	}
}

// gpci derives the stable client fingerprint sent during the join
// handshake.
func (b *Bot) gpci() string {
	h := fnv.New64a()
	h.Write([]byte(b.UUID))
	return fmt.Sprintf("%016X%016X", h.Sum64(), ^h.Sum64())
}

func (b *Bot) sendClientJoin(challenge uint32) {
	w := NewWriter().
		U32(clientVersion).
		U8(1).
		String8(b.Name).
		U32(challenge ^ clientVersion).
		String8(b.gpci()).
		String8(clientVersionString)
	b.transport.SendRPC(RPCClientJoin, w.Bytes(), ReliableOrdered)
}

func (b *Bot) sendAuthResponse(salt string) {
	key, ok := authKeyResponse(salt)
	if !ok {
		slog.Warn("unknown auth challenge", "name", b.Name, "salt", salt)
		return
	}
	b.transport.SendAuth(key)
}

func (b *Bot) sendRequestClass(classID uint16) {
	b.transport.SendRPC(RPCRequestClass, NewWriter().U16(classID).Bytes(), ReliableOrdered)
}

func (b *Bot) sendRequestSpawn() {
	b.transport.SendRPC(RPCRequestSpawn, NewWriter().U8(1).Bytes(), ReliableOrdered)
}

func (b *Bot) sendSpawn() {
	b.transport.SendRPC(RPCSpawn, nil, ReliableOrdered)
}

func (b *Bot) handleRPC(id RPCID, r *Reader) {
	addr := Addr{Host: b.host, Port: b.port}

	switch id {
	case RPCInitGame:
		b.gameInited = true
		b.sendRequestClass(0)

	case RPCServerJoin:
		pid := r.U16()
		r.U32() // color
		isNPC := r.U8() != 0
		name := b.decoder.EnsureUTF8(r.String8())
		b.world.AddPlayer(addr, WorldPlayer{ID: pid, Name: name, IsNPC: isNPC, Health: 100})

	case RPCServerQuit:
		b.world.RemovePlayerByID(addr, r.U16())

	case RPCWorldPlayerAdd:
		pid := r.U16()
		r.U8() // team
		skin := int(r.U32())
		pos := r.Vec3()
		b.world.UpdatePlayer(addr, pid, func(p *WorldPlayer) {
			p.Skin = skin
			p.Position = pos
		})
		b.world.IncrementPlayerStream(addr, pid)

	case RPCWorldPlayerRemove:
		b.world.DecrementPlayerStream(addr, r.U16())

	case RPCWorldVehicleAdd:
		vid := r.U16()
		model := int(r.U32())
		pos := r.Vec3()
		r.F32() // angle
		health := r.F32()
		b.world.AddVehicle(addr, WorldVehicle{ID: vid, Model: model, Position: pos, Health: health})
		b.world.IncrementVehicleStream(addr, vid)

	case RPCWorldVehicleRemove:
		b.world.DecrementVehicleStream(addr, r.U16())

	case RPCCreate3DTextLabel, RPCUpdate3DTextLabel:
		lid := int(r.U16())
		r.U32() // color
		pos := r.Vec3()
		r.F32() // draw distance
		r.U8()  // test line of sight
		attachedPlayer := int(int16(r.U16()))
		attachedVehicle := int(int16(r.U16()))
		text := b.decoder.EnsureUTF8(r.String16())
		b.stream.AddLabel(Label{
			ID:              lid,
			Text:            text,
			Position:        pos,
			AttachedPlayer:  attachedPlayer,
			AttachedVehicle: attachedVehicle,
		})

	case RPCCreatePickup:
		pk := Pickup{ID: int(r.I32()), Model: int(r.I32()), Type: int(r.I32()), Position: r.Vec3()}
		b.stream.AddPickup(pk)

	case RPCDestroyPickup:
		b.stream.RemovePickup(int(r.I32()))

	case RPCCreateObject:
		oid := int(r.U16())
		model := int(r.I32())
		pos := r.Vec3()
		r.Vec3() // rotation
		r.F32()  // draw distance
		o := Object{ID: oid, Model: model, Position: pos}
		if r.Remaining() > 0 {
			o.MaterialText = b.decoder.EnsureUTF8(r.String16())
		}
		b.stream.AddObject(o)

	case RPCSetPlayerPos:
		b.position = r.Vec3()
		b.appendEvent(fmt.Sprintf("Your position was set to %.2f,%.2f,%.2f", b.position.X, b.position.Y, b.position.Z))

	case RPCSetPlayerHealth:
		b.health = r.F32()
		b.appendEvent(fmt.Sprintf("Your health was set to %.2f", b.health))

	case RPCSetPlayerArmour:
		b.armor = r.F32()
		b.appendEvent(fmt.Sprintf("Your armour was set to %.2f", b.armor))

	case RPCSetSpawnInfo:
		r.U8() // team
		b.skin = int(r.U32())
		b.spawnPos = r.Vec3()

	case RPCRequestClass:
		b.sendRequestSpawn()

	case RPCRequestSpawn:
		if r.U8() == 1 {
			b.sendSpawn()
			b.status = StatusSpawned
			b.onSpawned()
		}

	case RPCClientMessage:
		r.U32() // color
		msg := b.decoder.EnsureUTF8(r.String32())
		b.addChatMessage(msg)

	case RPCChat:
		pid := r.U16()
		msg := b.decoder.EnsureUTF8(r.String8())
		name := fmt.Sprintf("player_%d", pid)
		if p, ok := b.world.PlayerByID(addr, pid); ok {
			name = p.Name
		}
		b.addChatMessage(name + ": " + msg)

	case RPCShowDialog:
		d := &Dialog{}
		d.ID = int(int16(r.U16()))
		d.Style = DialogStyle(r.U8())
		d.Title = b.decoder.EnsureUTF8(r.String8())
		d.LeftButton = b.decoder.EnsureUTF8(r.String8())
		d.RightButton = b.decoder.EnsureUTF8(r.String8())
		d.Body = b.decoder.EnsureUTF8(r.String16())
		b.dialog = d

	case RPCCreateExplosion:
		pos := r.Vec3()
		if pos.Distance(b.position) <= 100 {
			b.appendEvent(fmt.Sprintf("An explosion occurred near you at %.2f,%.2f,%.2f", pos.X, pos.Y, pos.Z))
		}
	}
}

func (b *Bot) handleSync(kind SyncKind, r *Reader) {
	addr := Addr{Host: b.host, Port: b.port}

	switch kind {
	case SyncPlayer:
		pid := r.U16()
		pos := r.Vec3()
		vel := r.Vec3()
		health := float64(r.U8())
		armor := float64(r.U8())
		weapon := int(r.U8())
		b.world.UpdatePlayer(addr, pid, func(p *WorldPlayer) {
			p.Position = pos
			p.Velocity = vel
			p.Health = health
			p.Armor = armor
			p.Weapon = weapon
		})

	case SyncVehicle, SyncUnoccupied:
		vid := r.U16()
		pos := r.Vec3()
		vel := r.Vec3()
		health := r.F32()
		b.world.UpdateVehicle(addr, vid, func(v *WorldVehicle) {
			v.Position = pos
			v.Velocity = vel
			v.Health = health
		})

	case SyncBullet:
		shooter := r.U16()
		target := r.U16()
		weapon := int(r.U8())
		damage := r.F32()
		if target != b.playerID {
			return
		}
		if !b.takeDamage(weapon, damage) {
			return
		}
		if b.health <= 0 && b.flags&FlagDead == 0 {
			b.killLocked(weapon, int(shooter))
		}
	}
}

// takeDamage applies incoming damage; invulnerable bots shrug it off.
// Armor absorbs before health, as the game does. Reports whether the
// damage applied.
func (b *Bot) takeDamage(weapon int, damage float64) bool {
	if b.invulnerable {
		return false
	}
	if b.armor > 0 {
		absorbed := damage
		if absorbed > b.armor {
			absorbed = b.armor
		}
		b.armor -= absorbed
		damage -= absorbed
	}
	b.health -= damage
	b.appendEvent(fmt.Sprintf("You were hit by %s for %.1f damage", WeaponName(weapon), damage))
	return true
}

// onSpawned runs after the server accepts the spawn. Callers hold the
// lock.
func (b *Bot) onSpawned() {
	b.flags &^= FlagDead
	if b.spawnPos != (Vec3{}) {
		b.position = b.spawnPos
	}
	b.stopLocked()
	b.appendEvent("You spawned into the world")
}

func (b *Bot) addChatMessage(msg string) {
	b.chatbox = append(b.chatbox, msg)
	if len(b.chatbox) > maxChatboxSize {
		b.chatbox = b.chatbox[1:]
	}
	b.unreadChat = append(b.unreadChat, msg)
}

func (b *Bot) appendEvent(ev string) {
	b.importantEvents = append(b.importantEvents, ev)
}

// AppendEvent records an important event for the next state snapshot.
func (b *Bot) AppendEvent(ev string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendEvent(ev)
}

// ChatboxHistory returns a copy of the bounded chatbox.
func (b *Bot) ChatboxHistory() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.chatbox))
	copy(out, b.chatbox)
	return out
}

// HasNews reports whether the bot has unreported chat, events, or a
// pending dialog since the last snapshot.
func (b *Bot) HasNews() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unreadChat) > 0 || len(b.importantEvents) > 0 || b.dialog != nil
}

// DialogActive reports whether a server dialog is being displayed.
func (b *Bot) DialogActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dialog != nil
}

// SendChat sends a chat line; lines starting with "/" go out as server
// commands.
func (b *Bot) SendChat(msg string) {
	raw := b.decoder.EncodeGame(msg)
	if len(msg) > 0 && msg[0] == '/' {
		w := NewWriter().U32(uint32(len(raw))).Raw(raw)
		b.transport.SendRPC(RPCServerCommand, w.Bytes(), ReliableOrdered)
		return
	}
	w := NewWriter().U8(uint8(min(len(raw), 0xFF))).Raw(raw[:min(len(raw), 0xFF)])
	b.transport.SendRPC(RPCChat, w.Bytes(), ReliableOrdered)
}

// SendDialogResponse answers the active dialog and clears it. It is an
// error to respond when no dialog is shown.
func (b *Bot) SendDialogResponse(leftButton bool, input string, listitem int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dialog == nil {
		return fmt.Errorf("no active dialog")
	}
	button := uint8(0)
	if leftButton {
		button = 1
	}
	w := NewWriter().
		U16(uint16(b.dialog.ID)).
		U8(button).
		U16(uint16(int16(listitem))).
		String8(input)
	b.transport.SendRPC(RPCDialogResponse, w.Bytes(), ReliableOrdered)
	b.dialog = nil
	return nil
}

// SendPickup asks the server to collect a pickup.
func (b *Bot) SendPickup(id int) {
	b.transport.SendRPC(RPCPickedUpPickup, NewWriter().I32(int32(id)).Bytes(), ReliableOrdered)
}

// GenerateState builds the LLM-facing snapshot and clears the unread
// chat and important-event buffers.
func (b *Bot) GenerateState() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := Addr{Host: b.host, Port: b.port}
	const seeRange = 300.0

	players := b.world.PlayersInRange(addr, b.position, seeRange, true)
	var playerList []map[string]any
	for _, p := range players {
		playerList = append(playerList, map[string]any{
			"name":     p.Name,
			"health":   round2(p.Health),
			"weapon":   WeaponName(p.Weapon),
			"distance": round2(p.Position.Distance(b.position)),
		})
	}

	state := map[string]any{
		"position": map[string]any{
			"x":    round2(b.position.X),
			"y":    round2(b.position.Y),
			"z":    round2(b.position.Z),
			"zone": b.names.ZoneName(b.position),
		},
		"status":            b.status.String(),
		"health":            round2(b.health),
		"armor":             round2(b.armor),
		"streamed_players":  playerList,
		"streamed_vehicles": len(b.world.VehiclesInRange(addr, b.position, seeRange)),
		"streamed_pickups":  len(b.stream.PickupsInRange(b.position, seeRange)),
		"streamed_labels":   len(b.stream.LabelsInRangeLinear(b.position, seeRange)),
		"is_moving":         b.flags&FlagMoving != 0,
		"new_chat_message":  append([]string(nil), b.unreadChat...),
		"important_events":  append([]string(nil), b.importantEvents...),
	}
	if b.dialog != nil {
		state["dialog"] = map[string]any{
			"id":           b.dialog.ID,
			"style":        b.dialog.Style.String(),
			"title":        b.dialog.Title,
			"content":      b.dialog.Body,
			"button_left":  b.dialog.LeftButton,
			"button_right": b.dialog.RightButton,
		}
	}

	b.unreadChat = nil
	b.importantEvents = nil
	return state
}
