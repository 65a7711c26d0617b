package botmaster

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source for deterministic tick
// tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBot(name string) (*Bot, *LoopbackTransport, *fakeClock) {
	tr := NewLoopbackTransport()
	clk := newFakeClock()
	b := NewBot(name, BotDeps{Transport: tr, Clock: clk.Now})
	b.SetServer("127.0.0.1", 7777)
	// NewBot back-dates the reconnect throttle by exactly the delay;
	// nudge the clock so the strict comparison passes.
	clk.Advance(time.Millisecond)
	return b, tr, clk
}

// spawnTestBot drives a bot through the whole join handshake.
func spawnTestBot(t *testing.T) (*Bot, *LoopbackTransport, *fakeClock) {
	t.Helper()
	b, tr, clk := newTestBot("Tester")
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	tr.Deliver(Event{Kind: EventAccepted, PlayerID: 3, Challenge: 0x1234})
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCInitGame})
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCRequestClass})
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCRequestSpawn, Payload: NewWriter().U8(1).Bytes()})
	b.Process()
	if got := b.Status(); got != StatusSpawned {
		t.Fatalf("status after handshake = %v, want spawned", got)
	}
	return b, tr, clk
}

func lastRPC(t *testing.T, tr *LoopbackTransport, id RPCID) SentRPC {
	t.Helper()
	sent := tr.SentRPCs()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].ID == id {
			return sent[i]
		}
	}
	t.Fatalf("no outbound RPC %d captured", id)
	return SentRPC{}
}

func countRPC(tr *LoopbackTransport, id RPCID) int {
	n := 0
	for _, s := range tr.SentRPCs() {
		if s.ID == id {
			n++
		}
	}
	return n
}

func TestBotJoinHandshake(t *testing.T) {
	b, tr, _ := newTestBot("Tester")
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	if b.Status() != StatusConnecting {
		t.Fatalf("status = %v, want connecting", b.Status())
	}

	tr.Deliver(Event{Kind: EventAccepted, PlayerID: 7, Challenge: 0xABCD})
	b.Process()
	if !b.Connected() {
		t.Fatal("bot not connected after acceptance")
	}

	join := lastRPC(t, tr, RPCClientJoin)
	r := NewReader(join.Payload)
	if got := r.U32(); got != clientVersion {
		t.Errorf("join version = %d, want %d", got, clientVersion)
	}
	r.U8() // mod
	if got := string(r.String8()); got != "Tester" {
		t.Errorf("join name = %q", got)
	}
	if got := r.U32(); got != 0xABCD^clientVersion {
		t.Errorf("join challenge response = %#x, want %#x", got, 0xABCD^clientVersion)
	}

	tr.Deliver(Event{Kind: EventRPC, RPC: RPCInitGame})
	b.Process()
	if !b.GameInited() {
		t.Error("InitGame did not mark the game inited")
	}
	lastRPC(t, tr, RPCRequestClass)

	tr.Deliver(Event{Kind: EventRPC, RPC: RPCRequestClass})
	b.Process()
	lastRPC(t, tr, RPCRequestSpawn)

	tr.Deliver(Event{Kind: EventRPC, RPC: RPCRequestSpawn, Payload: NewWriter().U8(1).Bytes()})
	b.Process()
	lastRPC(t, tr, RPCSpawn)
	if b.Status() != StatusSpawned {
		t.Errorf("status = %v, want spawned", b.Status())
	}
}

func TestBotAuthChallenge(t *testing.T) {
	const (
		salt = "eVEB+ylJiAAPcG14vb2jgfeaXTgS+RVXMOX2gADV"
		want = "fXkzs18O9dXo51qh4RvV7Cy+PRXfHXHCaJf76tWW"
	)
	b, tr, _ := newTestBot("Tester")
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	tr.Deliver(Event{Kind: EventAuthChallenge, Salt: salt})
	b.Process()

	if b.Status() != StatusWaitForJoin {
		t.Errorf("status = %v, want wait_for_join", b.Status())
	}
	auth := tr.SentAuth()
	if len(auth) != 1 || auth[0] != want {
		t.Errorf("auth response = %v, want [%s]", auth, want)
	}
}

func TestBotConnectTwice(t *testing.T) {
	b, _, _ := newTestBot("Tester")
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect(); err == nil {
		t.Error("second Connect succeeded while connecting")
	}
}

func TestBotDisconnectResets(t *testing.T) {
	b, _, clk := spawnTestBot(t)
	b.Disconnect()

	if b.Status() != StatusDisconnected || b.GameInited() {
		t.Errorf("state after disconnect: status=%v inited=%v", b.Status(), b.GameInited())
	}
	if b.CheckConnectionDelay() {
		t.Error("reconnect allowed immediately after disconnect")
	}
	clk.Advance(connectionDelay + time.Millisecond)
	if !b.CheckConnectionDelay() {
		t.Error("reconnect still throttled after the delay elapsed")
	}
}

func TestBotMovementKinematics(t *testing.T) {
	b, _, clk := spawnTestBot(t)
	b.Go(Vec3{X: 10}, MoveTypeRun, 0, true, MoveSpeedAuto, 0, 0)

	if !b.IsMoving() {
		t.Fatal("bot not moving after Go")
	}
	// Walking toward +X faces angle 270.
	if got := b.Angle(); got != 270 {
		t.Errorf("angle = %v, want 270", got)
	}

	clk.Advance(100 * time.Millisecond)
	b.Process()
	if got := b.Position().X; math.Abs(got-MoveSpeedRun) > 1e-6 {
		t.Errorf("position after 100ms = %v, want %v", got, MoveSpeedRun)
	}

	clk.Advance(5 * time.Second)
	b.Process()
	if got := b.Position(); got != (Vec3{X: 10}) {
		t.Errorf("position after arrival = %v, want destination", got)
	}
	if b.IsMoving() {
		t.Error("bot still moving after arrival")
	}
}

func TestBotMovepathWalksAllWaypoints(t *testing.T) {
	b, _, clk := spawnTestBot(t)
	b.CreateMovepath([]Vec3{{X: 2}, {X: 4}, {X: 6}}, false)
	if !b.StartMovepath() {
		t.Fatal("StartMovepath failed")
	}

	for i := 0; i < 100 && b.IsMoving(); i++ {
		clk.Advance(time.Second)
		b.Process()
	}
	if got := b.Position(); got != (Vec3{X: 6}) {
		t.Errorf("final position = %v, want last waypoint", got)
	}
	status, _, _ := b.MovepathState()
	if status != MovepathCompleted {
		t.Errorf("route status = %v, want completed", status)
	}
}

func TestBotBulletDamage(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	b.GenerateState() // clear the spawn event

	payload := NewWriter().U16(9).U16(3).U8(24).F32(30).Bytes()
	tr.Deliver(Event{Kind: EventSync, Sync: SyncBullet, Payload: payload})
	b.Process()

	if got := b.Health(); got != 70 {
		t.Errorf("health = %v, want 70", got)
	}
	if !b.HasNews() {
		t.Error("damage not surfaced as an event")
	}
}

func TestBotBulletArmorAbsorbs(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCSetPlayerArmour, Payload: NewWriter().F32(50).Bytes()})
	b.Process()

	payload := NewWriter().U16(9).U16(3).U8(24).F32(60).Bytes()
	tr.Deliver(Event{Kind: EventSync, Sync: SyncBullet, Payload: payload})
	b.Process()

	if got := b.Armor(); got != 0 {
		t.Errorf("armor = %v, want 0", got)
	}
	if got := b.Health(); got != 90 {
		t.Errorf("health = %v, want 90", got)
	}
}

func TestBotBulletInvulnerable(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	b.SetInvulnerable(true)

	payload := NewWriter().U16(9).U16(3).U8(24).F32(500).Bytes()
	tr.Deliver(Event{Kind: EventSync, Sync: SyncBullet, Payload: payload})
	b.Process()

	if got := b.Health(); got != 100 {
		t.Errorf("health = %v, want 100", got)
	}
}

func TestBotBulletOtherTarget(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	payload := NewWriter().U16(9).U16(99).U8(24).F32(50).Bytes()
	tr.Deliver(Event{Kind: EventSync, Sync: SyncBullet, Payload: payload})
	b.Process()

	if got := b.Health(); got != 100 {
		t.Errorf("health = %v, want 100 when another player is hit", got)
	}
}

func TestBotDeathAndRespawn(t *testing.T) {
	b, tr, clk := spawnTestBot(t)
	payload := NewWriter().U16(9).U16(3).U8(24).F32(150).Bytes()
	tr.Deliver(Event{Kind: EventSync, Sync: SyncBullet, Payload: payload})
	b.Process()

	if got := b.Health(); got != 0 {
		t.Fatalf("health = %v, want 0", got)
	}
	if !b.HasFlag(FlagDead) {
		t.Fatal("dead flag not set")
	}
	death := lastRPC(t, tr, RPCDeath)
	r := NewReader(death.Payload)
	if reason, killer := r.U8(), r.U16(); reason != 24 || killer != 9 {
		t.Errorf("death report reason=%d killer=%d", reason, killer)
	}

	spawnsBefore := countRPC(tr, RPCSpawn)
	clk.Advance(respawnDelay + time.Millisecond)
	b.Process()

	if got := b.Health(); got != 100 {
		t.Errorf("health after respawn = %v, want 100", got)
	}
	if b.HasFlag(FlagDead) {
		t.Error("dead flag still set after respawn")
	}
	if got := countRPC(tr, RPCSpawn); got != spawnsBefore+1 {
		t.Errorf("spawn RPCs = %d, want %d", got, spawnsBefore+1)
	}
}

func TestBotChatboxFIFO(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	for i := 0; i < maxChatboxSize+6; i++ {
		payload := NewWriter().U32(0xFFFFFF).String32(fmt.Sprintf("line %d", i)).Bytes()
		tr.Deliver(Event{Kind: EventRPC, RPC: RPCClientMessage, Payload: payload})
	}
	b.Process()

	hist := b.ChatboxHistory()
	if len(hist) != maxChatboxSize {
		t.Fatalf("chatbox size = %d, want %d", len(hist), maxChatboxSize)
	}
	if hist[0] != "line 6" {
		t.Errorf("oldest line = %q, want the first six dropped", hist[0])
	}
}

func TestBotChatFromKnownPlayer(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	join := NewWriter().U16(12).U32(0).U8(0).String8("Alice").Bytes()
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCServerJoin, Payload: join})
	chat := NewWriter().U16(12).String8("hello there").Bytes()
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCChat, Payload: chat})
	b.Process()

	hist := b.ChatboxHistory()
	if len(hist) != 1 || hist[0] != "Alice: hello there" {
		t.Errorf("chatbox = %v", hist)
	}
}

func TestBotSendChat(t *testing.T) {
	b, tr, _ := spawnTestBot(t)

	b.SendChat("hello")
	msg := lastRPC(t, tr, RPCChat)
	r := NewReader(msg.Payload)
	if got := string(r.Bytes(int(r.U8()))); got != "hello" {
		t.Errorf("chat payload = %q", got)
	}

	b.SendChat("/help")
	cmd := lastRPC(t, tr, RPCServerCommand)
	r = NewReader(cmd.Payload)
	if got := string(r.Bytes(int(r.U32()))); got != "/help" {
		t.Errorf("command payload = %q", got)
	}
}

func TestBotDialogRoundTrip(t *testing.T) {
	b, tr, _ := spawnTestBot(t)

	if err := b.SendDialogResponse(true, "", -1); err == nil {
		t.Fatal("responding without a dialog succeeded")
	}

	show := NewWriter().
		U16(42).
		U8(uint8(DialogList)).
		String8("Shop").
		String8("Buy").
		String8("Close").
		String16("Pistol\nShotgun").
		Bytes()
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCShowDialog, Payload: show})
	b.Process()

	if !b.DialogActive() {
		t.Fatal("dialog not active after ShowDialog")
	}
	if err := b.SendDialogResponse(true, "", 1); err != nil {
		t.Fatal(err)
	}
	if b.DialogActive() {
		t.Error("dialog still active after response")
	}

	resp := lastRPC(t, tr, RPCDialogResponse)
	r := NewReader(resp.Payload)
	if id := r.U16(); id != 42 {
		t.Errorf("response dialog id = %d", id)
	}
	if button := r.U8(); button != 1 {
		t.Errorf("response button = %d, want left", button)
	}
	if item := int16(r.U16()); item != 1 {
		t.Errorf("response listitem = %d", item)
	}
}

func TestBotGenerateStateClearsBuffers(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	payload := NewWriter().U32(0).String32("welcome").Bytes()
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCClientMessage, Payload: payload})
	b.Process()

	state := b.GenerateState()
	if state["status"] != "spawned" {
		t.Errorf("state status = %v", state["status"])
	}
	chat, ok := state["new_chat_message"].([]string)
	if !ok || len(chat) == 0 {
		t.Errorf("new_chat_message = %v", state["new_chat_message"])
	}
	if b.HasNews() {
		t.Error("buffers not cleared by snapshot")
	}
	// The bounded chatbox survives the snapshot.
	if len(b.ChatboxHistory()) == 0 {
		t.Error("chatbox history cleared by snapshot")
	}
}

func TestBotWorldTracking(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	addr := b.Addr()

	join := NewWriter().U16(5).U32(0).U8(0).String8("Bob").Bytes()
	tr.Deliver(Event{Kind: EventRPC, RPC: RPCServerJoin, Payload: join})
	b.Process()
	if _, ok := b.World().PlayerByID(addr, 5); !ok {
		t.Fatal("ServerJoin did not register the player")
	}

	sync := NewWriter().U16(5).Vec3(Vec3{X: 3}).Vec3(Vec3{}).U8(80).U8(20).U8(24).Bytes()
	tr.Deliver(Event{Kind: EventSync, Sync: SyncPlayer, Payload: sync})
	b.Process()
	p, _ := b.World().PlayerByID(addr, 5)
	if p.Health != 80 || p.Armor != 20 || p.Position.X != 3 {
		t.Errorf("sync not applied: %+v", p)
	}

	tr.Deliver(Event{Kind: EventRPC, RPC: RPCServerQuit, Payload: NewWriter().U16(5).Bytes()})
	b.Process()
	if _, ok := b.World().PlayerByID(addr, 5); ok {
		t.Error("ServerQuit did not remove the player")
	}
}

func TestBotConnectionLostEvent(t *testing.T) {
	b, tr, _ := spawnTestBot(t)
	tr.Deliver(Event{Kind: EventConnectionLost})
	b.Process()

	if b.Status() != StatusDisconnected {
		t.Errorf("status = %v, want disconnected", b.Status())
	}
	if !b.HasNews() {
		t.Error("connection loss not surfaced as an event")
	}
}
