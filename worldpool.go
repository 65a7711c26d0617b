package botmaster

import (
	"hash/fnv"
	"strconv"
	"sync"
)

// Addr identifies a game server.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

const maxWorldEntries = 2000

// WorldPlayer is one remote player entry in the shared pool.
type WorldPlayer struct {
	ID            uint16
	Name          string
	Health        float64
	Armor         float64
	Position      Vec3
	Velocity      Vec3
	IsNPC         bool
	Skin          int
	Weapon        int
	SpecialAction int
	StreamCount   int
}

// WorldVehicle is one vehicle entry in the shared pool.
type WorldVehicle struct {
	ID          uint16
	Model       int
	Health      float64
	Position    Vec3
	Velocity    Vec3
	StreamCount int
}

// serverResources is the per-server cache. Entries live in dense arrays
// with swap-with-last removal; the dedup sets mirror the arrays exactly.
type serverResources struct {
	players       []WorldPlayer
	playerHashes  map[uint64]struct{}
	vehicles      []WorldVehicle
	vehicleHashes map[uint64]struct{}
}

func newServerResources() *serverResources {
	return &serverResources{
		playerHashes:  make(map[uint64]struct{}),
		vehicleHashes: make(map[uint64]struct{}),
	}
}

// WorldPool is the shared, reference-counted cache of entities streamed
// to the bots on each server. It is written from the tick loop and read
// from tool handlers on the session worker, so every operation locks.
type WorldPool struct {
	mu      sync.RWMutex
	servers map[Addr]*serverResources
}

// NewWorldPool returns an empty pool.
func NewWorldPool() *WorldPool {
	return &WorldPool{servers: make(map[Addr]*serverResources)}
}

func (p *WorldPool) resources(addr Addr) *serverResources {
	res, ok := p.servers[addr]
	if !ok {
		res = newServerResources()
		p.servers[addr] = res
	}
	return res
}

func hashPlayer(id uint16, name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(id), byte(id >> 8)})
	base := h.Sum64()
	h2 := fnv.New64a()
	h2.Write([]byte(name))
	return base ^ (h2.Sum64() + 0x9e3779b9 + (base << 6) + (base >> 2))
}

func hashVehicle(id uint16, model int) uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(id), byte(id >> 8)})
	base := h.Sum64()
	h2 := fnv.New64a()
	h2.Write([]byte(strconv.Itoa(model)))
	return base ^ (h2.Sum64() + 0x9e3779b9 + (base << 6) + (base >> 2))
}

// AddPlayer inserts a player unless an identical (id, name) entry already
// exists or the array is full. Duplicate adds are no-ops.
func (p *WorldPool) AddPlayer(addr Addr, pl WorldPlayer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := p.resources(addr)
	h := hashPlayer(pl.ID, pl.Name)
	if _, dup := res.playerHashes[h]; dup || len(res.players) >= maxWorldEntries {
		return
	}
	res.playerHashes[h] = struct{}{}
	res.players = append(res.players, pl)
}

// AddVehicle inserts a vehicle unless an identical (id, model) entry
// already exists or the array is full.
func (p *WorldPool) AddVehicle(addr Addr, v WorldVehicle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := p.resources(addr)
	h := hashVehicle(v.ID, v.Model)
	if _, dup := res.vehicleHashes[h]; dup || len(res.vehicles) >= maxWorldEntries {
		return
	}
	res.vehicleHashes[h] = struct{}{}
	res.vehicles = append(res.vehicles, v)
}

// UpdatePlayer mutates a player entry in place. Missing ids are no-ops.
func (p *WorldPool) UpdatePlayer(addr Addr, id uint16, fn func(*WorldPlayer)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.servers[addr]
	if !ok {
		return
	}
	for i := range res.players {
		if res.players[i].ID == id {
			fn(&res.players[i])
			return
		}
	}
}

// UpdateVehicle mutates a vehicle entry in place. Missing ids are no-ops.
func (p *WorldPool) UpdateVehicle(addr Addr, id uint16, fn func(*WorldVehicle)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.servers[addr]
	if !ok {
		return
	}
	for i := range res.vehicles {
		if res.vehicles[i].ID == id {
			fn(&res.vehicles[i])
			return
		}
	}
}

func (res *serverResources) removePlayerAt(i int) {
	delete(res.playerHashes, hashPlayer(res.players[i].ID, res.players[i].Name))
	last := len(res.players) - 1
	if i != last {
		res.players[i] = res.players[last]
	}
	res.players = res.players[:last]
}

func (res *serverResources) removeVehicleAt(i int) {
	delete(res.vehicleHashes, hashVehicle(res.vehicles[i].ID, res.vehicles[i].Model))
	last := len(res.vehicles) - 1
	if i != last {
		res.vehicles[i] = res.vehicles[last]
	}
	res.vehicles = res.vehicles[:last]
}

// IncrementPlayerStream bumps the refcount of the bots streaming id.
func (p *WorldPool) IncrementPlayerStream(addr Addr, id uint16) {
	p.UpdatePlayer(addr, id, func(pl *WorldPlayer) { pl.StreamCount++ })
}

// DecrementPlayerStream drops the refcount; at zero the entry is removed
// via swap-with-last and its dedup hash is discarded.
func (p *WorldPool) DecrementPlayerStream(addr Addr, id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.servers[addr]
	if !ok {
		return
	}
	for i := range res.players {
		if res.players[i].ID == id {
			res.players[i].StreamCount--
			if res.players[i].StreamCount <= 0 {
				res.removePlayerAt(i)
			}
			return
		}
	}
}

// IncrementVehicleStream bumps the refcount of the bots streaming id.
func (p *WorldPool) IncrementVehicleStream(addr Addr, id uint16) {
	p.UpdateVehicle(addr, id, func(v *WorldVehicle) { v.StreamCount++ })
}

// DecrementVehicleStream drops the refcount; at zero the entry is removed.
func (p *WorldPool) DecrementVehicleStream(addr Addr, id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.servers[addr]
	if !ok {
		return
	}
	for i := range res.vehicles {
		if res.vehicles[i].ID == id {
			res.vehicles[i].StreamCount--
			if res.vehicles[i].StreamCount <= 0 {
				res.removeVehicleAt(i)
			}
			return
		}
	}
}

// RemovePlayerByID removes a player outright regardless of refcount.
func (p *WorldPool) RemovePlayerByID(addr Addr, id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.servers[addr]
	if !ok {
		return
	}
	for i := range res.players {
		if res.players[i].ID == id {
			res.removePlayerAt(i)
			return
		}
	}
}

// RemovePlayerByName removes a player outright by exact name.
func (p *WorldPool) RemovePlayerByName(addr Addr, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.servers[addr]
	if !ok {
		return
	}
	for i := range res.players {
		if res.players[i].Name == name {
			res.removePlayerAt(i)
			return
		}
	}
}

// PlayersInRange returns copies of the players within r of pos.
func (p *WorldPool) PlayersInRange(addr Addr, pos Vec3, r float64, includeNPCs bool) []WorldPlayer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res, ok := p.servers[addr]
	if !ok {
		return nil
	}
	rsq := r * r
	var out []WorldPlayer
	for i := range res.players {
		if !includeNPCs && res.players[i].IsNPC {
			continue
		}
		if res.players[i].Position.DistanceSq(pos) <= rsq {
			out = append(out, res.players[i])
		}
	}
	return out
}

// VehiclesInRange returns copies of the vehicles within r of pos.
func (p *WorldPool) VehiclesInRange(addr Addr, pos Vec3, r float64) []WorldVehicle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res, ok := p.servers[addr]
	if !ok {
		return nil
	}
	rsq := r * r
	var out []WorldVehicle
	for i := range res.vehicles {
		if res.vehicles[i].Position.DistanceSq(pos) <= rsq {
			out = append(out, res.vehicles[i])
		}
	}
	return out
}

// AllPlayers returns copies of every player entry on the server.
func (p *WorldPool) AllPlayers(addr Addr, includeNPCs bool) []WorldPlayer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res, ok := p.servers[addr]
	if !ok {
		return nil
	}
	var out []WorldPlayer
	for i := range res.players {
		if !includeNPCs && res.players[i].IsNPC {
			continue
		}
		out = append(out, res.players[i])
	}
	return out
}

// PlayerCount returns the number of cached players on the server.
func (p *WorldPool) PlayerCount(addr Addr) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if res, ok := p.servers[addr]; ok {
		return len(res.players)
	}
	return 0
}

// VehicleCount returns the number of cached vehicles on the server.
func (p *WorldPool) VehicleCount(addr Addr) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if res, ok := p.servers[addr]; ok {
		return len(res.vehicles)
	}
	return 0
}

// PlayerByID returns a copy of the entry for id.
func (p *WorldPool) PlayerByID(addr Addr, id uint16) (WorldPlayer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res, ok := p.servers[addr]
	if !ok {
		return WorldPlayer{}, false
	}
	for i := range res.players {
		if res.players[i].ID == id {
			return res.players[i], true
		}
	}
	return WorldPlayer{}, false
}
