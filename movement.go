package botmaster

import (
	"math"
	"math/rand/v2"
	"time"
)

// Movement types. Auto picks the speed matching the type.
const (
	MoveTypeAuto = -1
	MoveTypeNone = iota - 1
	MoveTypeWalk
	MoveTypeRun
	MoveTypeSprint
	MoveTypeDrive
)

// Movement speeds in game units per 100 ms.
const (
	MoveSpeedAuto   = -1.0
	MoveSpeedWalk   = 0.1552086
	MoveSpeedRun    = 0.56444
	MoveSpeedSprint = 0.926
)

// Key bits carried in the onfoot sync.
const (
	keySprint   uint16 = 0x8
	keyWalk     uint16 = 0x400
	keyAnalogUp uint16 = 0xFF80
)

// Go starts moving toward point. Radius jitters the destination, speed
// MoveSpeedAuto derives from moveType, distOffset stops short of the
// target by that many units, and stopDelay keeps the bot walking that
// much longer past the computed arrival time.
func (b *Bot) Go(point Vec3, moveType int, radius float64, setAngle bool, speed, distOffset float64, stopDelay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.goLocked(point, moveType, radius, setAngle, speed, distOffset, stopDelay)
}

func (b *Bot) goLocked(point Vec3, moveType int, radius float64, setAngle bool, speed, distOffset float64, stopDelay time.Duration) {
	if speed == MoveSpeedAuto {
		switch moveType {
		case MoveTypeWalk:
			speed = MoveSpeedWalk
		case MoveTypeSprint:
			speed = MoveSpeedSprint
		default:
			speed = MoveSpeedRun
		}
	}

	b.udAnalog = keyAnalogUp
	b.keys = 0
	switch moveType {
	case MoveTypeWalk:
		b.keys |= keyWalk
	case MoveTypeSprint:
		b.keys |= keySprint
	}

	b.moveType = moveType
	b.moveSpeed = speed
	b.moveStopDelay = stopDelay
	b.updateMovingData(point, radius, setAngle, speed, distOffset)
}

// updateMovingData computes the velocity vector and travel time for the
// current destination. Callers hold the lock.
func (b *Bot) updateMovingData(dest Vec3, radius float64, setAngle bool, speed, distOffset float64) {
	if radius != 0 {
		dest.X += (rand.Float64()*2 - 1) * radius
		dest.Y += (rand.Float64()*2 - 1) * radius
	}

	front := dest.Sub(b.position)
	dist := front.Length()
	if distOffset != 0 && dist > distOffset {
		dest = b.position.Add(front.Normalize().Scale(dist - distOffset))
		front = dest.Sub(b.position)
		dist = front.Length()
	}

	angle := math.Atan2(front.Y, front.X)*180/math.Pi + 270
	for angle >= 360 {
		angle -= 360
	}
	for angle < 0 {
		angle += 360
	}
	if setAngle {
		b.angle = angle
	}

	if dist == 0 {
		b.stopLocked()
		return
	}

	// Speed is units per 100 ms; velocity is integrated per millisecond.
	b.velocity = front.Normalize().Scale(speed / 100)
	b.moveDuration = time.Duration(dist/b.velocity.Length()) * time.Millisecond
	b.destination = dest
	now := b.now()
	b.moveStart = now
	b.lastMoveTick = now
	b.flags |= FlagMoving
}

// advanceMovement integrates the position and handles arrival. Callers
// hold the lock.
func (b *Bot) advanceMovement(now time.Time) {
	elapsed := now.Sub(b.lastMoveTick)
	if elapsed <= 0 {
		return
	}
	b.lastMoveTick = now
	b.position = b.position.Add(b.velocity.Scale(float64(elapsed.Milliseconds())))

	if now.Sub(b.moveStart) <= b.moveDuration+b.moveStopDelay {
		return
	}

	b.position = b.destination
	if b.movepath != nil && b.movepath.Status() == MovepathActive {
		if next, ok := b.movepath.Advance(); ok {
			b.goLocked(next, b.movepathType, 0, true, b.movepathSpeed, 0, 0)
			return
		}
	}
	b.stopLocked()
}

// Stop halts movement immediately.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *Bot) stopLocked() {
	b.velocity = Vec3{}
	b.keys = 0
	b.udAnalog = 0
	b.lrAnalog = 0
	b.moveDuration = 0
	b.flags &^= FlagMoving
}

// IsMoving reports whether the bot is walking toward a destination.
func (b *Bot) IsMoving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags&FlagMoving != 0
}

// GoWithPath walks to dest, path-finding around height changes when a
// straight walk is blocked. A failed search is surfaced as an important
// event rather than an error so the LLM sees it on the next snapshot.
func (b *Bot) GoWithPath(dest Vec3, moveType int, speed float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.position
	if _, hit := b.raycast.Raycast(from, dest); !hit && math.Abs(dest.Z-from.Z) < 3 {
		b.goLocked(dest, moveType, 0, true, speed, 0, 0)
		return
	}

	path := FindPath(b.raycast, from, dest)
	if len(path) == 0 {
		b.appendEvent("Pathfinder failed! Target too far or the goal too complex!")
		return
	}

	b.movepath = newMovepath(path, false)
	b.movepathType = moveType
	b.movepathSpeed = speed
	b.movepath.Start()
	if wp, ok := b.movepath.Current(); ok {
		b.goLocked(wp, moveType, 0, true, speed, 0, 0)
	}
}

// CreateMovepath installs a waypoint route without starting it.
func (b *Bot) CreateMovepath(waypoints []Vec3, looping bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.movepath = newMovepath(waypoints, looping)
	b.movepathType = MoveTypeRun
	b.movepathSpeed = MoveSpeedRun
}

// StartMovepath begins walking the installed route.
func (b *Bot) StartMovepath() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.movepath == nil || !b.movepath.Start() {
		return false
	}
	if wp, ok := b.movepath.Current(); ok {
		b.goLocked(wp, b.movepathType, 0, true, b.movepathSpeed, 0, 0)
	}
	return true
}

// PauseMovepath halts the route walk in place.
func (b *Bot) PauseMovepath() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.movepath != nil {
		b.movepath.Pause()
		b.stopLocked()
	}
}

// ResumeMovepath continues a paused route from the current waypoint.
func (b *Bot) ResumeMovepath() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.movepath == nil {
		return
	}
	b.movepath.Resume()
	if wp, ok := b.movepath.Current(); ok {
		b.goLocked(wp, b.movepathType, 0, true, b.movepathSpeed, 0, 0)
	}
}

// StopMovepath abandons the route.
func (b *Bot) StopMovepath() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.movepath != nil {
		b.movepath.Stop()
	}
	b.stopLocked()
}

// MovepathState returns the route status for status output.
func (b *Bot) MovepathState() (MovepathStatus, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.movepath == nil {
		return MovepathInactive, 0, 0
	}
	return b.movepath.Status(), b.movepath.CurrentIndex(), b.movepath.Len()
}

// Kill puts the bot into the death state and reports it to the server.
func (b *Bot) Kill(reason, killerID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.killLocked(reason, killerID)
}

func (b *Bot) killLocked(reason, killerID int) {
	if b.flags&FlagDead != 0 {
		return
	}
	b.stopLocked()
	b.health = 0
	b.flags |= FlagDead
	b.deathAt = b.now()
	b.sendOnFoot()
	w := NewWriter().U8(uint8(reason)).U16(uint16(killerID))
	b.transport.SendRPC(RPCDeath, w.Bytes(), ReliableOrdered)
	b.appendEvent("You died (" + WeaponName(reason) + ")")
}

// sendOnFoot emits one onfoot sync packet. Callers hold the lock.
func (b *Bot) sendOnFoot() {
	rad := b.angle * math.Pi / 180
	qw := math.Cos(rad / 2)
	qz := -math.Sin(rad / 2)

	w := NewWriter().
		U16(b.lrAnalog).
		U16(b.udAnalog).
		U16(b.keys).
		Vec3(b.position).
		F32(qw).F32(0).F32(0).F32(qz).
		U8(uint8(clampByte(b.health))).
		U8(uint8(clampByte(b.armor))).
		U8(uint8(b.weapon)).
		U8(0).
		Vec3(b.velocity).
		Vec3(Vec3{}).
		U16(0).
		U32(0)
	b.transport.SendSync(SyncPlayer, w.Bytes())
}

func clampByte(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
