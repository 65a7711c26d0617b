package botmaster

import (
	"math"
	"sync"
)

const (
	maxPickups = 4096
	maxObjects = 1000
	maxLabels  = 1024

	// labelCellSize is the edge length of one spatial-hash cell.
	labelCellSize = 2.0
)

// Pickup is one streamed pickup.
type Pickup struct {
	ID       int
	Model    int
	Type     int
	Position Vec3
}

// Object is one streamed world object.
type Object struct {
	ID           int
	Model        int
	Position     Vec3
	MaterialText string
}

// Label is one streamed 3D text label. AttachedPlayer/AttachedVehicle are
// -1 when the label floats freely.
type Label struct {
	ID              int
	Text            string
	Position        Vec3
	AttachedPlayer  int
	AttachedVehicle int
}

// gridCoord addresses one cell of the label spatial hash.
type gridCoord struct {
	X, Y, Z int
}

func cellOf(pos Vec3) gridCoord {
	return gridCoord{
		X: int(math.Floor(pos.X / labelCellSize)),
		Y: int(math.Floor(pos.Y / labelCellSize)),
		Z: int(math.Floor(pos.Z / labelCellSize)),
	}
}

// StreamPool is the per-bot cache of pickups, objects and labels streamed
// in by the server. Dense arrays with id-to-index maps give O(1) removal;
// labels additionally live in a spatial hash and two attachment indices.
// The pool is touched from the tick loop and from tool handlers, so every
// operation locks.
type StreamPool struct {
	mu sync.RWMutex

	pickups     []Pickup
	pickupIndex map[int]int

	objects     []Object
	objectIndex map[int]int

	labels        []Label
	labelIndex    map[int]int
	labelGrid     map[gridCoord][]int
	playerLabels  map[int][]int
	vehicleLabels map[int][]int
}

// NewStreamPool returns an empty pool.
func NewStreamPool() *StreamPool {
	p := &StreamPool{}
	p.reset()
	return p
}

func (p *StreamPool) reset() {
	p.pickups = nil
	p.pickupIndex = make(map[int]int)
	p.objects = nil
	p.objectIndex = make(map[int]int)
	p.labels = nil
	p.labelIndex = make(map[int]int)
	p.labelGrid = make(map[gridCoord][]int)
	p.playerLabels = make(map[int][]int)
	p.vehicleLabels = make(map[int][]int)
}

// Clear drops everything; called when the bot's connection resets.
func (p *StreamPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// AddPickup inserts or replaces the pickup with the same id.
func (p *StreamPool) AddPickup(pk Pickup) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.pickupIndex[pk.ID]; ok {
		p.pickups[i] = pk
		return
	}
	if len(p.pickups) >= maxPickups {
		return
	}
	p.pickupIndex[pk.ID] = len(p.pickups)
	p.pickups = append(p.pickups, pk)
}

// RemovePickup removes by id; missing ids are no-ops.
func (p *StreamPool) RemovePickup(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.pickupIndex[id]
	if !ok {
		return
	}
	last := len(p.pickups) - 1
	if i != last {
		p.pickups[i] = p.pickups[last]
		p.pickupIndex[p.pickups[i].ID] = i
	}
	p.pickups = p.pickups[:last]
	delete(p.pickupIndex, id)
}

// PickupByID returns a copy of the pickup with id.
func (p *StreamPool) PickupByID(id int) (Pickup, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.pickupIndex[id]; ok {
		return p.pickups[i], true
	}
	return Pickup{}, false
}

// PickupsInRange returns copies of pickups within r of pos.
func (p *StreamPool) PickupsInRange(pos Vec3, r float64) []Pickup {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rsq := r * r
	var out []Pickup
	for i := range p.pickups {
		if p.pickups[i].Position.DistanceSq(pos) <= rsq {
			out = append(out, p.pickups[i])
		}
	}
	return out
}

// PickupCount returns the number of cached pickups.
func (p *StreamPool) PickupCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pickups)
}

// AddObject inserts or replaces the object with the same id.
func (p *StreamPool) AddObject(o Object) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.objectIndex[o.ID]; ok {
		p.objects[i] = o
		return
	}
	if len(p.objects) >= maxObjects {
		return
	}
	p.objectIndex[o.ID] = len(p.objects)
	p.objects = append(p.objects, o)
}

// RemoveObject removes by id; missing ids are no-ops.
func (p *StreamPool) RemoveObject(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.objectIndex[id]
	if !ok {
		return
	}
	last := len(p.objects) - 1
	if i != last {
		p.objects[i] = p.objects[last]
		p.objectIndex[p.objects[i].ID] = i
	}
	p.objects = p.objects[:last]
	delete(p.objectIndex, id)
}

// SetObjectMaterialText attaches display text to an object.
func (p *StreamPool) SetObjectMaterialText(id int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.objectIndex[id]; ok {
		p.objects[i].MaterialText = text
	}
}

// ObjectsInRange returns copies of objects within r of pos.
func (p *StreamPool) ObjectsInRange(pos Vec3, r float64) []Object {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rsq := r * r
	var out []Object
	for i := range p.objects {
		if p.objects[i].Position.DistanceSq(pos) <= rsq {
			out = append(out, p.objects[i])
		}
	}
	return out
}

// ObjectCount returns the number of cached objects.
func (p *StreamPool) ObjectCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.objects)
}

func removeIndex(list []int, idx int) []int {
	for i, v := range list {
		if v == idx {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// indexLabel inserts the label at index i into the spatial hash and the
// attachment indices.
func (p *StreamPool) indexLabel(l Label, i int) {
	cell := cellOf(l.Position)
	p.labelGrid[cell] = append(p.labelGrid[cell], i)
	if l.AttachedPlayer != -1 {
		p.playerLabels[l.AttachedPlayer] = append(p.playerLabels[l.AttachedPlayer], i)
	}
	if l.AttachedVehicle != -1 {
		p.vehicleLabels[l.AttachedVehicle] = append(p.vehicleLabels[l.AttachedVehicle], i)
	}
}

// unindexLabel removes the label at index i from the spatial hash and the
// attachment indices.
func (p *StreamPool) unindexLabel(l Label, i int) {
	cell := cellOf(l.Position)
	p.labelGrid[cell] = removeIndex(p.labelGrid[cell], i)
	if len(p.labelGrid[cell]) == 0 {
		delete(p.labelGrid, cell)
	}
	if l.AttachedPlayer != -1 {
		p.playerLabels[l.AttachedPlayer] = removeIndex(p.playerLabels[l.AttachedPlayer], i)
		if len(p.playerLabels[l.AttachedPlayer]) == 0 {
			delete(p.playerLabels, l.AttachedPlayer)
		}
	}
	if l.AttachedVehicle != -1 {
		p.vehicleLabels[l.AttachedVehicle] = removeIndex(p.vehicleLabels[l.AttachedVehicle], i)
		if len(p.vehicleLabels[l.AttachedVehicle]) == 0 {
			delete(p.vehicleLabels, l.AttachedVehicle)
		}
	}
}

// AddLabel inserts a label; an existing label with the same id is replaced
// in place, keeping all secondary indices consistent.
func (p *StreamPool) AddLabel(l Label) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.labelIndex[l.ID]; ok {
		p.unindexLabel(p.labels[i], i)
		p.labels[i] = l
		p.indexLabel(l, i)
		return
	}
	if len(p.labels) >= maxLabels {
		return
	}
	i := len(p.labels)
	p.labelIndex[l.ID] = i
	p.labels = append(p.labels, l)
	p.indexLabel(l, i)
}

// RemoveLabel removes by id. The removed label leaves all three secondary
// structures; if another label is swapped into its slot, that label's
// entries are removed under the old index and re-inserted exactly once
// under the new one.
func (p *StreamPool) RemoveLabel(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.labelIndex[id]
	if !ok {
		return
	}
	p.unindexLabel(p.labels[i], i)
	delete(p.labelIndex, id)

	last := len(p.labels) - 1
	if i != last {
		moved := p.labels[last]
		p.unindexLabel(moved, last)
		p.labels[i] = moved
		p.labelIndex[moved.ID] = i
		p.indexLabel(moved, i)
	}
	p.labels = p.labels[:last]
}

// LabelByID returns a copy of the label with id.
func (p *StreamPool) LabelByID(id int) (Label, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.labelIndex[id]; ok {
		return p.labels[i], true
	}
	return Label{}, false
}

// LabelsInRange returns copies of labels within r of pos using the
// spatial hash: it scans the cell neighborhood covering r and then
// applies an exact squared-distance filter.
func (p *StreamPool) LabelsInRange(pos Vec3, r float64) []Label {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cells := int(math.Ceil(r / labelCellSize))
	center := cellOf(pos)
	rsq := r * r
	var out []Label
	for dx := -cells; dx <= cells; dx++ {
		for dy := -cells; dy <= cells; dy++ {
			for dz := -cells; dz <= cells; dz++ {
				cell := gridCoord{center.X + dx, center.Y + dy, center.Z + dz}
				for _, i := range p.labelGrid[cell] {
					if p.labels[i].Position.DistanceSq(pos) <= rsq {
						out = append(out, p.labels[i])
					}
				}
			}
		}
	}
	return out
}

// LabelsInRangeLinear is the brute-force variant, used where the radius
// is large relative to the cell size.
func (p *StreamPool) LabelsInRangeLinear(pos Vec3, r float64) []Label {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rsq := r * r
	var out []Label
	for i := range p.labels {
		if p.labels[i].Position.DistanceSq(pos) <= rsq {
			out = append(out, p.labels[i])
		}
	}
	return out
}

// LabelsAttachedToPlayer returns copies of labels attached to player id.
func (p *StreamPool) LabelsAttachedToPlayer(id int) []Label {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Label
	for _, i := range p.playerLabels[id] {
		out = append(out, p.labels[i])
	}
	return out
}

// LabelsAttachedToVehicle returns copies of labels attached to vehicle id.
func (p *StreamPool) LabelsAttachedToVehicle(id int) []Label {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Label
	for _, i := range p.vehicleLabels[id] {
		out = append(out, p.labels[i])
	}
	return out
}

// LabelCount returns the number of cached labels.
func (p *StreamPool) LabelCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.labels)
}

// labelIndexSpan counts indices referenced across the grid and attachment
// maps; exposed for consistency checks in tests.
func (p *StreamPool) labelIndexSpan() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, idxs := range p.labelGrid {
		n += len(idxs)
	}
	return n
}
