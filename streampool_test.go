package botmaster

import (
	"fmt"
	"testing"
)

func TestStreamPoolPickups(t *testing.T) {
	p := NewStreamPool()
	p.AddPickup(Pickup{ID: 1, Model: 1240, Position: Vec3{X: 1}})
	p.AddPickup(Pickup{ID: 2, Model: 1241, Position: Vec3{X: 50}})

	if got := p.PickupCount(); got != 2 {
		t.Fatalf("PickupCount = %d, want 2", got)
	}

	p.RemovePickup(1)
	if _, ok := p.PickupByID(1); ok {
		t.Error("pickup 1 still present")
	}
	pk, ok := p.PickupByID(2)
	if !ok || pk.Model != 1241 {
		t.Errorf("pickup 2 lost after swap-delete: %+v ok=%v", pk, ok)
	}
}

func TestStreamPoolPickupCap(t *testing.T) {
	p := NewStreamPool()
	for i := 0; i < maxPickups+10; i++ {
		p.AddPickup(Pickup{ID: i})
	}
	if got := p.PickupCount(); got != maxPickups {
		t.Fatalf("PickupCount = %d, want %d", got, maxPickups)
	}
}

func TestStreamPoolObjects(t *testing.T) {
	p := NewStreamPool()
	p.AddObject(Object{ID: 1, Model: 1337, Position: Vec3{X: 2}})
	p.SetObjectMaterialText(1, "Bank")

	objs := p.ObjectsInRange(Vec3{}, 10)
	if len(objs) != 1 || objs[0].MaterialText != "Bank" {
		t.Errorf("ObjectsInRange = %+v", objs)
	}

	p.RemoveObject(1)
	if got := p.ObjectCount(); got != 0 {
		t.Errorf("ObjectCount = %d, want 0", got)
	}
}

func TestStreamPoolLabelReplace(t *testing.T) {
	p := NewStreamPool()
	p.AddLabel(Label{ID: 1, Text: "old", Position: Vec3{X: 1}, AttachedPlayer: -1, AttachedVehicle: -1})
	p.AddLabel(Label{ID: 1, Text: "new", Position: Vec3{X: 100}, AttachedPlayer: -1, AttachedVehicle: -1})

	if got := p.LabelCount(); got != 1 {
		t.Fatalf("LabelCount = %d, want 1", got)
	}
	l, ok := p.LabelByID(1)
	if !ok || l.Text != "new" {
		t.Errorf("label not replaced: %+v", l)
	}
	// The old grid cell must not still reference the label.
	if got := p.LabelsInRange(Vec3{X: 1}, 1); len(got) != 0 {
		t.Errorf("stale grid entry at old position: %v", got)
	}
	if got := p.LabelsInRange(Vec3{X: 100}, 1); len(got) != 1 {
		t.Errorf("label missing at new position: %v", got)
	}
}

// Removing a label swaps the last one into its slot; the moved label
// must stay indexed exactly once.
func TestStreamPoolLabelRemoveReindex(t *testing.T) {
	p := NewStreamPool()
	for i := 0; i < 10; i++ {
		p.AddLabel(Label{
			ID:              i,
			Text:            fmt.Sprintf("label %d", i),
			Position:        Vec3{X: float64(i) * 10},
			AttachedPlayer:  i % 3,
			AttachedVehicle: -1,
		})
	}

	p.RemoveLabel(0)
	p.RemoveLabel(5)

	if got := p.LabelCount(); got != 8 {
		t.Fatalf("LabelCount = %d, want 8", got)
	}
	if span, count := p.labelIndexSpan(), p.LabelCount(); span != count {
		t.Fatalf("grid index holds %d entries for %d labels", span, count)
	}
	for _, id := range []int{1, 2, 3, 4, 6, 7, 8, 9} {
		l, ok := p.LabelByID(id)
		if !ok {
			t.Fatalf("label %d lost", id)
		}
		if got := p.LabelsInRange(l.Position, 1); len(got) != 1 || got[0].ID != id {
			t.Errorf("label %d not findable at its position: %v", id, got)
		}
	}
}

func TestStreamPoolLabelAttachments(t *testing.T) {
	p := NewStreamPool()
	p.AddLabel(Label{ID: 1, Text: "a", AttachedPlayer: 7, AttachedVehicle: -1})
	p.AddLabel(Label{ID: 2, Text: "b", AttachedPlayer: 7, AttachedVehicle: -1})
	p.AddLabel(Label{ID: 3, Text: "c", AttachedPlayer: -1, AttachedVehicle: 4})

	if got := p.LabelsAttachedToPlayer(7); len(got) != 2 {
		t.Errorf("player attachments = %d, want 2", len(got))
	}
	if got := p.LabelsAttachedToVehicle(4); len(got) != 1 {
		t.Errorf("vehicle attachments = %d, want 1", len(got))
	}

	p.RemoveLabel(1)
	if got := p.LabelsAttachedToPlayer(7); len(got) != 1 {
		t.Errorf("player attachments after removal = %d, want 1", len(got))
	}
}

func TestStreamPoolLabelRangeMatchesLinear(t *testing.T) {
	p := NewStreamPool()
	for i := 0; i < 50; i++ {
		p.AddLabel(Label{
			ID:              i,
			Position:        Vec3{X: float64(i%10) * 3, Y: float64(i / 10), Z: 0},
			AttachedPlayer:  -1,
			AttachedVehicle: -1,
		})
	}
	center := Vec3{X: 10, Y: 2}
	grid := p.LabelsInRange(center, 8)
	linear := p.LabelsInRangeLinear(center, 8)
	if len(grid) != len(linear) {
		t.Errorf("grid query found %d labels, linear found %d", len(grid), len(linear))
	}
}

func TestStreamPoolClear(t *testing.T) {
	p := NewStreamPool()
	p.AddPickup(Pickup{ID: 1})
	p.AddObject(Object{ID: 1})
	p.AddLabel(Label{ID: 1, AttachedPlayer: -1, AttachedVehicle: -1})
	p.Clear()
	if p.PickupCount()+p.ObjectCount()+p.LabelCount() != 0 {
		t.Error("Clear left entries behind")
	}
}
