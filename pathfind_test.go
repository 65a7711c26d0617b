package botmaster

import (
	"math"
	"testing"
)

func TestFlatWorldRaycast(t *testing.T) {
	w := FlatWorld{GroundZ: 0}

	hit, ok := w.Raycast(Vec3{X: 0, Y: 0, Z: 10}, Vec3{X: 10, Y: 0, Z: -10})
	if !ok {
		t.Fatal("downward ray missed the ground plane")
	}
	if math.Abs(hit.X-5) > 1e-9 || hit.Z != 0 {
		t.Errorf("hit = %v, want {5 0 0}", hit)
	}

	if _, ok := w.Raycast(Vec3{Z: 5}, Vec3{X: 10, Z: 3}); ok {
		t.Error("ray fully above the plane reported a hit")
	}
}

func TestGroundZ(t *testing.T) {
	if got := GroundZ(FlatWorld{GroundZ: 3.5}, 12, -7); got != 3.5 {
		t.Errorf("GroundZ = %v, want 3.5", got)
	}
}

func TestFindPathFlatGround(t *testing.T) {
	from := Vec3{X: 0, Y: 0, Z: 0}
	to := Vec3{X: 20, Y: 0, Z: 0}
	path := FindPath(FlatWorld{}, from, to)
	if len(path) < 2 {
		t.Fatalf("path has %d points, want at least 2", len(path))
	}
	if path[0] != from {
		t.Errorf("path starts at %v, want %v", path[0], from)
	}
	if path[len(path)-1] != to {
		t.Errorf("path ends at %v, want %v", path[len(path)-1], to)
	}
}

func TestFindPathSpanTooLarge(t *testing.T) {
	if got := FindPath(FlatWorld{}, Vec3{}, Vec3{X: maxPathSpan + 1}); got != nil {
		t.Errorf("oversized span produced a path of %d points", len(got))
	}
}

// cliffWorld has flat ground at z=0 for x < 5 and z=10 beyond, with no
// slope in between. Nothing can step across the ledge.
type cliffWorld struct{}

func (cliffWorld) Raycast(from, to Vec3) (Vec3, bool) {
	z := 0.0
	if from.X >= 5 {
		z = 10
	}
	if from.Z >= z == (to.Z >= z) {
		return Vec3{}, false
	}
	return Vec3{X: from.X, Y: from.Y, Z: z}, true
}

func TestFindPathUnreachable(t *testing.T) {
	from := Vec3{X: 0, Y: 0, Z: 0}
	to := Vec3{X: 10, Y: 0, Z: 10}
	if got := FindPath(cliffWorld{}, from, to); got != nil {
		t.Errorf("path found across a %v-unit ledge: %v", 10, got)
	}
}
