package botmaster

import "math"

// Raycaster is the collision oracle. Raycast returns the first hit point
// between from and to, if any.
type Raycaster interface {
	Raycast(from, to Vec3) (Vec3, bool)
}

// FlatWorld is a trivial Raycaster for servers without collision data:
// the world is an infinite plane at GroundZ. Downward rays hit the plane;
// rays that stay above it hit nothing.
type FlatWorld struct {
	GroundZ float64
}

func (w FlatWorld) Raycast(from, to Vec3) (Vec3, bool) {
	if from.Z >= w.GroundZ == (to.Z >= w.GroundZ) {
		return Vec3{}, false
	}
	t := (w.GroundZ - from.Z) / (to.Z - from.Z)
	return Vec3{
		X: from.X + (to.X-from.X)*t,
		Y: from.Y + (to.Y-from.Y)*t,
		Z: w.GroundZ,
	}, true
}

// GroundZ projects (x, y) straight down onto the world and returns the
// hit height, or 0 when nothing is below.
func GroundZ(rc Raycaster, x, y float64) float64 {
	hit, ok := rc.Raycast(Vec3{x, y, 1000}, Vec3{x, y, -1000})
	if !ok {
		return 0
	}
	return hit.Z
}

// maxPathSpan is the largest from-to distance the path finder accepts.
const maxPathSpan = 150.0

// FindPath samples walkable ground points on a disc between from and to,
// connects points whose heights are close enough to step between, and
// BFS-walks from the start to the goal. The returned polyline includes
// both endpoints; it is empty when the span is too large or the goal is
// unreachable.
func FindPath(rc Raycaster, from, to Vec3) []Vec3 {
	if from.Distance(to) > maxPathSpan {
		return nil
	}

	cx := (from.X + to.X) / 2
	cy := (from.Y + to.Y) / 2
	dx := from.X - to.X
	dy := from.Y - to.Y
	radius := math.Sqrt(dx*dx + dy*dy)
	const spacing = 1.0

	var points []Vec3
	for x := -radius; x <= radius; x += spacing {
		for y := -radius; y <= radius; y += spacing {
			if math.Sqrt(x*x+y*y) > radius {
				continue
			}
			px, py := cx+x, cy+y
			if hit, ok := rc.Raycast(Vec3{px, py, 1000}, Vec3{px, py, -1000}); ok {
				points = append(points, hit)
			}
		}
	}

	// Endpoints go last so their indices are stable: n-2 = from, n-1 = to.
	points = append(points, from, to)
	n := len(points)

	edges := make([][]bool, n)
	for i := range edges {
		edges[i] = make([]bool, n)
	}
	const maxStep = 1.08
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			if math.Abs(points[i].Z-points[j].Z) < maxStep {
				edges[i][j] = true
				edges[j][i] = true
			}
		}
	}

	visited := make([]bool, n)
	prev := make([]int, n)
	for i := range prev {
		prev[i] = -1
	}

	queue := []int{n - 2}
	visited[n-2] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for v := 0; v < n; v++ {
			if edges[u][v] && !visited[v] {
				visited[v] = true
				prev[v] = u
				queue = append(queue, v)
			}
		}
	}

	if !visited[n-1] {
		return nil
	}

	var path []Vec3
	for at := n - 1; at != -1; at = prev[at] {
		path = append(path, points[at])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
