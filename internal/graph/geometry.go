package graph

import "math"

// Point is a position in galactic coordinates (light years).
type Point struct {
	X, Y, Z float64
}

// Distance returns the straight-line distance between two points.
// It is symmetric and Distance(p, p) == 0.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
