package graph

// Universe indexes star systems by name with their coordinates.
// There are no stargates here: any two systems are directly reachable.
type Universe struct {
	// Pos maps system name -> coordinates
	Pos map[string]Point
}

// NewUniverse creates an empty Universe with initialized maps.
func NewUniverse() *Universe {
	return &Universe{
		Pos: make(map[string]Point),
	}
}

// AddSystem registers (or moves) a system.
func (u *Universe) AddSystem(name string, p Point) {
	u.Pos[name] = p
}

// SystemsWithinRadius returns all systems whose distance from origin is <= radius,
// mapped to that distance. The origin itself is included at distance 0.
// Returns nil if origin is unknown.
func (u *Universe) SystemsWithinRadius(origin string, radius float64) map[string]float64 {
	o, ok := u.Pos[origin]
	if !ok {
		return nil
	}
	result := make(map[string]float64)
	for name, p := range u.Pos {
		if d := Distance(o, p); d <= radius {
			result[name] = d
		}
	}
	return result
}
