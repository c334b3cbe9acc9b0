package drag

import (
	"math"

	"github.com/nibzard/taskboard-go/internal/task"
)

// Point is a position in screen cells.
type Point struct {
	X, Y int
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Rect is an axis-aligned area; Max is exclusive.
type Rect struct {
	Min, Max Point
}

// RectAt builds a rect from its top-left corner and size.
func RectAt(x, y, w, h int) Rect {
	return Rect{Min: Point{X: x, Y: y}, Max: Point{X: x + w, Y: y + h}}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Distance is the Euclidean distance from p to the nearest cell of r; zero
// when p is inside.
func (r Rect) Distance(p Point) float64 {
	if r.Empty() {
		return math.Inf(1)
	}
	dx := axisGap(p.X, r.Min.X, r.Max.X-1)
	dy := axisGap(p.Y, r.Min.Y, r.Max.Y-1)
	return math.Hypot(float64(dx), float64(dy))
}

func axisGap(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}

// RegionKind tells column regions from card regions.
type RegionKind int

const (
	RegionColumn RegionKind = iota
	RegionCard
)

// Region is a drop target on screen. Dropping on a card means dropping on
// the card's column.
type Region struct {
	Kind   RegionKind
	Status task.Status
	TaskID int64 // RegionCard only
	Rect   Rect
}

// Resolver picks the drop target for a pointer position.
type Resolver func(p Point, regions []Region) (Region, bool)

// ClosestRegion returns a resolver that picks the region nearest to the
// pointer, within maxDistance cells. Ties go to the leftmost column
// (TO_DO, then DOING, then DONE), then to column regions over cards.
func ClosestRegion(maxDistance float64) Resolver {
	return func(p Point, regions []Region) (Region, bool) {
		var (
			best  Region
			bestD = math.Inf(1)
			found bool
		)
		for _, r := range regions {
			d := r.Rect.Distance(p)
			if d > maxDistance {
				continue
			}
			if !found || d < bestD || (d == bestD && before(r, best)) {
				best, bestD, found = r, d, true
			}
		}
		return best, found
	}
}

func before(a, b Region) bool {
	ai, bi := a.Status.Index(), b.Status.Index()
	if ai != bi {
		return ai < bi
	}
	return a.Kind == RegionColumn && b.Kind != RegionColumn
}

// ColumnAt is a resolver that only accepts pointers strictly inside a region.
func ColumnAt(p Point, regions []Region) (Region, bool) {
	return ClosestRegion(0)(p, regions)
}
