// Package coord holds the integer geometry shared by the lattice model,
// the trace codec and the simulator: voxel coordinates, coordinate
// differences and axis-aligned regions.
package coord

// Axis values carry their wire encoding (01=x, 10=y, 11=z).
type Axis uint8

const (
	AxisX Axis = 1
	AxisY Axis = 2
	AxisZ Axis = 3
)

func (a Axis) Valid() bool { return a >= AxisX && a <= AxisZ }

// Coord is a voxel position inside an R-sided lattice.
type Coord struct {
	X, Y, Z int
}

// Diff is the difference between two coordinates.
type Diff struct {
	X, Y, Z int
}

func (c Coord) Add(d Diff) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y, Z: c.Z + d.Z}
}

func (c Coord) Sub(o Coord) Diff {
	return Diff{X: c.X - o.X, Y: c.Y - o.Y, Z: c.Z - o.Z}
}

func (c Coord) IsAdjacent(o Coord) bool {
	return c.Sub(o).L1() == 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// L1 is the Manhattan length.
func (d Diff) L1() int { return abs(d.X) + abs(d.Y) + abs(d.Z) }

// LInf is the Chebyshev length.
func (d Diff) LInf() int {
	m := abs(d.X)
	if abs(d.Y) > m {
		m = abs(d.Y)
	}
	if abs(d.Z) > m {
		m = abs(d.Z)
	}
	return m
}

func (d Diff) IsZero() bool { return d.X == 0 && d.Y == 0 && d.Z == 0 }

func (d Diff) Neg() Diff { return Diff{X: -d.X, Y: -d.Y, Z: -d.Z} }

// IsNear reports whether d is a near coordinate difference: Chebyshev
// length exactly 1 and Manhattan length at most 2.
func (d Diff) IsNear() bool {
	return d.LInf() == 1 && d.L1() >= 1 && d.L1() <= 2
}

// IsLinear reports whether d moves along exactly one axis.
func (d Diff) IsLinear() bool {
	nz := 0
	if d.X != 0 {
		nz++
	}
	if d.Y != 0 {
		nz++
	}
	if d.Z != 0 {
		nz++
	}
	return nz == 1
}

// Linear is an axis-aligned displacement, the operand of move commands.
type Linear struct {
	Axis Axis
	Len  int
}

func (l Linear) Diff() Diff {
	switch l.Axis {
	case AxisX:
		return Diff{X: l.Len}
	case AxisY:
		return Diff{Y: l.Len}
	default:
		return Diff{Z: l.Len}
	}
}

// LinearOf decomposes a single-axis diff. ok is false when d is zero or
// not axis-aligned.
func LinearOf(d Diff) (Linear, bool) {
	if !d.IsLinear() {
		return Linear{}, false
	}
	switch {
	case d.X != 0:
		return Linear{Axis: AxisX, Len: d.X}, true
	case d.Y != 0:
		return Linear{Axis: AxisY, Len: d.Y}, true
	default:
		return Linear{Axis: AxisZ, Len: d.Z}, true
	}
}

// Region is an axis-aligned box, kept normalized (Min <= Max per axis).
type Region struct {
	Min, Max Coord
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func RegionFromCorners(a, b Coord) Region {
	return Region{
		Min: Coord{X: min2(a.X, b.X), Y: min2(a.Y, b.Y), Z: min2(a.Z, b.Z)},
		Max: Coord{X: max2(a.X, b.X), Y: max2(a.Y, b.Y), Z: max2(a.Z, b.Z)},
	}
}

func (r Region) Contains(c Coord) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X &&
		c.Y >= r.Min.Y && c.Y <= r.Max.Y &&
		c.Z >= r.Min.Z && c.Z <= r.Max.Z
}

func (r Region) Intersects(o Region) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y &&
		r.Min.Z <= o.Max.Z && o.Min.Z <= r.Max.Z
}

// Dimension is the number of axes along which the region extends:
// 0 point, 1 line, 2 plane, 3 box.
func (r Region) Dimension() int {
	d := 0
	if r.Min.X != r.Max.X {
		d++
	}
	if r.Min.Y != r.Max.Y {
		d++
	}
	if r.Min.Z != r.Max.Z {
		d++
	}
	return d
}

func (r Region) Volume() int {
	return (r.Max.X - r.Min.X + 1) * (r.Max.Y - r.Min.Y + 1) * (r.Max.Z - r.Min.Z + 1)
}

// Corners returns the distinct corner coordinates of the region
// (2^Dimension of them).
func (r Region) Corners() []Coord {
	xs := []int{r.Min.X}
	if r.Max.X != r.Min.X {
		xs = append(xs, r.Max.X)
	}
	ys := []int{r.Min.Y}
	if r.Max.Y != r.Min.Y {
		ys = append(ys, r.Max.Y)
	}
	zs := []int{r.Min.Z}
	if r.Max.Z != r.Min.Z {
		zs = append(zs, r.Max.Z)
	}
	out := make([]Coord, 0, len(xs)*len(ys)*len(zs))
	for _, x := range xs {
		for _, y := range ys {
			for _, z := range zs {
				out = append(out, Coord{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// Voxels enumerates every coordinate in the region in x-major order.
func (r Region) Voxels() []Coord {
	out := make([]Coord, 0, r.Volume())
	for x := r.Min.X; x <= r.Max.X; x++ {
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for z := r.Min.Z; z <= r.Max.Z; z++ {
				out = append(out, Coord{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}
