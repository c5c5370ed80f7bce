// Package model implements the voxel lattice: a cubic bit-per-cell grid
// with the reference serialized layout, plus the grounding predicate the
// simulator checks at halt.
package model

import (
	"errors"
	"fmt"
	"io"

	"matterswarm/internal/coord"
)

// MaxResolution is the largest lattice side the reference format allows.
const MaxResolution = 250

var ErrMalformedModel = errors.New("malformed model")

// Matrix is a cubic lattice of side r. Voxel (x,y,z) lives at bit index
// x*r*r + y*r + z; bit j of byte i covers index 8*i+j. This layout is the
// wire format and must stay bit-exact.
type Matrix struct {
	r    int
	bits []byte
}

func New(r int) (*Matrix, error) {
	if r < 1 || r > MaxResolution {
		return nil, fmt.Errorf("resolution %d out of range [1,%d]: %w", r, MaxResolution, ErrMalformedModel)
	}
	total := r * r * r
	return &Matrix{r: r, bits: make([]byte, (total+7)/8)}, nil
}

func (m *Matrix) R() int { return m.r }

func (m *Matrix) Inside(c coord.Coord) bool {
	return c.X >= 0 && c.X < m.r && c.Y >= 0 && c.Y < m.r && c.Z >= 0 && c.Z < m.r
}

func (m *Matrix) index(c coord.Coord) int {
	return c.X*m.r*m.r + c.Y*m.r + c.Z
}

func (m *Matrix) Filled(c coord.Coord) bool {
	i := m.index(c)
	return m.bits[i/8]&(1<<uint(i%8)) != 0
}

func (m *Matrix) Fill(c coord.Coord) {
	i := m.index(c)
	m.bits[i/8] |= 1 << uint(i%8)
}

func (m *Matrix) Void(c coord.Coord) {
	i := m.index(c)
	m.bits[i/8] &^= 1 << uint(i%8)
}

func (m *Matrix) Clone() *Matrix {
	bits := make([]byte, len(m.bits))
	copy(bits, m.bits)
	return &Matrix{r: m.r, bits: bits}
}

// EmptyLike returns an all-Empty matrix of the same resolution.
func (m *Matrix) EmptyLike() *Matrix {
	return &Matrix{r: m.r, bits: make([]byte, len(m.bits))}
}

func (m *Matrix) Equal(o *Matrix) bool {
	_, diff := m.FirstDiff(o)
	return !diff
}

// FirstDiff returns the first coordinate, in x-major order, where the two
// matrices disagree. The second return is false when they are identical.
func (m *Matrix) FirstDiff(o *Matrix) (coord.Coord, bool) {
	if o == nil || m.r != o.r {
		return coord.Coord{}, true
	}
	for x := 0; x < m.r; x++ {
		for y := 0; y < m.r; y++ {
			for z := 0; z < m.r; z++ {
				c := coord.Coord{X: x, Y: y, Z: z}
				if m.Filled(c) != o.Filled(c) {
					return c, true
				}
			}
		}
	}
	return coord.Coord{}, false
}

// FilledVoxels enumerates every Full cell in x-major order.
func (m *Matrix) FilledVoxels() []coord.Coord {
	var out []coord.Coord
	for x := 0; x < m.r; x++ {
		for y := 0; y < m.r; y++ {
			for z := 0; z < m.r; z++ {
				c := coord.Coord{X: x, Y: y, Z: z}
				if m.Filled(c) {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// BoundingRegion is the tightest region covering every Full cell. ok is
// false for an all-Empty matrix.
func (m *Matrix) BoundingRegion() (coord.Region, bool) {
	voxels := m.FilledVoxels()
	if len(voxels) == 0 {
		return coord.Region{}, false
	}
	lo, hi := voxels[0], voxels[0]
	for _, c := range voxels[1:] {
		lo = coord.Coord{X: min(lo.X, c.X), Y: min(lo.Y, c.Y), Z: min(lo.Z, c.Z)}
		hi = coord.Coord{X: max(hi.X, c.X), Y: max(hi.Y, c.Y), Z: max(hi.Z, c.Z)}
	}
	return coord.Region{Min: lo, Max: hi}, true
}

// Grounded reports whether every Full cell reaches the y=0 layer through a
// chain of face-adjacent Full cells.
func (m *Matrix) Grounded() bool {
	total := 0
	var frontier []coord.Coord
	seen := make(map[coord.Coord]bool)
	for x := 0; x < m.r; x++ {
		for y := 0; y < m.r; y++ {
			for z := 0; z < m.r; z++ {
				c := coord.Coord{X: x, Y: y, Z: z}
				if !m.Filled(c) {
					continue
				}
				total++
				if y == 0 {
					frontier = append(frontier, c)
					seen[c] = true
				}
			}
		}
	}
	reached := len(frontier)
	steps := []coord.Diff{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	for len(frontier) > 0 {
		c := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, d := range steps {
			n := c.Add(d)
			if !m.Inside(n) || seen[n] || !m.Filled(n) {
				continue
			}
			seen[n] = true
			reached++
			frontier = append(frontier, n)
		}
	}
	return reached == total
}

// Decode reads the serialized form: one resolution byte, then ceil(R^3/8)
// voxel bytes. Trailing bytes are malformed.
func Decode(r io.Reader) (*Matrix, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("resolution byte: %v: %w", err, ErrMalformedModel)
	}
	m, err := New(int(hdr[0]))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, m.bits); err != nil {
		return nil, fmt.Errorf("voxel bytes: %v: %w", err, ErrMalformedModel)
	}
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("trailing bytes after voxel data: %w", ErrMalformedModel)
	}
	return m, nil
}

func Encode(w io.Writer, m *Matrix) error {
	if _, err := w.Write([]byte{byte(m.r)}); err != nil {
		return err
	}
	_, err := w.Write(m.bits)
	return err
}
