// Package geometry holds the integer block-space primitives shared by the
// world proxy: positions, axis-aligned boxes, and the containment checks
// that gate every write against the authorized build area.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Vec3i is an integer 3-vector in block coordinates.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// ErrInvalidSize reports a box whose size is not strictly positive on
// every axis. Such a box is rejected at construction so a containment
// check can never run against a degenerate region.
var ErrInvalidSize = errors.New("box size must be positive on all axes")

// Box is an axis-aligned block region. Offset is the inclusive minimum
// corner and Size the extent per axis; the contained coordinates run
// [Offset, Offset+Size) on each axis.
type Box struct {
	Offset Vec3i `json:"offset"`
	Size   Vec3i `json:"size"`
}

// NewBox builds a box from its minimum corner and size.
func NewBox(offset, size Vec3i) (Box, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return Box{}, fmt.Errorf("%w: got %s", ErrInvalidSize, size)
	}
	return Box{Offset: offset, Size: size}, nil
}

// BoxFromCorners builds a box from its inclusive minimum corner and
// exclusive maximum corner.
func BoxFromCorners(from, to Vec3i) (Box, error) {
	return NewBox(from, to.Sub(from))
}

// End returns the exclusive maximum corner, Offset+Size.
func (b Box) End() Vec3i { return b.Offset.Add(b.Size) }

// Last returns the inclusive maximum corner, the highest coordinate
// still inside the box on every axis.
func (b Box) Last() Vec3i { return b.End().Sub(Vec3i{1, 1, 1}) }

// Volume returns the number of block positions inside the box.
func (b Box) Volume() int { return b.Size.X * b.Size.Y * b.Size.Z }

func (b Box) String() string { return fmt.Sprintf("box[offset=%s size=%s]", b.Offset, b.Size) }

// Contains reports whether p lies inside the box: at or above the
// minimum corner and strictly below the exclusive maximum on every axis.
func (b Box) Contains(p Vec3i) bool {
	return p.X >= b.Offset.X && p.X < b.Offset.X+b.Size.X &&
		p.Y >= b.Offset.Y && p.Y < b.Offset.Y+b.Size.Y &&
		p.Z >= b.Offset.Z && p.Z < b.Offset.Z+b.Size.Z
}

// ContainsBox reports whether o lies entirely inside b. Both the minimum
// corner and the inclusive maximum corner of o must test inside, so a box
// that merely touches b's exclusive upper boundary counts as inside while
// any overhang counts as outside.
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Offset) && b.Contains(o.Last())
}

// ParseVec3i interprets loosely-typed decoded JSON as an integer
// 3-vector: either a 3-element array of integers or an object with
// x/y/z fields. Non-integer numbers are rejected.
func ParseVec3i(v any) (Vec3i, error) {
	switch t := v.(type) {
	case []any:
		if len(t) != 3 {
			return Vec3i{}, fmt.Errorf("want 3 coordinates, got %d", len(t))
		}
		x, err := toInt(t[0])
		if err != nil {
			return Vec3i{}, fmt.Errorf("x: %w", err)
		}
		y, err := toInt(t[1])
		if err != nil {
			return Vec3i{}, fmt.Errorf("y: %w", err)
		}
		z, err := toInt(t[2])
		if err != nil {
			return Vec3i{}, fmt.Errorf("z: %w", err)
		}
		return Vec3i{x, y, z}, nil
	case map[string]any:
		x, err := toInt(t["x"])
		if err != nil {
			return Vec3i{}, fmt.Errorf("x: %w", err)
		}
		y, err := toInt(t["y"])
		if err != nil {
			return Vec3i{}, fmt.Errorf("y: %w", err)
		}
		z, err := toInt(t["z"])
		if err != nil {
			return Vec3i{}, fmt.Errorf("z: %w", err)
		}
		return Vec3i{x, y, z}, nil
	default:
		return Vec3i{}, fmt.Errorf("cannot interpret %T as a 3-vector", v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("coordinate %v is not an integer", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case nil:
		return 0, errors.New("coordinate missing")
	default:
		return 0, fmt.Errorf("coordinate %v (%T) is not an integer", v, v)
	}
}
