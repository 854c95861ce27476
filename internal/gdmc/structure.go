package gdmc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"

	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
)

// PlaceStructureOpts mirror the mod's /structure placement parameters.
type PlaceStructureOpts struct {
	Rotation        int // degrees: 0, 90, 180, 270
	Mirror          string
	Pivot           *geometry.Vec3i
	IncludeEntities bool
	DoBlockUpdates  bool
	CustomFlags     string
}

// StructureInfo is what the proxy needs to know about an NBT structure
// before placing it: its footprint and rough contents.
type StructureInfo struct {
	Size        geometry.Vec3i `json:"size"`
	BlockCount  int            `json:"block_count"`
	EntityCount int            `json:"entity_count"`
	DataVersion int            `json:"data_version"`
}

// structureRoot is the subset of the vanilla structure template format
// the proxy inspects.
type structureRoot struct {
	Size        []int32 `nbt:"size"`
	DataVersion int32   `nbt:"DataVersion"`
	Blocks      []struct {
		Pos   []int32 `nbt:"pos"`
		State int32   `nbt:"state"`
	} `nbt:"blocks"`
	Entities []struct {
		Pos []float64 `nbt:"pos"`
	} `nbt:"entities"`
}

// InspectStructure decodes a structure payload (gzipped or raw NBT) and
// returns its declared size and contents. A payload that is not a
// structure template with a positive 3d size is rejected.
func InspectStructure(payload []byte) (StructureInfo, error) {
	raw, err := maybeGunzip(payload)
	if err != nil {
		return StructureInfo{}, fmt.Errorf("decompress structure: %w", err)
	}
	var root structureRoot
	if err := nbt.Unmarshal(raw, &root); err != nil {
		return StructureInfo{}, fmt.Errorf("decode structure nbt: %w", err)
	}
	if len(root.Size) != 3 {
		return StructureInfo{}, fmt.Errorf("structure nbt has no 3d size")
	}
	size := geometry.Vec3i{X: int(root.Size[0]), Y: int(root.Size[1]), Z: int(root.Size[2])}
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return StructureInfo{}, fmt.Errorf("structure size must be positive, got %s", size)
	}
	return StructureInfo{
		Size:        size,
		BlockCount:  len(root.Blocks),
		EntityCount: len(root.Entities),
		DataVersion: int(root.DataVersion),
	}, nil
}

// Footprint returns the world region the structure occupies when its
// origin is placed at pos, accounting for rotation in 90-degree steps
// (rotation swaps the X and Z extents for 90 and 270).
func (si StructureInfo) Footprint(pos geometry.Vec3i, rotation int) (geometry.Box, error) {
	size := si.Size
	switch ((rotation % 360) + 360) % 360 {
	case 0, 180:
	case 90, 270:
		size.X, size.Z = size.Z, size.X
	default:
		return geometry.Box{}, fmt.Errorf("rotation must be a multiple of 90, got %d", rotation)
	}
	return geometry.NewBox(pos, size)
}

// GetStructure exports the box as a gzipped NBT structure template.
func (c *Client) GetStructure(ctx context.Context, box geometry.Box, includeEntities bool) ([]byte, error) {
	q := boxQuery(box)
	q.Set("entities", strconv.FormatBool(includeEntities))
	raw, err := c.do(ctx, http.MethodGet, "/structure", q, "", nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty structure response")
	}
	return raw, nil
}

// PlaceStructure writes an NBT structure payload at pos.
func (c *Client) PlaceStructure(ctx context.Context, pos geometry.Vec3i, payload []byte, opts PlaceStructureOpts) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty structure payload")
	}
	q := url.Values{}
	q.Set("x", strconv.Itoa(pos.X))
	q.Set("y", strconv.Itoa(pos.Y))
	q.Set("z", strconv.Itoa(pos.Z))
	switch ((opts.Rotation % 360) + 360) % 360 {
	case 0:
		q.Set("rotate", "0")
	case 90:
		q.Set("rotate", "1")
	case 180:
		q.Set("rotate", "2")
	case 270:
		q.Set("rotate", "3")
	default:
		return fmt.Errorf("rotation must be a multiple of 90, got %d", opts.Rotation)
	}
	if opts.Mirror != "" {
		q.Set("mirror", opts.Mirror)
	}
	if opts.Pivot != nil {
		q.Set("pivotx", strconv.Itoa(opts.Pivot.X))
		q.Set("pivoty", strconv.Itoa(opts.Pivot.Y))
		q.Set("pivotz", strconv.Itoa(opts.Pivot.Z))
	}
	q.Set("entities", strconv.FormatBool(opts.IncludeEntities))
	q.Set("doBlockUpdates", strconv.FormatBool(opts.DoBlockUpdates))
	if opts.CustomFlags != "" {
		q.Set("customFlags", opts.CustomFlags)
	}
	_, err := c.do(ctx, http.MethodPost, "/structure", q, "application/octet-stream", bytes.NewReader(payload))
	return err
}

func maybeGunzip(b []byte) ([]byte, error) {
	if len(b) < 2 || b[0] != 0x1f || b[1] != 0x8b {
		return b, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Gzip compresses a raw NBT payload the way the mod expects uploads.
func Gzip(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
