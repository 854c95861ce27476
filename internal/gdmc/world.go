package gdmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
)

// buildAreaDTO is the mod's /buildarea response; the To corner is
// exclusive, matching the Box convention.
type buildAreaDTO struct {
	XFrom int `json:"xFrom"`
	YFrom int `json:"yFrom"`
	ZFrom int `json:"zFrom"`
	XTo   int `json:"xTo"`
	YTo   int `json:"yTo"`
	ZTo   int `json:"zTo"`
}

// BuildArea fetches the authorized build region.
func (c *Client) BuildArea(ctx context.Context) (geometry.Box, error) {
	raw, err := c.do(ctx, http.MethodGet, "/buildarea", nil, "", nil)
	if err != nil {
		return geometry.Box{}, err
	}
	var dto buildAreaDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return geometry.Box{}, fmt.Errorf("decode buildarea: %w", err)
	}
	box, err := geometry.BoxFromCorners(
		geometry.Vec3i{X: dto.XFrom, Y: dto.YFrom, Z: dto.ZFrom},
		geometry.Vec3i{X: dto.XTo, Y: dto.YTo, Z: dto.ZTo},
	)
	if err != nil {
		return geometry.Box{}, fmt.Errorf("buildarea from server is degenerate: %w", err)
	}
	return box, nil
}

// Player is one online player as reported by the mod.
type Player struct {
	Name     string         `json:"name"`
	Position geometry.Vec3i `json:"position"`
	Data     map[string]any `json:"data,omitempty"`
}

// Players lists online players and their block positions.
func (c *Client) Players(ctx context.Context) ([]Player, error) {
	raw, err := c.do(ctx, http.MethodGet, "/players", nil, "", nil)
	if err != nil {
		return nil, err
	}
	var dto []struct {
		Name     string         `json:"name"`
		Position []float64      `json:"position"`
		Data     map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	out := make([]Player, 0, len(dto))
	for _, p := range dto {
		pl := Player{Name: p.Name, Data: p.Data}
		if len(p.Position) == 3 {
			pl.Position = geometry.Vec3i{X: int(p.Position[0]), Y: int(p.Position[1]), Z: int(p.Position[2])}
		}
		out = append(out, pl)
	}
	return out, nil
}

// Command runs one or more Minecraft commands (newline separated) and
// returns the per-command result lines.
func (c *Client) Command(ctx context.Context, commands string) ([]CommandResult, error) {
	commands = strings.TrimSpace(commands)
	if commands == "" {
		return nil, fmt.Errorf("empty command")
	}
	raw, err := c.do(ctx, http.MethodPost, "/command", nil, "text/plain", strings.NewReader(commands))
	if err != nil {
		return nil, err
	}
	var dto []CommandResult
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("decode command results: %w", err)
	}
	return dto, nil
}

type CommandResult struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// Heightmap fetches y-values over an XZ rectangle. The result is indexed
// rows[x][z] relative to the rectangle origin.
func (c *Client) Heightmap(ctx context.Context, originX, originZ, sizeX, sizeZ int, kind string) ([][]int, error) {
	if sizeX <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("heightmap size must be positive, got %dx%d", sizeX, sizeZ)
	}
	if kind == "" {
		kind = "WORLD_SURFACE"
	}
	q := url.Values{}
	q.Set("x", strconv.Itoa(originX))
	q.Set("z", strconv.Itoa(originZ))
	q.Set("dx", strconv.Itoa(sizeX))
	q.Set("dz", strconv.Itoa(sizeZ))
	q.Set("type", kind)
	raw, err := c.do(ctx, http.MethodGet, "/heightmap", q, "", nil)
	if err != nil {
		return nil, err
	}
	var rows [][]int
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode heightmap: %w", err)
	}
	if len(rows) != sizeX {
		return nil, fmt.Errorf("heightmap rows=%d want %d", len(rows), sizeX)
	}
	for i, r := range rows {
		if len(r) != sizeZ {
			return nil, fmt.Errorf("heightmap row %d cols=%d want %d", i, len(r), sizeZ)
		}
	}
	return rows, nil
}
