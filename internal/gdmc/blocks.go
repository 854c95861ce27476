package gdmc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
)

// BlockAt is one block cell with its absolute position.
type BlockAt struct {
	ID    string            `json:"id"`
	X     int               `json:"x"`
	Y     int               `json:"y"`
	Z     int               `json:"z"`
	State map[string]string `json:"state,omitempty"`
}

func boxQuery(box geometry.Box) url.Values {
	q := url.Values{}
	q.Set("x", strconv.Itoa(box.Offset.X))
	q.Set("y", strconv.Itoa(box.Offset.Y))
	q.Set("z", strconv.Itoa(box.Offset.Z))
	q.Set("dx", strconv.Itoa(box.Size.X))
	q.Set("dy", strconv.Itoa(box.Size.Y))
	q.Set("dz", strconv.Itoa(box.Size.Z))
	return q
}

// GetBlocks reads every block in the box.
func (c *Client) GetBlocks(ctx context.Context, box geometry.Box) ([]BlockAt, error) {
	raw, err := c.do(ctx, http.MethodGet, "/blocks", boxQuery(box), "", nil)
	if err != nil {
		return nil, err
	}
	var blocks []BlockAt
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return blocks, nil
}

// PlaceBlocks writes blocks into the box. With a single id the box is
// filled; otherwise len(blocks) must equal the box volume and the ids
// are laid out x-major, then y, then z (the mod's /blocks order).
// Returns the number of cells the server acknowledged as changed.
func (c *Client) PlaceBlocks(ctx context.Context, box geometry.Box, blocks []string, doBlockUpdates bool) (int, error) {
	vol := box.Volume()
	switch {
	case len(blocks) == 0:
		return 0, fmt.Errorf("no blocks given")
	case len(blocks) == 1:
		// fill
	case len(blocks) != vol:
		return 0, fmt.Errorf("block list length %d does not match box volume %d", len(blocks), vol)
	}

	cells := make([]BlockAt, 0, vol)
	i := 0
	for x := 0; x < box.Size.X; x++ {
		for y := 0; y < box.Size.Y; y++ {
			for z := 0; z < box.Size.Z; z++ {
				id := blocks[0]
				if len(blocks) == vol && vol > 1 {
					id = blocks[i]
				}
				cells = append(cells, BlockAt{
					ID: id,
					X:  box.Offset.X + x,
					Y:  box.Offset.Y + y,
					Z:  box.Offset.Z + z,
				})
				i++
			}
		}
	}

	body, err := json.Marshal(cells)
	if err != nil {
		return 0, err
	}
	q := url.Values{}
	q.Set("doBlockUpdates", strconv.FormatBool(doBlockUpdates))
	raw, err := c.do(ctx, http.MethodPut, "/blocks", q, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	// The mod answers one status per submitted cell: 1 changed, 0 kept.
	var results []json.Number
	if err := json.Unmarshal(raw, &results); err != nil {
		return 0, fmt.Errorf("decode place results: %w", err)
	}
	placed := 0
	for _, r := range results {
		if n, err := r.Int64(); err == nil && n == 1 {
			placed++
		}
	}
	return placed, nil
}
