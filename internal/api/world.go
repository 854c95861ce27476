package api

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/natea/minecraft-mcp-gdpc/internal/gdmc"
	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
)

func (s *Server) handleBuildArea(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw, http.MethodGet)
		return
	}
	area, err := s.buildArea.Get(r.Context())
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"offset": area.Offset,
		"size":   area.Size,
		"end":    area.End(),
	})
}

func (s *Server) handlePlayers(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw, http.MethodGet)
		return
	}
	players, err := s.world.Players(r.Context())
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	if players == nil {
		players = []gdmc.Player{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"players": players})
}

func (s *Server) handleBlocks(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getBlocks(rw, r)
	case http.MethodPost:
		s.placeBlocks(rw, r)
	default:
		methodNotAllowed(rw, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) getBlocks(rw http.ResponseWriter, r *http.Request) {
	box, ok := queryBox(rw, r)
	if !ok {
		return
	}
	blocks, err := s.world.GetBlocks(r.Context(), box)
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	if blocks == nil {
		blocks = []gdmc.BlockAt{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"blocks": blocks, "total": len(blocks)})
}

type placeBlocksRequest struct {
	Start          any      `json:"start"`
	End            any      `json:"end"`
	Blocks         []string `json:"blocks"`
	DoBlockUpdates *bool    `json:"do_block_updates"`
}

func (s *Server) placeBlocks(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(rw, r)
	if !ok {
		return
	}
	var req placeBlocksRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	start, err := geometry.ParseVec3i(req.Start)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "start: "+err.Error())
		return
	}
	end, err := geometry.ParseVec3i(req.End)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "end: "+err.Error())
		return
	}
	box, err := geometry.BoxFromCorners(start, end)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if len(req.Blocks) == 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "blocks must not be empty")
		return
	}
	if len(req.Blocks) != 1 && len(req.Blocks) != box.Volume() {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest,
			"blocks must hold one id or exactly "+strconv.Itoa(box.Volume())+" entries")
		return
	}
	ev := protocol.OperationEvent{
		ID:     uuid.NewString(),
		Kind:   protocol.OpBlocks,
		UserID: user.ID,
		Region: &box,
	}
	if !s.checkBounds(rw, r, &ev, box) {
		return
	}
	doUpdates := true
	if req.DoBlockUpdates != nil {
		doUpdates = *req.DoBlockUpdates
	}
	placed, err := s.world.PlaceBlocks(r.Context(), box, req.Blocks, doUpdates)
	if err != nil {
		ev.ErrorCode = protocol.ErrWorldUnavailable
		s.recordOp(ev)
		writeWorldError(rw, err)
		return
	}
	ev.OK = true
	ev.BlockCount = placed
	s.recordOp(ev)
	writeJSON(rw, http.StatusOK, map[string]any{
		"operation_id": ev.ID,
		"placed":       placed,
		"requested":    box.Volume(),
	})
}

type commandRequest struct {
	Commands []string `json:"commands"`
}

func (s *Server) handleCommand(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(rw, http.MethodPost)
		return
	}
	var req commandRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if len(req.Commands) == 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "commands must not be empty")
		return
	}
	user := userFrom(r)
	ev := protocol.OperationEvent{
		ID:     uuid.NewString(),
		Kind:   protocol.OpCommand,
		UserID: user.ID,
	}
	results, err := s.world.Command(r.Context(), strings.Join(req.Commands, "\n"))
	if err != nil {
		ev.ErrorCode = protocol.ErrWorldUnavailable
		s.recordOp(ev)
		writeWorldError(rw, err)
		return
	}
	ev.OK = true
	s.recordOp(ev)
	writeJSON(rw, http.StatusOK, map[string]any{
		"operation_id": ev.ID,
		"results":      results,
	})
}

func (s *Server) handleHeightmap(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(rw, http.MethodGet)
		return
	}
	q := r.URL.Query()
	x, err1 := queryInt(q.Get("x"), 0)
	z, err2 := queryInt(q.Get("z"), 0)
	dx, err3 := queryInt(q.Get("dx"), 0)
	dz, err4 := queryInt(q.Get("dz"), 0)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "x, z, dx, dz must be integers")
		return
	}
	if dx <= 0 || dz <= 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "dx and dz must be positive")
		return
	}
	kind := q.Get("type")
	heights, err := s.world.Heightmap(r.Context(), x, z, dx, dz, kind)
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"heightmap": heights})
}

func (s *Server) handleStructure(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.exportStructure(rw, r)
	case http.MethodPost:
		s.placeStructure(rw, r)
	default:
		methodNotAllowed(rw, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) exportStructure(rw http.ResponseWriter, r *http.Request) {
	box, ok := queryBox(rw, r)
	if !ok {
		return
	}
	area, err := s.buildArea.Get(r.Context())
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	if !area.ContainsBox(box) {
		writeError(rw, http.StatusBadRequest, protocol.ErrOutOfBounds,
			"export region "+box.String()+" exceeds build area "+area.String())
		return
	}
	entities := strings.EqualFold(r.URL.Query().Get("entities"), "true")
	data, err := s.world.GetStructure(r.Context(), box, entities)
	if err != nil {
		writeWorldError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.WriteHeader(http.StatusOK)
	rw.Write(data)
}

type placeStructureRequest struct {
	Position       any    `json:"position"`
	NBT            string `json:"nbt_b64"`
	Rotation       int    `json:"rotation"`
	Mirror         string `json:"mirror"`
	Pivot          any    `json:"pivot"`
	Entities       bool   `json:"include_entities"`
	DoBlockUpdates *bool  `json:"do_block_updates"`
}

func (s *Server) placeStructure(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(rw, r)
	if !ok {
		return
	}
	var req placeStructureRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	pos, err := geometry.ParseVec3i(req.Position)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "position: "+err.Error())
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.NBT)
	if err != nil || len(raw) == 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "nbt_b64 must be non-empty base64")
		return
	}
	info, err := gdmc.InspectStructure(raw)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "structure NBT: "+err.Error())
		return
	}
	footprint, err := info.Footprint(pos, req.Rotation)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	ev := protocol.OperationEvent{
		ID:         uuid.NewString(),
		Kind:       protocol.OpStructure,
		UserID:     user.ID,
		Region:     &footprint,
		BlockCount: info.BlockCount,
	}
	if !s.checkBounds(rw, r, &ev, footprint) {
		return
	}
	opts := gdmc.PlaceStructureOpts{
		Rotation:        req.Rotation,
		Mirror:          req.Mirror,
		IncludeEntities: req.Entities,
		DoBlockUpdates:  req.DoBlockUpdates == nil || *req.DoBlockUpdates,
	}
	if req.Pivot != nil {
		pivot, err := geometry.ParseVec3i(req.Pivot)
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "pivot: "+err.Error())
			return
		}
		opts.Pivot = &pivot
	}
	if err := s.world.PlaceStructure(r.Context(), pos, raw, opts); err != nil {
		ev.ErrorCode = protocol.ErrWorldUnavailable
		s.recordOp(ev)
		writeWorldError(rw, err)
		return
	}
	ev.OK = true
	s.recordOp(ev)
	writeJSON(rw, http.StatusOK, map[string]any{
		"operation_id": ev.ID,
		"footprint":    footprint,
		"blocks":       info.BlockCount,
		"entities":     info.EntityCount,
	})
}

// checkBounds resolves the build area and verifies the write region fits
// inside it, recording and publishing the rejection when it does not.
func (s *Server) checkBounds(rw http.ResponseWriter, r *http.Request, ev *protocol.OperationEvent, box geometry.Box) bool {
	area, err := s.buildArea.Get(r.Context())
	if err != nil {
		writeWorldError(rw, err)
		return false
	}
	if !area.ContainsBox(box) {
		ev.ErrorCode = protocol.ErrOutOfBounds
		s.recordOp(*ev)
		writeErrorDetails(rw, http.StatusBadRequest, protocol.ErrOutOfBounds,
			"region exceeds build area", map[string]any{
				"region":     box,
				"build_area": area,
			})
		return false
	}
	return true
}

func queryBox(rw http.ResponseWriter, r *http.Request) (geometry.Box, bool) {
	q := r.URL.Query()
	x, err1 := queryInt(q.Get("x"), 0)
	y, err2 := queryInt(q.Get("y"), 0)
	z, err3 := queryInt(q.Get("z"), 0)
	dx, err4 := queryInt(q.Get("dx"), 1)
	dy, err5 := queryInt(q.Get("dy"), 1)
	dz, err6 := queryInt(q.Get("dz"), 1)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "x, y, z, dx, dy, dz must be integers")
			return geometry.Box{}, false
		}
	}
	box, err := geometry.NewBox(geometry.Vec3i{X: x, Y: y, Z: z}, geometry.Vec3i{X: dx, Y: dy, Z: dz})
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return geometry.Box{}, false
	}
	return box, true
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
