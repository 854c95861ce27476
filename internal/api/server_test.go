package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tnze/go-mc/nbt"

	"github.com/natea/minecraft-mcp-gdpc/internal/events"
	"github.com/natea/minecraft-mcp-gdpc/internal/gdmc"
	"github.com/natea/minecraft-mcp-gdpc/internal/opsindex"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
)

// worldStub fakes the Minecraft HTTP mod. The build area is the cube
// (0,0,0)..(100,100,100), To exclusive.
func worldStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `"1.20.4"`)
	})
	mux.HandleFunc("/buildarea", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"xFrom":0,"yFrom":0,"zFrom":0,"xTo":100,"yTo":100,"zTo":100}`)
	})
	mux.HandleFunc("/players", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"steve","position":[1.5,64.0,-3.2]}]`)
	})
	mux.HandleFunc("/blocks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var cells []map[string]any
			if err := json.NewDecoder(r.Body).Decode(&cells); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			results := make([]int, len(cells))
			for i := range results {
				results[i] = 1
			}
			json.NewEncoder(w).Encode(results)
			return
		}
		fmt.Fprint(w, `[{"id":"minecraft:stone","x":1,"y":2,"z":3}]`)
	})
	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n := len(strings.Split(strings.TrimSpace(string(body)), "\n"))
		results := make([]map[string]any, n)
		for i := range results {
			results[i] = map[string]any{"status": 1, "message": "ok"}
		}
		json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("/heightmap", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[64,64],[65,63]]`)
	})
	mux.HandleFunc("/structure", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"status":1}`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x0a, 0x00, 0x00})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestAPI wires a full Server against the given upstreams. backendURL
// may be empty to run without Supabase.
func newTestAPI(t *testing.T, worldURL, backendURL string) (*httptest.Server, *opsindex.Index) {
	t.Helper()
	world, err := gdmc.New(worldURL, 2*time.Second)
	if err != nil {
		t.Fatalf("gdmc.New: %v", err)
	}
	opts := Options{
		World:           world,
		BuildArea:       gdmc.NewBuildAreaCache(world, time.Minute),
		Bus:             events.NewBus(),
		BlueprintBucket: "blueprints",
		AssetBucket:     "assets",
		CORSOrigins:     []string{"*"},
	}
	if backendURL != "" {
		backend, err := supabase.New(backendURL, "test-anon-key", "")
		if err != nil {
			t.Fatalf("supabase client: %v", err)
		}
		opts.Backend = backend
	}
	idx, err := opsindex.Open(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("opsindex.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	opts.Ops = idx

	srv := NewServer(opts, log.New(io.Discard, "", 0))
	mux := http.NewServeMux()
	srv.Routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, idx
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestStatusConnected(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := getJSON(t, api.URL+"/v1/status", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	if got["status"] != "connected" || got["minecraft_version"] != "1.20.4" {
		t.Fatalf("unexpected status body %v", got)
	}
}

func TestBuildAreaEndpoint(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got struct {
		Offset map[string]int `json:"offset"`
		Size   map[string]int `json:"size"`
		End    map[string]int `json:"end"`
	}
	getJSON(t, api.URL+"/v1/world/buildarea", &got)
	if got.Offset["x"] != 0 || got.Size["x"] != 100 || got.End["x"] != 100 {
		t.Fatalf("unexpected build area %+v", got)
	}
}

func TestPlaceBlocksInsideBounds(t *testing.T) {
	world := worldStub(t)
	api, idx := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/blocks", map[string]any{
		"start":  []int{10, 10, 10},
		"end":    []int{12, 12, 12},
		"blocks": []string{"minecraft:stone"},
	}, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, got)
	}
	if got["placed"].(float64) != 8 || got["requested"].(float64) != 8 {
		t.Fatalf("unexpected placement counts %v", got)
	}
	if got["operation_id"] == "" {
		t.Fatalf("missing operation id")
	}

	idx.Flush()
	ops, err := idx.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ops) != 1 || !ops[0].OK || ops[0].Kind != "blocks" {
		t.Fatalf("unexpected recorded ops %+v", ops)
	}
}

func TestPlaceBlocksOutOfBounds(t *testing.T) {
	world := worldStub(t)
	api, idx := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/blocks", map[string]any{
		"start":  []int{95, 0, 0},
		"end":    []int{105, 5, 5},
		"blocks": []string{"minecraft:stone"},
	}, &got)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, got); code != "E_OUT_OF_BOUNDS" {
		t.Fatalf("error code %q", code)
	}

	idx.Flush()
	ops, err := idx.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ops) != 1 || ops[0].OK || ops[0].ErrorCode != "E_OUT_OF_BOUNDS" {
		t.Fatalf("rejection not recorded: %+v", ops)
	}
}

func TestPlaceBlocksEdgeTouching(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	// [90,100) hugs the exclusive upper face and must be accepted.
	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/blocks", map[string]any{
		"start":  []int{90, 90, 90},
		"end":    []int{100, 100, 100},
		"blocks": []string{"minecraft:glass"},
	}, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edge-touching box rejected: %d %v", resp.StatusCode, got)
	}
}

func TestPlaceBlocksDegenerateBox(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/blocks", map[string]any{
		"start":  []int{5, 5, 5},
		"end":    []int{5, 10, 10},
		"blocks": []string{"minecraft:stone"},
	}, &got)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, got); code != "E_BAD_REQUEST" {
		t.Fatalf("error code %q", code)
	}
}

func TestPlaceBlocksCellCountMismatch(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/blocks", map[string]any{
		"start":  []int{0, 0, 0},
		"end":    []int{2, 2, 2},
		"blocks": []string{"minecraft:stone", "minecraft:dirt"},
	}, &got)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestGetBlocks(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := getJSON(t, api.URL+"/v1/world/blocks?x=1&y=2&z=3&dx=2&dy=2&dz=2", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if got["total"].(float64) != 1 {
		t.Fatalf("unexpected blocks %v", got)
	}
}

func TestCommandEndpoint(t *testing.T) {
	world := worldStub(t)
	api, idx := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/command", map[string]any{
		"commands": []string{"time set day", "weather clear"},
	}, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, got)
	}
	results := got["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}

	idx.Flush()
	ops, _ := idx.Recent(10)
	if len(ops) != 1 || ops[0].Kind != "command" {
		t.Fatalf("command not recorded: %+v", ops)
	}
}

func TestHeightmapEndpoint(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got struct {
		Heightmap [][]int `json:"heightmap"`
	}
	resp := getJSON(t, api.URL+"/v1/world/heightmap?x=0&z=0&dx=2&dz=2", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(got.Heightmap) != 2 || got.Heightmap[0][0] != 64 {
		t.Fatalf("unexpected heightmap %v", got.Heightmap)
	}
}

func testStructureB64(t *testing.T, sx, sy, sz int) string {
	t.Helper()
	type blockEntry struct {
		Pos   []int32 `nbt:"pos"`
		State int32   `nbt:"state"`
	}
	root := struct {
		Size        []int32      `nbt:"size"`
		DataVersion int32        `nbt:"DataVersion"`
		Blocks      []blockEntry `nbt:"blocks"`
	}{
		Size:        []int32{int32(sx), int32(sy), int32(sz)},
		DataVersion: 3578,
		Blocks:      []blockEntry{{Pos: []int32{0, 0, 0}}},
	}
	raw, err := nbt.Marshal(root)
	if err != nil {
		t.Fatalf("nbt.Marshal: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestPlaceStructure(t *testing.T) {
	world := worldStub(t)
	api, idx := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/structure", map[string]any{
		"position": []int{10, 10, 10},
		"nbt_b64":  testStructureB64(t, 5, 4, 3),
	}, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, got)
	}
	fp := got["footprint"].(map[string]any)
	size := fp["size"].(map[string]any)
	if size["x"].(float64) != 5 || size["z"].(float64) != 3 {
		t.Fatalf("unexpected footprint %v", fp)
	}

	idx.Flush()
	ops, _ := idx.Recent(10)
	if len(ops) != 1 || ops[0].Kind != "structure" || !ops[0].OK {
		t.Fatalf("structure not recorded: %+v", ops)
	}
}

func TestPlaceStructureRotatedOutOfBounds(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	// 20x4x3 fits unrotated at x=85 but rotating 90 degrees swaps the
	// footprint to 3x4x20 along z, pushing it past the build area at z=85.
	var got map[string]any
	resp := postJSON(t, api.URL+"/v1/world/structure", map[string]any{
		"position": []int{0, 10, 85},
		"nbt_b64":  testStructureB64(t, 20, 4, 3),
		"rotation": 90,
	}, &got)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, got); code != "E_OUT_OF_BOUNDS" {
		t.Fatalf("error code %q", code)
	}
}

func TestStructureExportOutOfBounds(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	var got map[string]any
	resp := getJSON(t, api.URL+"/v1/world/structure?x=-5&y=0&z=0&dx=10&dy=10&dz=10", &got)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, got); code != "E_OUT_OF_BOUNDS" {
		t.Fatalf("error code %q", code)
	}
}

func TestOperationsEndpoint(t *testing.T) {
	world := worldStub(t)
	api, idx := newTestAPI(t, world.URL, "")

	postJSON(t, api.URL+"/v1/world/blocks", map[string]any{
		"start":  []int{0, 0, 0},
		"end":    []int{1, 1, 1},
		"blocks": []string{"minecraft:stone"},
	}, nil)
	idx.Flush()

	var got struct {
		Operations []map[string]any `json:"operations"`
	}
	resp := getJSON(t, api.URL+"/v1/operations?limit=5", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(got.Operations) != 1 {
		t.Fatalf("want 1 operation, got %d", len(got.Operations))
	}
}

func TestWorldDown(t *testing.T) {
	api, _ := newTestAPI(t, "http://127.0.0.1:1", "")

	var got map[string]any
	resp := getJSON(t, api.URL+"/v1/status", &got)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", resp.StatusCode)
	}
	if code := errorCode(t, got); code != "E_WORLD_UNAVAILABLE" {
		t.Fatalf("error code %q", code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	world := worldStub(t)
	api, _ := newTestAPI(t, world.URL, "")

	resp := postJSON(t, api.URL+"/v1/world/buildarea", map[string]any{}, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", resp.StatusCode)
	}
}
