// Command admin is an operator CLI for a running proxy server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "status":
			statusCmd(os.Args[2:])
			return
		case "buildarea":
			buildareaCmd(os.Args[2:])
			return
		case "ops":
			opsCmd(os.Args[2:])
			return
		case "players":
			playersCmd(os.Args[2:])
			return
		case "fill":
			fillCmd(os.Args[2:])
			return
		case "command":
			commandCmd(os.Args[2:])
			return
		case "flush":
			flushCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <status|buildarea|ops|players|fill|command|flush> [flags]")
	os.Exit(2)
}

func baseFlags(fs *flag.FlagSet) (*string, *string) {
	url := fs.String("url", "http://127.0.0.1:8000", "server base url")
	token := fs.String("token", os.Getenv("MCP_TOKEN"), "bearer token for write operations")
	return url, token
}

func get(baseURL, token, path string) {
	do(http.MethodGet, baseURL, token, path, nil)
}

func do(method, baseURL, token, path string, body []byte) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	cl := &http.Client{Timeout: 30 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func statusCmd(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	url, token := baseFlags(fs)
	_ = fs.Parse(args)
	get(*url, *token, "/v1/status")
}

func buildareaCmd(args []string) {
	fs := flag.NewFlagSet("buildarea", flag.ExitOnError)
	url, token := baseFlags(fs)
	_ = fs.Parse(args)
	get(*url, *token, "/v1/world/buildarea")
}

func playersCmd(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	url, token := baseFlags(fs)
	_ = fs.Parse(args)
	get(*url, *token, "/v1/world/players")
}

func opsCmd(args []string) {
	fs := flag.NewFlagSet("ops", flag.ExitOnError)
	url, token := baseFlags(fs)
	limit := fs.Int("limit", 20, "how many recent operations to list")
	_ = fs.Parse(args)
	get(*url, *token, "/v1/operations?limit="+strconv.Itoa(*limit))
}

// fillCmd places one block id across a box, e.g.
//
//	admin fill -from 0,64,0 -to 10,70,10 -block minecraft:stone
func fillCmd(args []string) {
	fs := flag.NewFlagSet("fill", flag.ExitOnError)
	url, token := baseFlags(fs)
	from := fs.String("from", "", "start corner x,y,z (required)")
	to := fs.String("to", "", "exclusive end corner x,y,z (required)")
	block := fs.String("block", "minecraft:stone", "block id to fill with")
	_ = fs.Parse(args)

	start, err := parseCorner(*from)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -from:", err)
		os.Exit(2)
	}
	end, err := parseCorner(*to)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -to:", err)
		os.Exit(2)
	}
	body, _ := json.Marshal(map[string]any{
		"start":  start,
		"end":    end,
		"blocks": []string{*block},
	})
	do(http.MethodPost, *url, *token, "/v1/world/blocks", body)
}

func commandCmd(args []string) {
	fs := flag.NewFlagSet("command", flag.ExitOnError)
	url, token := baseFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin command [flags] <minecraft command> ...")
		os.Exit(2)
	}
	body, _ := json.Marshal(map[string]any{"commands": fs.Args()})
	do(http.MethodPost, *url, *token, "/v1/world/command", body)
}

func flushCmd(args []string) {
	fs := flag.NewFlagSet("flush", flag.ExitOnError)
	url, token := baseFlags(fs)
	_ = fs.Parse(args)
	do(http.MethodPost, *url, *token, "/admin/v1/flush", nil)
}

func parseCorner(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, err
		}
		out[i] = n
	}
	return out, nil
}
