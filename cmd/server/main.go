package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/natea/minecraft-mcp-gdpc/internal/api"
	"github.com/natea/minecraft-mcp-gdpc/internal/config"
	"github.com/natea/minecraft-mcp-gdpc/internal/events"
	"github.com/natea/minecraft-mcp-gdpc/internal/gdmc"
	"github.com/natea/minecraft-mcp-gdpc/internal/opsindex"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "", "path to server config yaml (optional)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Listen = strings.TrimSpace(*addr)
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = strings.TrimSpace(*dataDir)
	}

	world, err := gdmc.New(cfg.World.BaseURL(), cfg.World.RequestTimeout())
	if err != nil {
		logger.Fatalf("world client: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// The world server may come up after us, so a failed ping is a
	// warning, not a fatal.
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if version, err := world.Version(pingCtx); err != nil {
		logger.Printf("world server %s not reachable yet: %v", cfg.World.BaseURL(), err)
	} else {
		logger.Printf("world server %s running minecraft %s", cfg.World.BaseURL(), version)
	}
	pingCancel()

	var backend *supabase.Client
	if cfg.Supabase.URL != "" {
		backend, err = supabase.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.ServiceKey)
		if err != nil {
			logger.Fatalf("supabase client: %v", err)
		}
		logger.Printf("supabase backend: %s", cfg.Supabase.URL)
	} else {
		logger.Printf("no supabase backend configured; auth and templates disabled, world writes run open")
	}

	var idx *opsindex.Index
	if !cfg.DisableOpsIndex {
		idx, err = opsindex.Open(filepath.Join(cfg.DataDir, "ops.db"))
		if err != nil {
			logger.Fatalf("open ops index: %v", err)
		}
		defer idx.Close()
	}

	srv := api.NewServer(api.Options{
		World:           world,
		BuildArea:       gdmc.NewBuildAreaCache(world, cfg.World.BuildAreaTTL()),
		Backend:         backend,
		Ops:             idx,
		Bus:             events.NewBus(),
		BlueprintBucket: cfg.Supabase.BlueprintBucket,
		AssetBucket:     cfg.Supabase.AssetBucket,
		CORSOrigins:     cfg.CORSOrigins,
	}, logger)

	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP gdpc_feed_subscribers Connected event feed subscribers.\n")
		fmt.Fprintf(rw, "# TYPE gdpc_feed_subscribers gauge\n")
		fmt.Fprintf(rw, "gdpc_feed_subscribers %d\n", srv.Bus().Subscribers())

		if idx != nil {
			accepted, rejected, err := idx.Totals()
			if err != nil {
				logger.Printf("metrics: ops totals: %v", err)
				return
			}
			fmt.Fprintf(rw, "# HELP gdpc_operations_total World operations by kind and outcome.\n")
			fmt.Fprintf(rw, "# TYPE gdpc_operations_total counter\n")
			for kind, n := range accepted {
				fmt.Fprintf(rw, "gdpc_operations_total{kind=%q,outcome=%q} %d\n", kind, "accepted", n)
			}
			for kind, n := range rejected {
				fmt.Fprintf(rw, "gdpc_operations_total{kind=%q,outcome=%q} %d\n", kind, "rejected", n)
			}
		}
	})

	if cfg.EnableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := map[string]any{
				"world_url":   cfg.World.BaseURL(),
				"backend":     cfg.Supabase.URL,
				"subscribers": srv.Bus().Subscribers(),
				"ops_index":   idx != nil,
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/flush", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if idx != nil {
				idx.Flush()
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
		})
	} else {
		logger.Printf("admin endpoints disabled (MCP_ENABLE_ADMIN_HTTP=false)")
	}
	if cfg.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = httpSrv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Listen)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
