// Package opsindex keeps a local SQLite record of every world write the
// proxy handled: who asked, what region, and how it went. It is a read
// model for audit and metrics, never consulted on the write path.
package opsindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
)

type Index struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type req struct {
	ev   protocol.OperationEvent
	done chan struct{} // set on flush requests
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Index{
		db: db,
		// Buffered so a burst of writes never stalls request handling.
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability
	// for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			at TEXT NOT NULL,
			user_id TEXT,
			kind TEXT NOT NULL,
			region_json TEXT,
			block_count INTEGER NOT NULL DEFAULT 0,
			ok INTEGER NOT NULL,
			error_code TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_at ON operations(at);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_user_at ON operations(user_id, at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Record enqueues one operation. Non-blocking: if the writer falls
// behind, the event is dropped rather than stalling a request.
func (s *Index) Record(ev protocol.OperationEvent) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{ev: ev}:
	default:
	}
}

// Flush blocks until everything queued before the call is committed.
func (s *Index) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{done: done}
	<-done
}

func (s *Index) loop() {
	insert, err := s.db.Prepare(`INSERT OR REPLACE INTO operations(id,at,user_id,kind,region_json,block_count,ok,error_code) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		// Schema init succeeded, so this should not happen; drain and exit.
		for r := range s.ch {
			if r.done != nil {
				close(r.done)
			}
		}
		return
	}
	defer insert.Close()

	for r := range s.ch {
		if r.done != nil {
			close(r.done)
			continue
		}
		ev := r.ev
		var region any
		if ev.Region != nil {
			if b, err := json.Marshal(ev.Region); err == nil {
				region = string(b)
			}
		}
		okInt := 0
		if ev.OK {
			okInt = 1
		}
		_, _ = insert.Exec(
			ev.ID,
			ev.At.UTC().Format(time.RFC3339Nano),
			nullable(ev.UserID),
			ev.Kind,
			region,
			ev.BlockCount,
			okInt,
			nullable(ev.ErrorCode),
		)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Recent returns the newest operations, most recent first.
func (s *Index) Recent(limit int) ([]protocol.OperationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, at, COALESCE(user_id,''), kind, COALESCE(region_json,''), block_count, ok, COALESCE(error_code,'')
		FROM operations ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.OperationEvent
	for rows.Next() {
		var ev protocol.OperationEvent
		var at, regionJSON string
		var okInt int
		if err := rows.Scan(&ev.ID, &at, &ev.UserID, &ev.Kind, &regionJSON, &ev.BlockCount, &okInt, &ev.ErrorCode); err != nil {
			return nil, err
		}
		ev.OK = okInt == 1
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			ev.At = t
		}
		if regionJSON != "" {
			var box geometry.Box
			if err := json.Unmarshal([]byte(regionJSON), &box); err == nil {
				ev.Region = &box
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Totals returns per-kind counts of accepted and rejected operations,
// feeding the /metrics exposition.
func (s *Index) Totals() (map[string]int, map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, ok, COUNT(*) FROM operations GROUP BY kind, ok`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	accepted := map[string]int{}
	rejected := map[string]int{}
	for rows.Next() {
		var kind string
		var okInt, n int
		if err := rows.Scan(&kind, &okInt, &n); err != nil {
			return nil, nil, err
		}
		if okInt == 1 {
			accepted[kind] = n
		} else {
			rejected[kind] = n
		}
	}
	return accepted, rejected, rows.Err()
}
