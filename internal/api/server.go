// Package api is the HTTP surface of the build proxy: world read/write
// endpoints gated by build-area containment, Supabase-backed auth,
// template and storage endpoints, and the operations feed.
package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/natea/minecraft-mcp-gdpc/internal/events"
	"github.com/natea/minecraft-mcp-gdpc/internal/gdmc"
	"github.com/natea/minecraft-mcp-gdpc/internal/opsindex"
	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
	"github.com/natea/minecraft-mcp-gdpc/internal/supabase"
	"github.com/natea/minecraft-mcp-gdpc/internal/transport/ws"
)

type Server struct {
	log       *log.Logger
	world     *gdmc.Client
	buildArea *gdmc.BuildAreaCache

	// backend is nil when Supabase is not configured; auth-gated routes
	// then run open (dev mode) and auth endpoints answer 503.
	backend *supabase.Client

	// ops is nil when the index is disabled.
	ops *opsindex.Index
	bus *events.Bus

	blueprintBucket string
	assetBucket     string

	corsOrigins []string
}

type Options struct {
	World           *gdmc.Client
	BuildArea       *gdmc.BuildAreaCache
	Backend         *supabase.Client
	Ops             *opsindex.Index
	Bus             *events.Bus
	BlueprintBucket string
	AssetBucket     string
	CORSOrigins     []string
}

func NewServer(opts Options, logger *log.Logger) *Server {
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	return &Server{
		log:             logger,
		world:           opts.World,
		buildArea:       opts.BuildArea,
		backend:         opts.Backend,
		ops:             opts.Ops,
		bus:             bus,
		blueprintBucket: opts.BlueprintBucket,
		assetBucket:     opts.AssetBucket,
		corsOrigins:     opts.CORSOrigins,
	}
}

// Bus exposes the feed bus so main can share it with other components.
func (s *Server) Bus() *events.Bus { return s.bus }

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/status", s.cors(s.handleStatus))

	mux.HandleFunc("/v1/world/buildarea", s.cors(s.handleBuildArea))
	mux.HandleFunc("/v1/world/players", s.cors(s.handlePlayers))
	mux.HandleFunc("/v1/world/blocks", s.cors(s.handleBlocks))
	mux.HandleFunc("/v1/world/command", s.cors(s.requireUser(s.handleCommand)))
	mux.HandleFunc("/v1/world/heightmap", s.cors(s.handleHeightmap))
	mux.HandleFunc("/v1/world/structure", s.cors(s.handleStructure))

	mux.HandleFunc("/v1/auth/register", s.cors(s.handleRegister))
	mux.HandleFunc("/v1/auth/login", s.cors(s.handleLogin))
	mux.HandleFunc("/v1/auth/user", s.cors(s.handleAuthUser))

	mux.HandleFunc("/v1/templates", s.cors(s.requireUser(s.handleTemplates)))
	mux.HandleFunc("/v1/templates/", s.cors(s.requireUser(s.handleTemplateSubtree)))
	mux.HandleFunc("/v1/users/me/favorites", s.cors(s.requireUser(s.handleMyFavorites)))

	mux.HandleFunc("/v1/storage/", s.cors(s.requireUser(s.handleStorage)))

	mux.HandleFunc("/v1/operations", s.cors(s.handleOperations))
	mux.HandleFunc("/v1/events/ws", ws.NewServer(s.bus, s.log).Handler())
}

type ctxKey int

const userKey ctxKey = 1

// authedUser is the caller identity attached by requireUser. Zero value
// means unauthenticated (backend not configured).
type authedUser struct {
	ID       string
	Email    string
	Username string
	Token    string
}

func userFrom(r *http.Request) authedUser {
	u, _ := r.Context().Value(userKey).(authedUser)
	return u
}

// authenticate checks the bearer token against GoTrue. Without a
// configured backend the request passes through unauthenticated, which
// keeps a bare world-proxy setup usable.
func (s *Server) authenticate(rw http.ResponseWriter, r *http.Request) (authedUser, bool) {
	if s.backend == nil {
		return authedUser{}, true
	}
	token := bearerToken(r)
	if token == "" {
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, "missing bearer token")
		return authedUser{}, false
	}
	u, err := s.backend.AuthUser(r.Context(), token)
	if err != nil {
		writeBackendError(rw, err)
		return authedUser{}, false
	}
	return authedUser{ID: u.ID, Email: u.Email, Username: u.Username(), Token: token}, true
}

func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		au, ok := s.authenticate(rw, r)
		if !ok {
			return
		}
		next(rw, r.WithContext(context.WithValue(r.Context(), userKey, au)))
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// cors applies the configured allowed origins and answers preflights.
func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			rw.Header().Set("Access-Control-Allow-Origin", origin)
			rw.Header().Set("Vary", "Origin")
			rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			rw.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next(rw, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.corsOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
