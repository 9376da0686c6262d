// Command sample demonstrates the github.com/loomhq/loom framework with a
// realistic app covering every major feature.
//
// Run:
//
//	go run ./cmd/sample
//
// Print the route manifest or the OpenAPI document:
//
//	go run ./cmd/sample -routes                — JSON to stdout
//	go run ./cmd/sample -routes -yaml          — YAML to stdout
//	go run ./cmd/sample -routes -o routes.json — write to file
//	go run ./cmd/sample -openapi               — OpenAPI 3.1 document
//
// Then explore:
//
//	GET    http://localhost:8080/health               — health check
//	GET    http://localhost:8080/v1/users             — list users (validated query)
//	POST   http://localhost:8080/v1/users             — create user (validated body)
//	GET    http://localhost:8080/v1/users/{id}        — get user (JSON or XML via Accept)
//	PUT    http://localhost:8080/v1/users/{id}        — update user
//	DELETE http://localhost:8080/v1/users/{id}        — delete user
//	POST   http://localhost:8080/v1/users/{id}/avatar — multipart avatar upload
//	GET    http://localhost:8080/v1/search/{term}     — search, term optional
//	GET    http://localhost:8080/files/...            — wildcard file fetch
//	GET    http://localhost:8080/events               — server-sent events
//	GET    http://localhost:8080/admin/stats          — basic-auth protected
//	GET    http://localhost:8080/admin/pprof/         — pprof, behind the same auth
//	GET    http://localhost:8080/metrics              — Prometheus metrics
//	GET    http://localhost:8080/openapi.json         — OpenAPI 3.1 document
//	GET    http://localhost:8080/docs                 — interactive API reference
//	GET    http://localhost:8080/ws                   — WebSocket echo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loomhq/loom"
)

// apiInfo titles the generated OpenAPI document.
var apiInfo = loom.OpenAPIInfo{Title: "Sample API", Version: "1.0.0"}

func main() {
	routesFlag := flag.Bool("routes", false, "Print the route manifest to stdout and exit")
	openapiFlag := flag.Bool("openapi", false, "Print the OpenAPI document to stdout and exit")
	yamlFlag := flag.Bool("yaml", false, "Emit YAML instead of JSON (requires -routes or -openapi)")
	outFlag := flag.String("o", "", "Output file (requires -routes or -openapi)")
	flag.Parse()

	app := newApp()

	if *routesFlag || *openapiFlag {
		if err := writeManifest(app, *openapiFlag, *outFlag, *yamlFlag); err != nil {
			slog.Error("manifest generation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting server", "addr", ":8080")

	if err := app.ListenAndServe(ctx, ":8080"); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

func newApp() *loom.App {
	app := loom.New(loom.WithLogger(slog.Default()))

	// Global middleware.
	app.Use("*",
		loom.TrailingSlash(),
		loom.RequestID(),
		loom.AccessLog(),
		loom.Trace(),
		loom.Metrics(),
		loom.Secure(),
		loom.CORS(),
		loom.BodyLimit(1<<20), // 1 MB
		loom.RateLimit(loom.RateLimitConfig{Rate: 50, Burst: 100}),
		loom.Compress(),
	)

	// Admin endpoints sit behind basic auth; the scope covers /admin and
	// everything under it, matched or not.
	app.Use("/admin", loom.BasicAuth(loom.BasicAuthConfig{
		Users: map[string]string{"admin": "swordfish"},
		Realm: "sample admin",
	}))

	app.Get("/health", handleHealth, loom.WithName("health"))

	app.Route("/v1", usersAPI())

	app.Get("/files/*", handleFile, loom.WithName("files"))

	app.Get("/events", handleEvents, loom.WithName("events"))

	app.Get("/admin/stats", handleStats, loom.WithName("admin.stats"))
	app.ServePprof("/admin/pprof")

	app.ServeMetrics("/metrics", nil)
	app.ServeOpenAPI("/openapi.json", apiInfo)
	app.ServeDocs("/docs", loom.DocsConfig{Title: "Sample API"})

	app.Get("/ws", handleEcho, loom.WithName("ws.echo"))

	return app
}

// usersAPI builds the v1 sub-app mounted under /v1.
func usersAPI() *loom.App {
	v1 := loom.New()

	v1.Use("*", loom.Timeout(5*time.Second))

	v1.Get("/users", handleListUsers,
		loom.WithName("users.list"),
		loom.WithValidators(loom.Query(
			loom.F("role", loom.OneOf("admin", "member")),
			loom.F("limit", loom.Default("50"), loom.Int(), loom.Min(1), loom.Max(200)),
			loom.F("offset", loom.Default("0"), loom.Int(), loom.Min(0)),
		)),
	)
	v1.Post("/users", handleCreateUser,
		loom.WithName("users.create"),
		loom.WithValidators(loom.Body[CreateUserReq]()),
	)
	v1.Get("/users/:id{[0-9]+}", handleGetUser, loom.WithName("users.get"))
	v1.Put("/users/:id{[0-9]+}", handleUpdateUser,
		loom.WithName("users.update"),
		loom.WithValidators(loom.Body[UpdateUserReq]()),
	)
	v1.Delete("/users/:id{[0-9]+}", handleDeleteUser, loom.WithName("users.delete"))
	v1.Post("/users/:id{[0-9]+}/avatar", handleUploadAvatar, loom.WithName("users.avatar"))

	// The term is optional: /v1/search and /v1/search/gopher both match.
	v1.Get("/search/:term?", handleSearch, loom.WithName("users.search"))

	return v1
}

func writeManifest(app *loom.App, openapi bool, outFile string, asYAML bool) error {
	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile) //nolint:gosec // user-provided CLI flag
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Error("failed to close output file", "err", err)
			}
		}()
		w = f
	}
	switch {
	case openapi && asYAML:
		return app.WriteOpenAPIYAML(w, apiInfo)
	case openapi:
		return app.WriteOpenAPI(w, apiInfo)
	case asYAML:
		return app.WriteRoutesYAML(w)
	default:
		return app.WriteRoutes(w)
	}
}

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

var store = &userStore{
	users: map[string]*User{
		"1": {ID: "1", Name: "Alice", Email: "alice@example.com", Role: "admin", CreatedAt: time.Now()},
		"2": {ID: "2", Name: "Bob", Email: "bob@example.com", Role: "member", CreatedAt: time.Now()},
	},
	files: map[string][]byte{
		"motd.txt": []byte("welcome to the sample app\n"),
	},
	nextID: 3,
}

type userStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	files  map[string][]byte
	nextID int
}

func (s *userStore) list(role string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, *u)
	}
	return out
}

func (s *userStore) get(id string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *userStore) create(name, email, role string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{
		ID:        fmt.Sprintf("%d", s.nextID),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *userStore) update(id, name, email, role string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	if role != "" {
		u.Role = role
	}
	cp := *u
	return &cp, true
}

func (s *userStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

func (s *userStore) file(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[name]
	return b, ok
}

func (s *userStore) putFile(name string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = b
}

func (s *userStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// User is the core domain entity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserReq is the POST /v1/users body.
type CreateUserReq struct {
	Name  string `json:"name" validate:"required,min=1"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=admin member"`
}

// Validate applies the rules struct tags cannot express.
func (r *CreateUserReq) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return loom.Error(http.StatusBadRequest, "name must not be blank")
	}
	return nil
}

// UpdateUserReq is the PUT /v1/users/{id} body. All fields optional.
type UpdateUserReq struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role" validate:"omitempty,oneof=admin member"`
}

type ListUsersResp struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleHealth(c *loom.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func handleListUsers(c *loom.Context) error {
	q, _ := loom.Validated[map[string]string](c, loom.FacetQuery)
	users := store.list(q["role"])
	return c.JSON(http.StatusOK, ListUsersResp{Users: users, Total: len(users)})
}

func handleCreateUser(c *loom.Context) error {
	req, _ := loom.ValidatedBody[CreateUserReq](c)
	role := req.Role
	if role == "" {
		role = "member"
	}
	user := store.create(req.Name, req.Email, role)
	return c.JSON(http.StatusCreated, user)
}

func handleGetUser(c *loom.Context) error {
	id := c.Param("id")
	user, ok := store.get(id)
	if !ok {
		return loom.Errorf(http.StatusNotFound, "user %s not found", id)
	}
	// Content-negotiated: Accept: application/xml gets XML, anything else JSON.
	return c.Negotiate(http.StatusOK, user)
}

func handleUpdateUser(c *loom.Context) error {
	id := c.Param("id")
	req, _ := loom.ValidatedBody[UpdateUserReq](c)
	user, ok := store.update(id, req.Name, req.Email, req.Role)
	if !ok {
		return loom.Errorf(http.StatusNotFound, "user %s not found", id)
	}
	return c.JSON(http.StatusOK, user)
}

func handleDeleteUser(c *loom.Context) error {
	id := c.Param("id")
	if !store.delete(id) {
		return loom.Errorf(http.StatusNotFound, "user %s not found", id)
	}
	return c.NoContent()
}

func handleUploadAvatar(c *loom.Context) error {
	id := c.Param("id")
	if _, ok := store.get(id); !ok {
		return loom.Errorf(http.StatusNotFound, "user %s not found", id)
	}

	up, err := c.FormFile("avatar")
	if err != nil {
		return err
	}
	f, err := up.Open()
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck,gosec // best-effort close
		f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	name := "avatars/" + id
	store.putFile(name, data)
	return c.JSON(http.StatusCreated, map[string]any{"file": name, "size": up.Size})
}

// handleEvents streams a tick once a second until the client hangs up.
func handleEvents(c *loom.Context) error {
	done := c.Context().Done()
	events := make(chan loom.SSEEvent)

	go func() {
		defer close(events)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for i := 1; ; i++ {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				ev := loom.SSEEvent{
					ID:    fmt.Sprintf("%d", i),
					Event: "tick",
					Data:  map[string]string{"time": t.Format(time.RFC3339)},
				}
				select {
				case events <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	return c.SSE(events)
}

func handleSearch(c *loom.Context) error {
	term, bound := c.ParamLookup("term")
	if !bound {
		return c.JSON(http.StatusOK, map[string]any{"hint": "append a term to search"})
	}

	var hits []User
	for _, u := range store.list("") {
		if strings.Contains(strings.ToLower(u.Name), strings.ToLower(term)) {
			hits = append(hits, u)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"term": term, "hits": hits})
}

func handleFile(c *loom.Context) error {
	name := c.Param("*")
	data, ok := store.file(name)
	if !ok {
		return loom.Errorf(http.StatusNotFound, "no file %q", name)
	}
	return c.Blob(http.StatusOK, "application/octet-stream", data)
}

func handleStats(c *loom.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"users":      store.count(),
		"authorized": loom.BasicAuthUser(c),
	})
}

// ---------------------------------------------------------------------------
// WebSocket echo
// ---------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEcho upgrades to a WebSocket and echoes frames until the client
// hangs up. TakeOver detaches the staged response; the socket owns the
// connection from here.
func handleEcho(c *loom.Context) error {
	w, r := c.TakeOver()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil // Upgrade already wrote the failure response
	}
	defer func() {
		//nolint:errcheck,gosec // best-effort close
		conn.Close()
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			return nil
		}
	}
}
