// Package gateway mounts independent project sub-applications under path
// prefixes of one HTTP server.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// reservedPaths are served by the gateway itself.
var reservedPaths = map[string]bool{"/": true, "/health": true}

// Project is a sub-application mounted by the gateway.
type Project struct {
	Name      string
	MountPath string // defaults to "/<Name>"
	Handler   http.Handler
}

// Registry holds the projects assembled at startup.
type Registry struct {
	appName string
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	projects []Project
}

// NewRegistry returns an empty registry for the named gateway.
func NewRegistry(appName string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{appName: appName, logger: logger, now: time.Now}
}

// Register validates p and adds it. A project must have a name, a handler,
// and a mount path that starts with "/" and is not already taken.
func (r *Registry) Register(p Project) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("project name is required")
	}
	if p.Handler == nil {
		return fmt.Errorf("project %q: handler is required", p.Name)
	}
	if p.MountPath == "" {
		p.MountPath = "/" + p.Name
	}
	if !strings.HasPrefix(p.MountPath, "/") {
		return fmt.Errorf("project %q: mount path %q must start with /", p.Name, p.MountPath)
	}
	if p.MountPath != "/" {
		p.MountPath = strings.TrimRight(p.MountPath, "/")
	}
	if reservedPaths[p.MountPath] {
		return fmt.Errorf("project %q: mount path %q is reserved", p.Name, p.MountPath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.projects {
		if existing.MountPath == p.MountPath {
			return fmt.Errorf("project %q: mount path %q already used by %q", p.Name, p.MountPath, existing.Name)
		}
		if existing.Name == p.Name {
			return fmt.Errorf("project %q already registered", p.Name)
		}
	}
	r.projects = append(r.projects, p)
	return nil
}

// Projects returns the registered projects in registration order.
func (r *Registry) Projects() []Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Project, len(r.projects))
	copy(out, r.projects)
	return out
}

type projectInfo struct {
	Name      string `json:"name"`
	MountPath string `json:"mountPath"`
}

// Handler builds the root router: the health and index routes plus every
// registered project under its mount path.
func (r *Registry) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(r.logger))
	router.Use(Recoverer(r.logger))

	router.Get("/health", r.handleHealth)
	router.Get("/", r.handleIndex)

	for _, p := range r.Projects() {
		router.Mount(p.MountPath, stripMount(p.MountPath, p.Handler))
		r.logger.Info("project mounted", "project", p.Name, "path", p.MountPath)
	}
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return router
}

// stripMount removes the mount prefix from the request path so that every
// project sees paths relative to where it is mounted. chi sub-routers route
// on the route context and are unaffected.
func stripMount(prefix string, h http.Handler) http.Handler {
	return http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		h.ServeHTTP(w, r)
	}))
}

// handleHealth handles GET /health.
func (r *Registry) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   r.appName,
		"timestamp": r.now().UTC().Format(time.RFC3339),
	})
}

// handleIndex handles GET /.
func (r *Registry) handleIndex(w http.ResponseWriter, _ *http.Request) {
	projects := r.Projects()
	infos := make([]projectInfo, len(projects))
	for i, p := range projects {
		infos[i] = projectInfo{Name: p.Name, MountPath: p.MountPath}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  r.appName,
		"projects": infos,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
