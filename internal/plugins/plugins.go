// Package plugins holds the optional feature modules mounted under /api/plugins/{id}/.
// Plugins are registered explicitly at startup, each one owns a router for its own routes
// and can be switched off at runtime without unmounting it.
package plugins

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/pkg/serviceutil"
)

const (
	report_register = "register"
	report_toggle   = "toggle"
)

const MountPattern = "/api/plugins/{id}/"

var (
	ErrDuplicate = errors.New("plugin already registered")
	ErrNotFound  = errors.New("plugin not found")
)

type CommandField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
}

// Command describes a slash command a plugin offers to the frontend.
type Command struct {
	Command     string         `json:"command"`
	Description string         `json:"description"`
	Fields      []CommandField `json:"fields"`
}

type Metadata struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Version      string    `json:"version"`
	Author       string    `json:"author"`
	Enabled      bool      `json:"enabled"`
	Dependencies []string  `json:"dependencies"`
	Icon         string    `json:"icon,omitempty"`
	Color        string    `json:"color,omitempty"`
	Commands     []Command `json:"commands"`
}

// Router is the mux a plugin registers its routes on. Patterns are relative to the
// plugin's mount point, so "GET /{$}" is the plugin root.
type Router struct {
	mux    *http.ServeMux
	routes int
}

func newRouter() *Router {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serviceutil.WriteError(w, http.StatusNotFound, fmt.Sprintf("no plugin route for %s %s", r.Method, r.URL.Path))
	})
	return &Router{mux: mux}
}

func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.mux.HandleFunc(pattern, handler)
	r.routes++
}

func (r *Router) Routes() int {
	return r.routes
}

type Plugin interface {
	ID() string
	Metadata() Metadata
	Setup(router *Router)
	Enabled() bool
	SetEnabled(enabled bool)
}

type Info struct {
	ID          string    `json:"id"`
	Metadata    Metadata  `json:"metadata"`
	LoadedAt    time.Time `json:"loaded_at"`
	RoutesCount int       `json:"routes_count"`
	Enabled     bool      `json:"enabled"`
}

type entry struct {
	plugin   Plugin
	router   *Router
	loadedAt time.Time
}

type Registry struct {
	time chrono.TimeAPI
	tel  telemetry.API

	mutex   sync.RWMutex
	entries map[string]entry
	order   []string
}

type registryConfig struct {
	time chrono.TimeAPI
	tel  telemetry.API
}

type RegistryOption func(cfg *registryConfig)

func WithTelemetryAPI(tel telemetry.API) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.tel = tel
	}
}

func WithTimeAPI(time chrono.TimeAPI) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.time = time
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	cfg := registryConfig{
		time: chrono.NewStandardTime(),
		tel:  telemetry.SlogAPI{},
	}
	for _, opt := range options {
		opt(&cfg)
	}
	return &Registry{
		time:    cfg.time,
		tel:     telemetry.NewScopedAPI("plugins", cfg.tel),
		entries: map[string]entry{},
	}
}

// Register sets up the plugin's routes and makes it reachable through the registry.
func (r *Registry) Register(plugin Plugin) error {
	assert.NotNil(plugin, "plugin")
	id := plugin.ID()
	assert.NotEmptyStr(id, "plugin id")

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.entries[id]; exists {
		r.tel.ReportWarning(report_register, id, ErrDuplicate)
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}

	router := newRouter()
	plugin.Setup(router)
	r.entries[id] = entry{
		plugin:   plugin,
		router:   router,
		loadedAt: r.time.Now(),
	}
	r.order = append(r.order, id)
	r.tel.ReportDebug("registered plugin", id, router.Routes())
	return nil
}

func (r *Registry) Get(id string) (Plugin, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	e, ok := r.entries[id]
	return e.plugin, ok
}

// List returns the registered plugins in registration order.
func (r *Registry) List() []Info {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		enabled := e.plugin.Enabled()
		metadata := e.plugin.Metadata()
		metadata.Enabled = enabled
		out = append(out, Info{
			ID:          id,
			Metadata:    metadata,
			LoadedAt:    e.loadedAt,
			RoutesCount: e.router.Routes(),
			Enabled:     enabled,
		})
	}
	return out
}

func (r *Registry) setEnabled(id string, enabled bool) error {
	plugin, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	plugin.SetEnabled(enabled)
	r.tel.ReportDebug(report_toggle, id, enabled)
	return nil
}

func (r *Registry) Enable(id string) error {
	return r.setEnabled(id, true)
}

func (r *Registry) Disable(id string) error {
	return r.setEnabled(id, false)
}

// ServeHTTP dispatches a request matched by MountPattern to the plugin named by {id}.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	r.mutex.RLock()
	e, ok := r.entries[id]
	r.mutex.RUnlock()
	if !ok {
		serviceutil.WriteError(w, http.StatusNotFound, fmt.Sprintf("plugin %s not found", id))
		return
	}

	http.StripPrefix("/api/plugins/"+id, e.router.mux).ServeHTTP(w, req)
}

// Mount routes every plugin request on mux through the registry, wrapped by the
// middlewares in order.
func (r *Registry) Mount(mux *http.ServeMux, middlewares ...func(http.Handler) http.Handler) {
	var handler http.Handler = r
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	mux.Handle(MountPattern, handler)
}
