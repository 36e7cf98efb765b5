// Package surface is the boundary to the host's embedded web views, used
// when no engine is installed for a profile.
package surface

import (
	"context"
	"sync"
)

// DefaultURL is opened when the caller gives none.
const DefaultURL = "https://example.com"

// Surface opens and closes embedded views keyed by label.
type Surface interface {
	Open(ctx context.Context, label, url string) error
	Close(ctx context.Context, label string) error
	Exists(label string) bool
}

// Registry is a headless Surface that only remembers which views are open.
// It serves hosts without a GUI and tests.
type Registry struct {
	mu    sync.Mutex
	views map[string]string
}

func NewRegistry() *Registry { return &Registry{views: map[string]string{}} }

// ViewLabel namespaces embedded views the same way the host shell does.
func ViewLabel(label string) string { return "browser-" + label }

func (r *Registry) Open(_ context.Context, label, url string) error {
	if url == "" {
		url = DefaultURL
	}
	r.mu.Lock()
	r.views[ViewLabel(label)] = url
	r.mu.Unlock()
	return nil
}

func (r *Registry) Close(_ context.Context, label string) error {
	r.mu.Lock()
	delete(r.views, ViewLabel(label))
	r.mu.Unlock()
	return nil
}

func (r *Registry) Exists(label string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.views[ViewLabel(label)]
	return ok
}

// URL reports what an open view shows.
func (r *Registry) URL(label string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.views[ViewLabel(label)]
	return u, ok
}
