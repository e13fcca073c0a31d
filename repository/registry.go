package repository

import "github.com/viant/mcpgate/internal/collection"

// Registry tracks materialized repositories by id. It is owned by whoever
// creates it (typically the gateway) and injected into the Materializer.
type Registry struct {
	entries *collection.SyncMap[string, string]
}

// Register records the local path of repository id.
func (r *Registry) Register(id, path string) {
	r.entries.Put(id, path)
}

// Lookup returns the local path of repository id.
func (r *Registry) Lookup(id string) (string, bool) {
	return r.entries.Get(id)
}

// Unregister drops repository id, returning its path if it was registered.
func (r *Registry) Unregister(id string) (string, bool) {
	return r.entries.Delete(id)
}

// IDs returns registered repository ids.
func (r *Registry) IDs() []string {
	return r.entries.Keys()
}

// Len returns number of registered repositories.
func (r *Registry) Len() int {
	return r.entries.Len()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: collection.NewSyncMap[string, string]()}
}
